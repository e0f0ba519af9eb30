package identity

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultRevocationSize = 1024

// RevocationList remembers revoked refresh token ids until they would have
// expired anyway.
type RevocationList struct {
	cache *expirable.LRU[string, struct{}]
}

// NewRevocationList bounds the list to size entries, each kept for ttl.
func NewRevocationList(size int, ttl time.Duration) *RevocationList {
	if size <= 0 {
		size = defaultRevocationSize
	}
	return &RevocationList{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// Revoke marks a token id as unusable.
func (r *RevocationList) Revoke(jti string) {
	if jti == "" {
		return
	}
	r.cache.Add(jti, struct{}{})
}

// Revoked reports whether jti was revoked.
func (r *RevocationList) Revoked(jti string) bool {
	return r.cache.Contains(jti)
}

// Len reports how many revocations are remembered.
func (r *RevocationList) Len() int {
	return r.cache.Len()
}
