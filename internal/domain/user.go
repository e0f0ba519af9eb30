package domain

import "time"

// AccountStatus represents lifecycle states for a sign-in account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
)

// Account is the credential record the local identity provider signs in against.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Status       AccountStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the provider identity for the account.
func (a Account) Principal() Principal {
	return Principal{ID: a.ID, Email: a.Email, DisplayName: a.DisplayName}
}
