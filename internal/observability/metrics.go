package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides in-memory counters for requests and identity lifecycle events.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	resolutions    map[string]int64
	probeFailures  map[string]int64
	providerEvents map[string]int64
	staleDiscarded int64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests       map[string]int64 `json:"requests"`
	Errors         map[string]int64 `json:"errors"`
	Resolutions    map[string]int64 `json:"resolutions"`
	ProbeFailures  map[string]int64 `json:"probe_failures"`
	ProviderEvents map[string]int64 `json:"provider_events"`
	StaleDiscarded int64            `json:"stale_discarded"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		resolutions:    make(map[string]int64),
		probeFailures:  make(map[string]int64),
		providerEvents: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordResolution counts a completed resolution by resulting role.
func (m *Metrics) RecordResolution(role string) {
	m.inc(func() { m.resolutions[role]++ })
}

// RecordProbeFailure counts a role probe that could not complete.
func (m *Metrics) RecordProbeFailure(tier string) {
	m.inc(func() { m.probeFailures[tier]++ })
}

// RecordProviderEvent counts identity provider events by type.
func (m *Metrics) RecordProviderEvent(eventType string) {
	m.inc(func() { m.providerEvents[eventType]++ })
}

// RecordStaleDiscard counts resolution results dropped by the generation guard.
func (m *Metrics) RecordStaleDiscard() {
	m.inc(func() { m.staleDiscarded++ })
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:       copyCounts(m.requestCount),
		Errors:         copyCounts(m.errorCount),
		Resolutions:    copyCounts(m.resolutions),
		ProbeFailures:  copyCounts(m.probeFailures),
		ProviderEvents: copyCounts(m.providerEvents),
		StaleDiscarded: m.staleDiscarded,
	}
}

func (m *Metrics) inc(fn func()) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
