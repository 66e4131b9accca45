package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for engine outcomes and the
// HTTP surface.
type Metrics struct {
	mu       sync.Mutex
	outcomes map[string]int64
	events   map[string]int64
	requests map[string]int64
	errors   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		outcomes: make(map[string]int64),
		events:   make(map[string]int64),
		requests: make(map[string]int64),
		errors:   make(map[string]int64),
	}
}

// RecordOutcome increments the counter for a processed-turn outcome
// (outbound_sent, outbound_failed, duplicate_ignored, ...).
func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

// RecordEvent increments the counter for an emitted event name.
func (m *Metrics) RecordEvent(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[name]++
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[key]++
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}

// Snapshot returns a copy of both counter maps.
func (m *Metrics) Snapshot() (map[string]int64, map[string]int64) {
	if m == nil {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	outcomes := make(map[string]int64, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	events := make(map[string]int64, len(m.events))
	for k, v := range m.events {
		events[k] = v
	}
	return outcomes, events
}
