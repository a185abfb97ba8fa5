package core

import (
	"sync"
	"time"
)

// DiagnosticEvent captures an execution-time failure for post-mortem analysis
type DiagnosticEvent struct {
	Time    time.Time `json:"time"`
	Event   string    `json:"event"`
	Message string    `json:"message"`
}

const (
	DiagnosticRingSize = 32 // Keep last 32 failures
)

// Diagnostics is a fixed-size ring of failures that never reach the
// operator through the request/response protocol. Safe for concurrent use.
type Diagnostics struct {
	mu    sync.Mutex
	clock Clock
	ring  [DiagnosticRingSize]DiagnosticEvent
	head  int    // Next write position
	total uint64 // Failures recorded since boot
}

// NewDiagnostics creates an empty ring stamped by clock
func NewDiagnostics(clock Clock) *Diagnostics {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Diagnostics{clock: clock}
}

// Record appends a failure, overwriting the oldest entry when full
func (d *Diagnostics) Record(event string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.ring[d.head] = DiagnosticEvent{Time: now, Event: event, Message: msg}
	d.head = (d.head + 1) % DiagnosticRingSize
	d.total++
}

// Total returns the number of failures recorded since creation
func (d *Diagnostics) Total() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total
}

// Last returns the most recent failure
func (d *Diagnostics) Last() (DiagnosticEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.total == 0 {
		return DiagnosticEvent{}, false
	}
	idx := (d.head + DiagnosticRingSize - 1) % DiagnosticRingSize
	return d.ring[idx], true
}

// Snapshot returns the retained failures, oldest first
func (d *Diagnostics) Snapshot() []DiagnosticEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := int(d.total)
	if n > DiagnosticRingSize {
		n = DiagnosticRingSize
	}
	out := make([]DiagnosticEvent, 0, n)
	start := (d.head + DiagnosticRingSize - n) % DiagnosticRingSize
	for i := 0; i < n; i++ {
		out = append(out, d.ring[(start+i)%DiagnosticRingSize])
	}
	return out
}

// Clear empties the ring
func (d *Diagnostics) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.ring {
		d.ring[i] = DiagnosticEvent{}
	}
	d.head = 0
	d.total = 0
}
