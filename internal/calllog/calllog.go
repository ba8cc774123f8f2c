// Package calllog keeps a bounded in-memory record of API calls for the
// debug panel: every request the client makes, its outcome, and aggregate
// stats over the retained window.
package calllog

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkzef/chirp/internal/bus"
)

// DefaultCapacity bounds how many records the log retains.
const DefaultCapacity = 200

// Record describes one API call.
type Record struct {
	ID        string
	Method    string
	URL       string
	Status    int // 0 when the call never reached the server
	Duration  time.Duration
	Timestamp time.Time
	Request   string
	Response  string
	Err       string
}

// Failed reports whether the call did not complete with a success status.
// Transport errors have Status 0 and count as failed.
func (r Record) Failed() bool {
	return r.Status < 200 || r.Status >= 400
}

// Stats aggregates the retained records.
type Stats struct {
	Total           int
	FailedCalls     int
	SuccessRate     float64 // 0..1, meaningless when Total is 0
	AverageDuration time.Duration
}

// Log is a bounded, concurrency-safe call log. When full, the oldest
// record is dropped.
type Log struct {
	mu       sync.Mutex
	records  []Record
	capacity int
	bus      *bus.Bus
}

// New returns an empty log that publishes a bus event per recorded call.
// A nil bus is allowed and disables publishing.
func New(b *bus.Bus) *Log {
	return &Log{capacity: DefaultCapacity, bus: b}
}

// Record appends a call record, assigning it an ID and timestamp if unset.
func (l *Log) Record(r Record) Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.records = append(l.records, r)
	if len(l.records) > l.capacity {
		l.records = l.records[len(l.records)-l.capacity:]
	}
	l.mu.Unlock()

	if l.bus != nil {
		l.bus.Publish(bus.E(bus.KindCallRecorded, r))
	}
	return r
}

// Records returns the retained records, newest first.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, len(l.records))
	for i, r := range l.records {
		out[len(out)-1-i] = r
	}
	return out
}

// Failed returns the retained failed records, newest first.
func (l *Log) Failed() []Record {
	var out []Record
	for _, r := range l.Records() {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// Get returns a record by ID, or a zero record and false.
func (l *Log) Get(id string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range l.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Clear drops every retained record.
func (l *Log) Clear() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()

	if l.bus != nil {
		l.bus.Publish(bus.E(bus.KindCallsCleared, nil))
	}
}

// Stats computes aggregates over the retained records. With no records,
// every field is zero and the panel renders the rate as N/A.
func (l *Log) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{Total: len(l.records)}
	if s.Total == 0 {
		return s
	}

	var total time.Duration
	for _, r := range l.records {
		total += r.Duration
		if r.Failed() {
			s.FailedCalls++
		}
	}
	s.SuccessRate = float64(s.Total-s.FailedCalls) / float64(s.Total)
	s.AverageDuration = total / time.Duration(s.Total)
	return s
}
