package counters

import (
	"context"
	"encoding/json"
)

// The fixed set of counters the document store is expected to hold.
const (
	SevyEducatorsNumber = "sevy_educators_number"
	SevyAIAnswers       = "sevy_ai_answers"
	StudentsTaught      = "students_taught"
)

// KnownCounters lists every counter name a snapshot reports.
var KnownCounters = []string{SevyEducatorsNumber, SevyAIAnswers, StudentsTaught}

// Value is a counter reading. A value whose store lookup failed or that no
// document carries is serialized as the literal string "N/A".
type Value struct {
	N  int64
	OK bool
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.OK {
		return json.Marshal("N/A")
	}
	return json.Marshal(v.N)
}

// Snapshot maps every known counter name to its reading.
type Snapshot map[string]Value

// UnavailableSnapshot reports every known counter as "N/A".
func UnavailableSnapshot() Snapshot {
	s := make(Snapshot, len(KnownCounters))
	for _, name := range KnownCounters {
		s[name] = Value{}
	}
	return s
}

// Store reads and bumps the named counters held in the document store.
type Store interface {
	// FetchAll returns the current value of every known counter a document
	// carries. Missing counters are simply absent from the map.
	FetchAll(ctx context.Context) (map[string]int64, error)
	// Increment atomically adds one to the named counter, creating its
	// document when none exists yet.
	Increment(ctx context.Context, name string) error
	Close() error
}
