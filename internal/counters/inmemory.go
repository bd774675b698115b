package counters

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type document struct {
	id     string
	fields map[string]int64
}

// InMemoryStore is a simple in-process counter store for local/dev use. It
// mirrors the document layout of the postgres store: each document carries at
// most one counter field, joined on read.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs []document
}

// NewInMemoryStore seeds one zero-valued document per known counter.
func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{}
	for _, name := range KnownCounters {
		s.docs = append(s.docs, document{
			id:     uuid.NewString(),
			fields: map[string]int64{name: 0},
		})
	}
	return s
}

func (s *InMemoryStore) FetchAll(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(KnownCounters))
	for _, doc := range s.docs {
		for _, name := range KnownCounters {
			if _, seen := out[name]; seen {
				continue
			}
			if n, ok := doc.fields[name]; ok {
				out[name] = n
			}
		}
	}
	return out, nil
}

func (s *InMemoryStore) Increment(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.docs {
		if _, ok := doc.fields[name]; ok {
			doc.fields[name]++
			return nil
		}
	}
	s.docs = append(s.docs, document{
		id:     uuid.NewString(),
		fields: map[string]int64{name: 1},
	})
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
