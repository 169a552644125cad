package event

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/oklog/ulid"
)

type memoryStore struct {
	events map[ulid.ULID]Event
	sync.RWMutex
}

// NewMemoryStore returns an initialized event store that stores everything in memory
func NewMemoryStore() Store {
	return &memoryStore{events: make(map[ulid.ULID]Event)}
}

func (s *memoryStore) CreateEvent(ctx context.Context, e Event) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.events[e.ID]; ok {
		return fault.Invariant("Event", "Insert", "record already exists")
	}

	s.events[e.ID] = e

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.events, e.ID)
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchEventByID(ctx context.Context, id ulid.ULID) (Event, error) {
	s.RLock()
	defer s.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return e, fault.NotFound("Event")
	}

	return e, nil
}

func (s *memoryStore) FetchEvents(ctx context.Context, businessID, userID uint32, limit int) ([]Event, error) {
	s.RLock()
	defer s.RUnlock()

	es := make([]Event, 0)
	for _, e := range s.events {
		if businessID != 0 {
			if e.BusinessID == nil || *e.BusinessID != businessID {
				continue
			}
		} else if e.UserID == nil || *e.UserID != userID {
			continue
		}

		es = append(es, e)
	}

	sort.Slice(es, func(i, j int) bool { return bytes.Compare(es[i].ID[:], es[j].ID[:]) > 0 })

	if limit > 0 && len(es) > limit {
		es = es[:limit]
	}

	return es, nil
}
