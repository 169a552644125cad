package business

import (
	"context"
	"sort"
	"sync"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
)

type membershipKey struct {
	businessID uint32
	userID     uint32
}

type memoryStore struct {
	lastID      uint32
	businesses  map[uint32]Business
	memberships map[membershipKey]Membership
	sync.RWMutex
}

// NewMemoryStore returns an initialized business store that stores everything in memory
func NewMemoryStore() Store {
	return &memoryStore{
		businesses:  make(map[uint32]Business),
		memberships: make(map[membershipKey]Membership),
	}
}

func (s *memoryStore) CreateBusiness(ctx context.Context, b Business) (Business, error) {
	if b.ID != 0 {
		return b, ErrNonZeroID
	}

	s.Lock()
	s.lastID++
	b.ID = s.lastID
	s.businesses[b.ID] = b
	s.Unlock()

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.businesses, b.ID)
		s.Unlock()
	})

	return b, nil
}

func (s *memoryStore) UpdateBusiness(ctx context.Context, b Business) error {
	s.Lock()
	defer s.Unlock()

	before, ok := s.businesses[b.ID]
	if !ok {
		return fault.NotFound("Business")
	}

	s.businesses[b.ID] = b

	database.Journal(ctx, func() {
		s.Lock()
		s.businesses[b.ID] = before
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchBusinessByID(ctx context.Context, id uint32) (Business, error) {
	s.RLock()
	defer s.RUnlock()

	b, ok := s.businesses[id]
	if !ok {
		return b, fault.NotFound("Business")
	}

	return b, nil
}

func (s *memoryStore) CreateMembership(ctx context.Context, m Membership) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.businesses[m.BusinessID]; !ok {
		return fault.Invariant("Membership", "Insert", "referenced record does not exist or is still in use")
	}

	key := membershipKey{m.BusinessID, m.UserID}
	if _, ok := s.memberships[key]; ok {
		return fault.Invariant("Membership", "Insert", "record already exists")
	}

	s.memberships[key] = m

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.memberships, key)
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) UpdateMembership(ctx context.Context, m Membership) error {
	s.Lock()
	defer s.Unlock()

	key := membershipKey{m.BusinessID, m.UserID}
	before, ok := s.memberships[key]
	if !ok {
		return fault.NotFound("Membership")
	}

	s.memberships[key] = m

	database.Journal(ctx, func() {
		s.Lock()
		s.memberships[key] = before
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchMembership(ctx context.Context, businessID, userID uint32, forUpdate bool) (Membership, error) {
	s.RLock()
	defer s.RUnlock()

	m, ok := s.memberships[membershipKey{businessID, userID}]
	if !ok {
		return m, fault.NotFound("Membership")
	}

	return m, nil
}

func (s *memoryStore) FetchMembershipsByUserID(ctx context.Context, userID uint32) ([]Membership, error) {
	s.RLock()
	defer s.RUnlock()

	ms := make([]Membership, 0)
	for k, m := range s.memberships {
		if k.userID == userID {
			ms = append(ms, m)
		}
	}

	sort.Slice(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].BusinessID < ms[j].BusinessID
		}

		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})

	return ms, nil
}

func (s *memoryStore) ClearDefaultMemberships(ctx context.Context, userID uint32) error {
	s.Lock()
	defer s.Unlock()

	cleared := make([]membershipKey, 0)
	for k, m := range s.memberships {
		if k.userID == userID && m.IsDefault {
			m.IsDefault = false
			s.memberships[k] = m
			cleared = append(cleared, k)
		}
	}

	database.Journal(ctx, func() {
		s.Lock()
		defer s.Unlock()

		for _, k := range cleared {
			m := s.memberships[k]
			m.IsDefault = true
			s.memberships[k] = m
		}
	})

	return nil
}

func (s *memoryStore) DeleteMembership(ctx context.Context, businessID, userID uint32) error {
	s.Lock()
	defer s.Unlock()

	key := membershipKey{businessID, userID}
	m, ok := s.memberships[key]
	if !ok {
		return fault.NotFound("Membership")
	}

	delete(s.memberships, key)

	database.Journal(ctx, func() {
		s.Lock()
		s.memberships[key] = m
		s.Unlock()
	})

	return nil
}
