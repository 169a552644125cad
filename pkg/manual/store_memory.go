package manual

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
)

type readKey struct {
	contentID uint32
	userID    uint32
}

// memoryStore keeps the whole manual tree in memory
// NOTE: writes are journaled so that a failed transaction reverts them
type memoryStore struct {
	lastID      uint32
	manuals     map[uint32]Manual
	assignments map[uint32]Assignment
	sections    map[uint32]Section
	policies    map[uint32]Policy
	contents    map[uint32]Content
	reads       map[readKey]Read
	sync.RWMutex
}

// NewMemoryStore returns an initialized manual store that stores everything in memory
func NewMemoryStore() Store {
	return &memoryStore{
		manuals:     make(map[uint32]Manual),
		assignments: make(map[uint32]Assignment),
		sections:    make(map[uint32]Section),
		policies:    make(map[uint32]Policy),
		contents:    make(map[uint32]Content),
		reads:       make(map[readKey]Read),
	}
}

func (s *memoryStore) nextID() uint32 {
	s.lastID++
	return s.lastID
}

// snapshot captures the whole tree for undoing cascading deletes
type snapshot struct {
	manuals     map[uint32]Manual
	assignments map[uint32]Assignment
	sections    map[uint32]Section
	policies    map[uint32]Policy
	contents    map[uint32]Content
	reads       map[readKey]Read
}

func (s *memoryStore) snapshot() snapshot {
	snap := snapshot{
		manuals:     make(map[uint32]Manual, len(s.manuals)),
		assignments: make(map[uint32]Assignment, len(s.assignments)),
		sections:    make(map[uint32]Section, len(s.sections)),
		policies:    make(map[uint32]Policy, len(s.policies)),
		contents:    make(map[uint32]Content, len(s.contents)),
		reads:       make(map[readKey]Read, len(s.reads)),
	}

	for k, v := range s.manuals {
		snap.manuals[k] = v
	}

	for k, v := range s.assignments {
		snap.assignments[k] = v
	}

	for k, v := range s.sections {
		snap.sections[k] = v
	}

	for k, v := range s.policies {
		snap.policies[k] = v
	}

	for k, v := range s.contents {
		snap.contents[k] = v
	}

	for k, v := range s.reads {
		snap.reads[k] = v
	}

	return snap
}

func (s *memoryStore) journalSnapshot(ctx context.Context) {
	snap := s.snapshot()

	database.Journal(ctx, func() {
		s.Lock()
		s.manuals = snap.manuals
		s.assignments = snap.assignments
		s.sections = snap.sections
		s.policies = snap.policies
		s.contents = snap.contents
		s.reads = snap.reads
		s.Unlock()
	})
}

// cascading deletes, the caller must hold the write lock

func (s *memoryStore) dropContent(id uint32) {
	delete(s.contents, id)

	for k := range s.reads {
		if k.contentID == id {
			delete(s.reads, k)
		}
	}
}

func (s *memoryStore) dropPolicy(id uint32) {
	delete(s.policies, id)

	for cid, c := range s.contents {
		if c.PolicyID == id {
			s.dropContent(cid)
		}
	}
}

func (s *memoryStore) dropSection(id uint32) {
	delete(s.sections, id)

	for pid, p := range s.policies {
		if p.SectionID == id {
			s.dropPolicy(pid)
		}
	}
}

func (s *memoryStore) dropManual(id uint32) {
	delete(s.manuals, id)

	for aid, a := range s.assignments {
		if a.ManualID == id {
			delete(s.assignments, aid)
		}
	}

	for sid, sec := range s.sections {
		if sec.ManualID == id {
			s.dropSection(sid)
		}
	}
}

//---------------------------------------------------------------------------
// manuals
//---------------------------------------------------------------------------

func (s *memoryStore) CreateManual(ctx context.Context, m Manual) (Manual, error) {
	if m.ID != 0 {
		return m, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	m.ID = s.nextID()
	s.manuals[m.ID] = m

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.manuals, m.ID)
		s.Unlock()
	})

	return m, nil
}

func (s *memoryStore) UpdateManual(ctx context.Context, m Manual) error {
	s.Lock()
	defer s.Unlock()

	before, ok := s.manuals[m.ID]
	if !ok {
		return fault.NotFound("Manual")
	}

	s.manuals[m.ID] = m

	database.Journal(ctx, func() {
		s.Lock()
		s.manuals[m.ID] = before
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchManualByID(ctx context.Context, id uint32, forUpdate bool) (Manual, error) {
	s.RLock()
	defer s.RUnlock()

	m, ok := s.manuals[id]
	if !ok {
		return m, fault.NotFound("Manual")
	}

	return m, nil
}

func (s *memoryStore) FetchManuals(ctx context.Context, businessID uint32, q Query, audience *Audience) ([]Manual, error) {
	s.RLock()
	defer s.RUnlock()

	ms := make([]Manual, 0)

	if audience.IsEmpty() {
		return ms, nil
	}

	search := strings.ToLower(q.Search)

	for _, m := range s.manuals {
		if m.BusinessID != businessID {
			continue
		}

		if audience != nil && !m.Published {
			continue
		}

		if search != "" && !strings.Contains(strings.ToLower(m.Title), search) {
			continue
		}

		visible, filtered := audience == nil, q.FilterField == ""
		for _, a := range s.assignments {
			if a.ManualID != m.ID {
				continue
			}

			visible = visible || audience.Includes(a)
			filtered = filtered || q.matches(a)
		}

		if visible && filtered {
			ms = append(ms, m)
		}
	}

	sort.Slice(ms, func(i, j int) bool {
		if q.SortField == "title" && ms[i].Title != ms[j].Title {
			if q.Ascending() {
				return ms[i].Title < ms[j].Title
			}

			return ms[i].Title > ms[j].Title
		}

		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}

		return ms[i].ID > ms[j].ID
	})

	if q.Limit > 0 {
		offset := int(q.Offset())
		if offset >= len(ms) {
			return ms[:0], nil
		}

		end := offset + int(q.Limit)
		if end > len(ms) {
			end = len(ms)
		}

		ms = ms[offset:end]
	}

	return ms, nil
}

func (s *memoryStore) DeleteManualByID(ctx context.Context, id uint32) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.manuals[id]; !ok {
		return fault.NotFound("Manual")
	}

	s.journalSnapshot(ctx)
	s.dropManual(id)

	return nil
}

//---------------------------------------------------------------------------
// assignments
//---------------------------------------------------------------------------

func (s *memoryStore) CreateAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	if a.ID != 0 {
		return a, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.manuals[a.ManualID]; !ok {
		return a, fault.Invariant("ManualAssignment", "Insert", "referenced record does not exist or is still in use")
	}

	a.ID = s.nextID()
	s.assignments[a.ID] = a

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.assignments, a.ID)
		s.Unlock()
	})

	return a, nil
}

func (s *memoryStore) UpdateAssignment(ctx context.Context, a Assignment) error {
	s.Lock()
	defer s.Unlock()

	before, ok := s.assignments[a.ID]
	if !ok {
		return fault.NotFound("ManualAssignment")
	}

	s.assignments[a.ID] = a

	database.Journal(ctx, func() {
		s.Lock()
		s.assignments[a.ID] = before
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchAssignmentByID(ctx context.Context, id uint32, forUpdate bool) (Assignment, error) {
	s.RLock()
	defer s.RUnlock()

	a, ok := s.assignments[id]
	if !ok {
		return a, fault.NotFound("ManualAssignment")
	}

	return a, nil
}

func (s *memoryStore) FetchAssignmentsByManualID(ctx context.Context, manualID uint32, forUpdate bool) ([]Assignment, error) {
	s.RLock()
	defer s.RUnlock()

	as := make([]Assignment, 0)
	for _, a := range s.assignments {
		if a.ManualID == manualID {
			as = append(as, a)
		}
	}

	sort.Slice(as, func(i, j int) bool { return as[i].ID < as[j].ID })

	return as, nil
}

func (s *memoryStore) DeleteAssignmentByID(ctx context.Context, id uint32) error {
	s.Lock()
	defer s.Unlock()

	before, ok := s.assignments[id]
	if !ok {
		return fault.NotFound("ManualAssignment")
	}

	delete(s.assignments, id)

	database.Journal(ctx, func() {
		s.Lock()
		s.assignments[id] = before
		s.Unlock()
	})

	return nil
}

//---------------------------------------------------------------------------
// sections
//---------------------------------------------------------------------------

func (s *memoryStore) CreateSection(ctx context.Context, sec Section) (Section, error) {
	if sec.ID != 0 {
		return sec, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.manuals[sec.ManualID]; !ok {
		return sec, fault.Invariant("ManualSection", "Insert", "referenced record does not exist or is still in use")
	}

	sec.ID = s.nextID()
	s.sections[sec.ID] = sec

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.sections, sec.ID)
		s.Unlock()
	})

	return sec, nil
}

func (s *memoryStore) UpdateSection(ctx context.Context, sec Section) error {
	s.Lock()
	defer s.Unlock()

	before, ok := s.sections[sec.ID]
	if !ok {
		return fault.NotFound("ManualSection")
	}

	s.sections[sec.ID] = sec

	database.Journal(ctx, func() {
		s.Lock()
		s.sections[sec.ID] = before
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchSectionByID(ctx context.Context, id uint32, forUpdate bool) (Section, error) {
	s.RLock()
	defer s.RUnlock()

	sec, ok := s.sections[id]
	if !ok {
		return sec, fault.NotFound("ManualSection")
	}

	return sec, nil
}

func (s *memoryStore) FetchSectionsByManualID(ctx context.Context, manualID uint32) ([]Section, error) {
	s.RLock()
	defer s.RUnlock()

	ss := make([]Section, 0)
	for _, sec := range s.sections {
		if sec.ManualID == manualID {
			ss = append(ss, sec)
		}
	}

	sort.Slice(ss, func(i, j int) bool { return ss[i].ID < ss[j].ID })

	return ss, nil
}

func (s *memoryStore) DeleteSectionByID(ctx context.Context, id uint32) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.sections[id]; !ok {
		return fault.NotFound("ManualSection")
	}

	s.journalSnapshot(ctx)
	s.dropSection(id)

	return nil
}

//---------------------------------------------------------------------------
// policies
//---------------------------------------------------------------------------

func (s *memoryStore) CreatePolicy(ctx context.Context, p Policy) (Policy, error) {
	if p.ID != 0 {
		return p, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.sections[p.SectionID]; !ok {
		return p, fault.Invariant("Policy", "Insert", "referenced record does not exist or is still in use")
	}

	p.ID = s.nextID()
	s.policies[p.ID] = p

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.policies, p.ID)
		s.Unlock()
	})

	return p, nil
}

func (s *memoryStore) UpdatePolicy(ctx context.Context, p Policy) error {
	s.Lock()
	defer s.Unlock()

	before, ok := s.policies[p.ID]
	if !ok {
		return fault.NotFound("Policy")
	}

	s.policies[p.ID] = p

	database.Journal(ctx, func() {
		s.Lock()
		s.policies[p.ID] = before
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchPolicyByID(ctx context.Context, id uint32, forUpdate bool) (Policy, error) {
	s.RLock()
	defer s.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return p, fault.NotFound("Policy")
	}

	return p, nil
}

func (s *memoryStore) FetchPoliciesBySectionID(ctx context.Context, sectionID uint32) ([]Policy, error) {
	s.RLock()
	defer s.RUnlock()

	ps := make([]Policy, 0)
	for _, p := range s.policies {
		if p.SectionID == sectionID {
			ps = append(ps, p)
		}
	}

	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })

	return ps, nil
}

func (s *memoryStore) DeletePolicyByID(ctx context.Context, id uint32) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.policies[id]; !ok {
		return fault.NotFound("Policy")
	}

	s.journalSnapshot(ctx)
	s.dropPolicy(id)

	return nil
}

//---------------------------------------------------------------------------
// contents
//---------------------------------------------------------------------------

func (s *memoryStore) CreateContent(ctx context.Context, c Content) (Content, error) {
	if c.ID != 0 {
		return c, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.policies[c.PolicyID]; !ok {
		return c, fault.Invariant("Content", "Insert", "referenced record does not exist or is still in use")
	}

	c.ID = s.nextID()
	c.Checksum = 0
	s.contents[c.ID] = c

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.contents, c.ID)
		s.Unlock()
	})

	return c, nil
}

func (s *memoryStore) UpdateContent(ctx context.Context, c Content) error {
	s.Lock()
	defer s.Unlock()

	before, ok := s.contents[c.ID]
	if !ok {
		return fault.NotFound("Content")
	}

	c.Checksum = 0
	s.contents[c.ID] = c

	database.Journal(ctx, func() {
		s.Lock()
		s.contents[c.ID] = before
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchContentByID(ctx context.Context, id uint32, forUpdate bool) (Content, error) {
	s.RLock()
	defer s.RUnlock()

	c, ok := s.contents[id]
	if !ok {
		return c, fault.NotFound("Content")
	}

	return c, nil
}

func (s *memoryStore) FetchContentsByPolicyID(ctx context.Context, policyID uint32) ([]Content, error) {
	s.RLock()
	defer s.RUnlock()

	cs := make([]Content, 0)
	for _, c := range s.contents {
		if c.PolicyID == policyID {
			cs = append(cs, c)
		}
	}

	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })

	return cs, nil
}

func (s *memoryStore) DeleteContentByID(ctx context.Context, id uint32) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.contents[id]; !ok {
		return fault.NotFound("Content")
	}

	s.journalSnapshot(ctx)
	s.dropContent(id)

	return nil
}

//---------------------------------------------------------------------------
// read receipts
//---------------------------------------------------------------------------

func (s *memoryStore) CreateRead(ctx context.Context, r Read) error {
	s.Lock()
	defer s.Unlock()

	key := readKey{contentID: r.ContentID, userID: r.UserID}
	if _, ok := s.reads[key]; ok {
		return fault.Invariant("ContentRead", "Insert", "record already exists")
	}

	if _, ok := s.contents[r.ContentID]; !ok {
		return fault.Invariant("ContentRead", "Insert", "referenced record does not exist or is still in use")
	}

	s.reads[key] = r

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.reads, key)
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) HasRead(ctx context.Context, contentID, userID uint32) (bool, error) {
	s.RLock()
	defer s.RUnlock()

	_, ok := s.reads[readKey{contentID: contentID, userID: userID}]

	return ok, nil
}

func (s *memoryStore) DeleteRead(ctx context.Context, contentID, userID uint32) error {
	s.Lock()
	defer s.Unlock()

	key := readKey{contentID: contentID, userID: userID}

	before, ok := s.reads[key]
	if !ok {
		return fault.NotFound("ContentRead")
	}

	delete(s.reads, key)

	database.Journal(ctx, func() {
		s.Lock()
		s.reads[key] = before
		s.Unlock()
	})

	return nil
}
