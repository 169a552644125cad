package quiz

import (
	"context"
	"sort"
	"sync"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
)

const msgReferential = "referenced record does not exist or is still in use"

type resultKey struct {
	attemptID  uint32
	questionID uint32
}

// memoryStore keeps quizzes, attempts and results in memory
// NOTE: writes are journaled so that a failed transaction reverts them
type memoryStore struct {
	lastID    uint32
	quizzes   map[uint32]Quiz
	sections  map[uint32]Section
	questions map[uint32]Question
	answers   map[uint32]Answer
	attempts  map[uint32]Attempt
	results   map[resultKey]Result
	sync.RWMutex
}

// NewMemoryStore returns an initialized quiz store that stores everything in memory
func NewMemoryStore() Store {
	return &memoryStore{
		quizzes:   make(map[uint32]Quiz),
		sections:  make(map[uint32]Section),
		questions: make(map[uint32]Question),
		answers:   make(map[uint32]Answer),
		attempts:  make(map[uint32]Attempt),
		results:   make(map[resultKey]Result),
	}
}

func (s *memoryStore) nextID() uint32 {
	s.lastID++
	return s.lastID
}

type snapshot struct {
	quizzes   map[uint32]Quiz
	sections  map[uint32]Section
	questions map[uint32]Question
	answers   map[uint32]Answer
	attempts  map[uint32]Attempt
	results   map[resultKey]Result
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}

	return c
}

// restore refills a map in place, keeping its identity for other undo steps
func restore[K comparable, V any](dst, src map[K]V) {
	clear(dst)
	for k, v := range src {
		dst[k] = v
	}
}

// children collects the records matching keep, ordered by id
func children[V any](m map[uint32]V, keep func(V) bool) []V {
	ids := make([]uint32, 0)
	for id, v := range m {
		if keep(v) {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	vs := make([]V, 0, len(ids))
	for _, id := range ids {
		vs = append(vs, m[id])
	}

	return vs
}

// journalSnapshot captures the whole store so that a cascading
// delete can be undone, the caller must hold the write lock
func (s *memoryStore) journalSnapshot(ctx context.Context) {
	snap := snapshot{
		quizzes:   copyMap(s.quizzes),
		sections:  copyMap(s.sections),
		questions: copyMap(s.questions),
		answers:   copyMap(s.answers),
		attempts:  copyMap(s.attempts),
		results:   copyMap(s.results),
	}

	database.Journal(ctx, func() {
		s.Lock()
		restore(s.quizzes, snap.quizzes)
		restore(s.sections, snap.sections)
		restore(s.questions, snap.questions)
		restore(s.answers, snap.answers)
		restore(s.attempts, snap.attempts)
		restore(s.results, snap.results)
		s.Unlock()
	})
}

// cascading deletes, the caller must hold the write lock

func (s *memoryStore) dropAnswer(id uint32) {
	delete(s.answers, id)

	for k, r := range s.results {
		if r.AnswerID == id {
			delete(s.results, k)
		}
	}
}

func (s *memoryStore) dropQuestion(id uint32) {
	delete(s.questions, id)

	for aid, a := range s.answers {
		if a.QuestionID == id {
			s.dropAnswer(aid)
		}
	}

	for k := range s.results {
		if k.questionID == id {
			delete(s.results, k)
		}
	}
}

func (s *memoryStore) dropSection(id uint32) {
	delete(s.sections, id)

	for qid, q := range s.questions {
		if q.SectionID == id {
			s.dropQuestion(qid)
		}
	}
}

func (s *memoryStore) dropQuiz(id uint32) {
	delete(s.quizzes, id)

	for sid, sec := range s.sections {
		if sec.QuizID == id {
			s.dropSection(sid)
		}
	}

	for aid, a := range s.attempts {
		if a.QuizID != id {
			continue
		}

		delete(s.attempts, aid)

		for k := range s.results {
			if k.attemptID == aid {
				delete(s.results, k)
			}
		}
	}
}

// put stores a value under a key and journals the reverse operation
func put[K comparable, V any](ctx context.Context, mu sync.Locker, m map[K]V, key K, value V) {
	before, existed := m[key]
	m[key] = value

	database.Journal(ctx, func() {
		mu.Lock()
		if existed {
			m[key] = before
		} else {
			delete(m, key)
		}
		mu.Unlock()
	})
}

//---------------------------------------------------------------------------
// quizzes
//---------------------------------------------------------------------------

func (s *memoryStore) CreateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	if q.ID != 0 {
		return q, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	q.ID = s.nextID()
	put(ctx, s, s.quizzes, q.ID, q)

	return q, nil
}

func (s *memoryStore) UpdateQuiz(ctx context.Context, q Quiz) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.quizzes[q.ID]; !ok {
		return fault.NotFound("Quiz")
	}

	put(ctx, s, s.quizzes, q.ID, q)

	return nil
}

func (s *memoryStore) FetchQuizByID(ctx context.Context, id uint32, forUpdate bool) (Quiz, error) {
	s.RLock()
	defer s.RUnlock()

	q, ok := s.quizzes[id]
	if !ok {
		return q, fault.NotFound("Quiz")
	}

	return q, nil
}

func (s *memoryStore) FetchQuizzesByManualID(ctx context.Context, manualID uint32) ([]Quiz, error) {
	s.RLock()
	defer s.RUnlock()

	qs := make([]Quiz, 0)
	for _, q := range s.quizzes {
		if q.ManualID == manualID {
			qs = append(qs, q)
		}
	}

	sort.Slice(qs, func(i, j int) bool { return qs[i].ID < qs[j].ID })

	return qs, nil
}

func (s *memoryStore) DeleteQuizByID(ctx context.Context, id uint32) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.quizzes[id]; !ok {
		return fault.NotFound("Quiz")
	}

	s.journalSnapshot(ctx)
	s.dropQuiz(id)

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

	if _, ok := s.quizzes[sec.QuizID]; !ok {
		return sec, fault.Invariant("QuizSection", "Insert", msgReferential)
	}

	sec.ID = s.nextID()
	put(ctx, s, s.sections, sec.ID, sec)

	return sec, nil
}

func (s *memoryStore) UpdateSection(ctx context.Context, sec Section) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.sections[sec.ID]; !ok {
		return fault.NotFound("QuizSection")
	}

	put(ctx, s, s.sections, sec.ID, sec)

	return nil
}

func (s *memoryStore) FetchSectionByID(ctx context.Context, id uint32, forUpdate bool) (Section, error) {
	s.RLock()
	defer s.RUnlock()

	sec, ok := s.sections[id]
	if !ok {
		return sec, fault.NotFound("QuizSection")
	}

	return sec, nil
}

func (s *memoryStore) FetchSectionsByQuizID(ctx context.Context, quizID uint32) ([]Section, error) {
	s.RLock()
	defer s.RUnlock()

	return children(s.sections, func(sec Section) bool { return sec.QuizID == quizID }), nil
}

func (s *memoryStore) DeleteSectionByID(ctx context.Context, id uint32) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.sections[id]; !ok {
		return fault.NotFound("QuizSection")
	}

	s.journalSnapshot(ctx)
	s.dropSection(id)

	return nil
}

//---------------------------------------------------------------------------
// questions
//---------------------------------------------------------------------------

func (s *memoryStore) CreateQuestion(ctx context.Context, q Question) (Question, error) {
	if q.ID != 0 {
		return q, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.sections[q.SectionID]; !ok {
		return q, fault.Invariant("Question", "Insert", msgReferential)
	}

	q.ID = s.nextID()
	put(ctx, s, s.questions, q.ID, q)

	return q, nil
}

func (s *memoryStore) UpdateQuestion(ctx context.Context, q Question) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.questions[q.ID]; !ok {
		return fault.NotFound("Question")
	}

	put(ctx, s, s.questions, q.ID, q)

	return nil
}

func (s *memoryStore) FetchQuestionByID(ctx context.Context, id uint32, forUpdate bool) (Question, error) {
	s.RLock()
	defer s.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return q, fault.NotFound("Question")
	}

	return q, nil
}

func (s *memoryStore) FetchQuestionsBySectionID(ctx context.Context, sectionID uint32) ([]Question, error) {
	s.RLock()
	defer s.RUnlock()

	return children(s.questions, func(q Question) bool { return q.SectionID == sectionID }), nil
}

func (s *memoryStore) DeleteQuestionByID(ctx context.Context, id uint32) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.questions[id]; !ok {
		return fault.NotFound("Question")
	}

	s.journalSnapshot(ctx)
	s.dropQuestion(id)

	return nil
}

//---------------------------------------------------------------------------
// answers
//---------------------------------------------------------------------------

func (s *memoryStore) CreateAnswer(ctx context.Context, a Answer) (Answer, error) {
	if a.ID != 0 {
		return a, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.questions[a.QuestionID]; !ok {
		return a, fault.Invariant("QuizAnswer", "Insert", msgReferential)
	}

	a.ID = s.nextID()
	put(ctx, s, s.answers, a.ID, a)

	return a, nil
}

func (s *memoryStore) UpdateAnswer(ctx context.Context, a Answer) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.answers[a.ID]; !ok {
		return fault.NotFound("QuizAnswer")
	}

	put(ctx, s, s.answers, a.ID, a)

	return nil
}

func (s *memoryStore) FetchAnswerByID(ctx context.Context, id uint32, forUpdate bool) (Answer, error) {
	s.RLock()
	defer s.RUnlock()

	a, ok := s.answers[id]
	if !ok {
		return a, fault.NotFound("QuizAnswer")
	}

	return a, nil
}

func (s *memoryStore) FetchAnswersByQuestionID(ctx context.Context, questionID uint32) ([]Answer, error) {
	s.RLock()
	defer s.RUnlock()

	return children(s.answers, func(a Answer) bool { return a.QuestionID == questionID }), nil
}

func (s *memoryStore) DeleteAnswerByID(ctx context.Context, id uint32) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.answers[id]; !ok {
		return fault.NotFound("QuizAnswer")
	}

	s.journalSnapshot(ctx)
	s.dropAnswer(id)

	return nil
}

//---------------------------------------------------------------------------
// attempts
//---------------------------------------------------------------------------

func (s *memoryStore) CreateAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	if a.ID != 0 {
		return a, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.quizzes[a.QuizID]; !ok {
		return a, fault.Invariant("QuizAttempt", "Insert", msgReferential)
	}

	a.ID = s.nextID()
	put(ctx, s, s.attempts, a.ID, a)

	return a, nil
}

func (s *memoryStore) UpdateAttempt(ctx context.Context, a Attempt) error {
	s.Lock()
	defer s.Unlock()

	current, ok := s.attempts[a.ID]
	if !ok {
		return fault.NotFound("QuizAttempt")
	}

	current.UpdatedAt = a.UpdatedAt
	put(ctx, s, s.attempts, a.ID, current)

	return nil
}

func (s *memoryStore) FetchAttemptByID(ctx context.Context, id uint32, forUpdate bool) (Attempt, error) {
	s.RLock()
	defer s.RUnlock()

	a, ok := s.attempts[id]
	if !ok {
		return a, fault.NotFound("QuizAttempt")
	}

	return a, nil
}

func (s *memoryStore) FetchAttempts(ctx context.Context, quizID, userID uint32) ([]Attempt, error) {
	s.RLock()
	defer s.RUnlock()

	as := make([]Attempt, 0)
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.UserID == userID {
			as = append(as, a)
		}
	}

	sort.Slice(as, func(i, j int) bool { return as[i].ID < as[j].ID })

	return as, nil
}

func (s *memoryStore) FetchAttemptsByQuizID(ctx context.Context, quizID uint32) ([]Attempt, error) {
	s.RLock()
	defer s.RUnlock()

	return children(s.attempts, func(a Attempt) bool { return a.QuizID == quizID }), nil
}

func (s *memoryStore) CountAttempts(ctx context.Context, quizID, userID uint32) (uint32, error) {
	s.RLock()
	defer s.RUnlock()

	var count uint32
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.UserID == userID {
			count++
		}
	}

	return count, nil
}

//---------------------------------------------------------------------------
// results
//---------------------------------------------------------------------------

func (s *memoryStore) CreateResult(ctx context.Context, r Result) (Result, error) {
	if r.ID != 0 {
		return r, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	key := resultKey{attemptID: r.AttemptID, questionID: r.QuestionID}
	if _, ok := s.results[key]; ok {
		return r, fault.Invariant("QuizResult", "Insert", "record already exists")
	}

	_, okAttempt := s.attempts[r.AttemptID]
	_, okQuestion := s.questions[r.QuestionID]
	_, okAnswer := s.answers[r.AnswerID]

	if !okAttempt || !okQuestion || !okAnswer {
		return r, fault.Invariant("QuizResult", "Insert", msgReferential)
	}

	r.ID = s.nextID()
	put(ctx, s, s.results, key, r)

	return r, nil
}

func (s *memoryStore) FetchResultsByAttemptID(ctx context.Context, attemptID uint32) ([]Result, error) {
	s.RLock()
	defer s.RUnlock()

	rs := make([]Result, 0)
	for k, r := range s.results {
		if k.attemptID == attemptID {
			rs = append(rs, r)
		}
	}

	sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })

	return rs, nil
}
