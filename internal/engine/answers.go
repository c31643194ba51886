package engine

import (
	"sync"

	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/model"
)

// PersistIntent is a fire-and-forget request to durably save one answer.
// Failures are retried by the persistence collaborator, never surfaced to
// the student inline.
type PersistIntent struct {
	SessionID  uuid.UUID
	QuestionID uuid.UUID
	Value      string
}

// Persister receives persist intents from the answer store. Queue must not
// block: the store calls it on the mutation path.
type Persister interface {
	Queue(intent PersistIntent)
}

// AnswerStore is the in-memory source of truth for answers and
// review-later flags during an active session. Mutations are applied in
// the order received; every Set is also queued for background persistence.
type AnswerStore struct {
	mu        sync.Mutex
	sessionID uuid.UUID
	values    map[uuid.UUID]model.AnswerValue
	flags     map[uuid.UUID]struct{}
	persister Persister
}

// NewAnswerStore creates an empty store for one session. persister may be
// nil (restore-only or test usage).
func NewAnswerStore(sessionID uuid.UUID, persister Persister) *AnswerStore {
	return &AnswerStore{
		sessionID: sessionID,
		values:    make(map[uuid.UUID]model.AnswerValue),
		flags:     make(map[uuid.UUID]struct{}),
		persister: persister,
	}
}

// Restore preloads previously saved answers without emitting persist
// intents. Used once at session start. Flags are deliberately not
// restored: review marks are session-instance-local.
func (s *AnswerStore) Restore(saved map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for qid, raw := range saved {
		id, err := uuid.Parse(qid)
		if err != nil {
			continue
		}
		s.values[id] = model.DecodeAnswerValue(raw)
	}
}

// Set stores the answer for a question, overwriting any prior value in
// place, and queues it for background persistence. Total: always succeeds.
func (s *AnswerStore) Set(questionID uuid.UUID, value model.AnswerValue) {
	s.mu.Lock()
	s.values[questionID] = value
	p := s.persister
	s.mu.Unlock()

	if p != nil {
		p.Queue(PersistIntent{
			SessionID:  s.sessionID,
			QuestionID: questionID,
			Value:      value.Encode(),
		})
	}
}

// Get returns the current value for a question, if any.
func (s *AnswerStore) Get(questionID uuid.UUID) (model.AnswerValue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[questionID]
	return v, ok
}

// IsAnswered reports whether the question has a non-empty answer.
func (s *AnswerStore) IsAnswered(questionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[questionID]
	return ok && v.IsAnswered()
}

// ToggleFlag flips the review-later mark for a question and returns the
// new state.
func (s *AnswerStore) ToggleFlag(questionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[questionID]; ok {
		delete(s.flags, questionID)
		return false
	}
	s.flags[questionID] = struct{}{}
	return true
}

// IsFlagged reports whether the question carries a review-later mark.
func (s *AnswerStore) IsFlagged(questionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.flags[questionID]
	return ok
}

// Snapshot returns a frozen copy of all answered questions in the given
// question order. Unanswered questions are omitted; the snapshot is safe
// to use after further mutations.
func (s *AnswerStore) Snapshot(order []uuid.UUID) []model.SessionAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := make([]model.SessionAnswer, 0, len(s.values))
	for _, qid := range order {
		v, ok := s.values[qid]
		if !ok {
			continue
		}
		answers = append(answers, model.SessionAnswer{
			SessionID:  s.sessionID,
			QuestionID: qid,
			Value:      v.Encode(),
		})
	}
	return answers
}
