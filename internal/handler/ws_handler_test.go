package handler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/engine"
	"github.com/linguaprep/examroom-backend/internal/model"
	"github.com/linguaprep/examroom-backend/internal/service"
	"github.com/rs/zerolog"
)

type nopFinalizer struct{}

func (nopFinalizer) Finalize(ctx context.Context, sessionID uuid.UUID, answers []model.SessionAnswer) error {
	return nil
}

func newTestHandler() *WSHandler {
	return NewWSHandler(
		engine.NewRegistry(), nil, nil, nil, nil,
		service.NewSpeechService("", zerolog.Nop()),
		zerolog.Nop(), nil,
	)
}

func minutePaper(examID uuid.UUID) *model.ExamPaper {
	return &model.ExamPaper{
		ExamID:          examID,
		Title:           "Placement",
		DurationMinutes: 1,
		Sections: []model.Section{{
			ID:   uuid.New(),
			Type: model.SectionTypeReading,
			Groups: []model.QuestionGroup{{
				ID:        uuid.New(),
				Questions: []model.Question{{ID: uuid.New(), Type: model.QuestionTypeShortAnswer}},
			}},
		}},
	}
}

// buildLiveEngine registers an engine for the session the way SessionStream
// does, with test collaborators in place of pg/redis-backed ones.
func buildLiveEngine(t *testing.T, h *WSHandler, session model.ExamSession) {
	t.Helper()
	link := h.linkFor(session.ID)
	_, err := h.registry.GetOrCreate(session.ID, func() (*engine.Engine, error) {
		cfg := h.engineConfig(&session, minutePaper(session.ExamID), nil, link)
		cfg.Persister = nil
		cfg.Finalizer = nopFinalizer{}
		cfg.TickInterval = 10 * time.Millisecond
		e, err := engine.New(cfg)
		if err != nil {
			return nil, err
		}
		e.Start()
		return e, nil
	})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
}

func waitForEviction(t *testing.T, h *WSHandler, sessionID uuid.UUID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, live := h.registry.Get(sessionID)
		h.mu.Lock()
		linked := len(h.links) > 0
		h.mu.Unlock()
		if !live && !linked {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for engine and link eviction")
}

func TestTimeoutWithoutConnectionEvictsEngine(t *testing.T) {
	h := newTestHandler()
	session := model.ExamSession{
		ID:        uuid.New(),
		ExamID:    uuid.New(),
		StudentID: 7,
		Status:    model.SessionStatusInProgress,
		// Deadline lands shortly after start, with no connection attached.
		StartedAt: time.Now().Add(-1*time.Minute + 80*time.Millisecond),
	}

	buildLiveEngine(t, h, session)
	waitForEviction(t, h, session.ID)
}

func TestResumePastDeadlineEvictsEngine(t *testing.T) {
	h := newTestHandler()
	session := model.ExamSession{
		ID:        uuid.New(),
		ExamID:    uuid.New(),
		StudentID: 7,
		Status:    model.SessionStatusInProgress,
		StartedAt: time.Now().Add(-2 * time.Minute),
	}

	// The expired timer submits synchronously inside the registry build;
	// eviction must still complete without deadlocking on the registry.
	buildLiveEngine(t, h, session)
	waitForEviction(t, h, session.ID)
}
