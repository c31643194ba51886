package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/model"
	"github.com/rs/zerolog"
)

// Config wires one session's engine. Persister, Finalizer, Device,
// Uploader, and Recognizer are the collaborator seams; tests inject fakes,
// production injects Redis/PostgreSQL/stream-backed implementations.
type Config struct {
	Session model.ExamSession
	Paper   *model.ExamPaper
	// SavedAnswers restores prior partial progress (questionID → wire value).
	SavedAnswers map[string]string

	Persister  Persister
	Finalizer  Finalizer
	Device     CaptureDevice
	Uploader   ArtifactUploader
	Recognizer Recognizer

	// TickInterval overrides the 1s timer tick, for tests.
	TickInterval time.Duration
	// OnTick receives remaining seconds each tick (optional).
	OnTick func(remaining int64)
	// OnSubmitted observes the terminal transition, whatever triggered it.
	OnSubmitted func(trigger SubmitTrigger)
	// OnAutoSubmitError surfaces a failed timeout-triggered submission.
	// The session cannot silently vanish just because no user action
	// initiated the submit.
	OnAutoSubmitError func(err error)

	Log zerolog.Logger
}

// Engine is the stateful runtime of a single timed exam attempt, from
// start to terminal submission. It owns the countdown, the answer store,
// navigation, review aggregation, media capture, transcription, and the
// submission coordinator.
type Engine struct {
	Session model.ExamSession
	Paper   *model.ExamPaper

	Timer       *Timer
	Answers     *AnswerStore
	Nav         *Navigator
	Review      *Reviewer
	Capture     *CaptureUnit
	Transcriber *Transcriber
	Coordinator *Coordinator

	log zerolog.Logger
}

// New builds the engine for a session. Fails with ErrEmptyContent when the
// exam has no available sections and with ErrSessionClosed when the
// session already reached a terminal state.
func New(cfg Config) (*Engine, error) {
	if cfg.Session.Status != model.SessionStatusInProgress {
		return nil, ErrSessionClosed
	}
	if cfg.Paper == nil || len(cfg.Paper.Sections) == 0 {
		return nil, ErrEmptyContent
	}

	log := cfg.Log.With().
		Str("session_id", cfg.Session.ID.String()).
		Str("exam_id", cfg.Session.ExamID.String()).
		Logger()

	e := &Engine{
		Session: cfg.Session,
		Paper:   cfg.Paper,
		log:     log,
	}

	e.Answers = NewAnswerStore(cfg.Session.ID, cfg.Persister)
	e.Answers.Restore(cfg.SavedAnswers)

	e.Nav = NewNavigator(cfg.Paper.Sections)
	e.Review = NewReviewer(cfg.Paper, e.Answers, e.Nav)
	e.Capture = NewCaptureUnit(cfg.Device, cfg.Uploader, e.Answers, log)
	e.Transcriber = NewTranscriber(cfg.Recognizer, log)

	e.Coordinator = NewCoordinator(
		cfg.Session.ID,
		e.Answers,
		e.Review.QuestionOrder(),
		cfg.Finalizer,
		func(trigger SubmitTrigger) {
			e.Capture.Release()
			e.Transcriber.Detach()
			e.Timer.Stop()
			if cfg.OnSubmitted != nil {
				cfg.OnSubmitted(trigger)
			}
		},
		log,
	)

	remaining := time.Until(cfg.Session.Deadline(cfg.Paper.DurationMinutes))
	e.Timer = NewTimer(remaining, cfg.TickInterval, cfg.OnTick, func() {
		// Timeout auto-submit: same algorithm, confirmation suppressed.
		if err := e.Coordinator.Submit(context.Background(), TriggerTimeout); err != nil {
			log.Error().Err(err).Msg("Auto-submit failed")
			if cfg.OnAutoSubmitError != nil {
				cfg.OnAutoSubmitError(err)
			}
		}
	})

	return e, nil
}

// Start begins the countdown. A session resumed past its deadline expires
// immediately instead of ticking.
func (e *Engine) Start() {
	if e.Timer.Expired() {
		return
	}
	e.Timer.Start()
}

// SetAnswer records an answer. Rejected once the session is terminal.
func (e *Engine) SetAnswer(questionID uuid.UUID, value model.AnswerValue) error {
	if e.Coordinator.State() == SubmitDone {
		return ErrSessionClosed
	}
	e.Answers.Set(questionID, value)
	return nil
}

// ToggleFlag flips the review-later mark for a question.
func (e *Engine) ToggleFlag(questionID uuid.UUID) (bool, error) {
	if e.Coordinator.State() == SubmitDone {
		return false, ErrSessionClosed
	}
	return e.Answers.ToggleFlag(questionID), nil
}

// Submit is the manual submission entry point.
func (e *Engine) Submit(ctx context.Context) error {
	return e.Coordinator.Submit(ctx, TriggerManual)
}

// StartRecording acquires the capture token for a speaking question and
// attaches the live transcriber to the new recording window.
func (e *Engine) StartRecording(ctx context.Context, questionID uuid.UUID) (<-chan string, error) {
	if e.Coordinator.State() == SubmitDone {
		return nil, ErrSessionClosed
	}
	e.Transcriber.Detach()
	if err := e.Capture.Start(ctx, questionID); err != nil {
		return nil, err
	}
	return e.Transcriber.Attach(ctx), nil
}

// StopRecording finalizes the active recording into an artifact URL bound
// as the question's answer. The transcript window is discarded.
func (e *Engine) StopRecording(ctx context.Context) (string, error) {
	url, err := e.Capture.Stop(ctx)
	e.Transcriber.Detach()
	return url, err
}

// Close tears the engine down without submitting (connection loss, server
// shutdown). Durable state is untouched; the session resumes later.
func (e *Engine) Close() {
	e.Timer.Stop()
	e.Capture.Release()
	e.Transcriber.Detach()
}
