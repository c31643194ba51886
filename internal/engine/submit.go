package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/model"
	"github.com/rs/zerolog"
)

// SubmitTrigger names the source of a submission request.
type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "manual"
	TriggerTimeout SubmitTrigger = "timeout"
)

// SubmitState is the coordinator's lifecycle.
type SubmitState string

const (
	SubmitIdle     SubmitState = "idle"
	SubmitInFlight SubmitState = "submitting"
	SubmitDone     SubmitState = "submitted"
)

// Finalizer persists the frozen answer snapshot and flips the session to
// submitted, atomically from the caller's contract. The snapshot replaces
// any prior partial persistence for the session.
type Finalizer interface {
	Finalize(ctx context.Context, sessionID uuid.UUID, answers []model.SessionAnswer) error
}

// Coordinator orchestrates the terminal transition of a session. Manual
// submits and timer expiry both funnel through Submit; a single-flight
// latch guarantees exactly one effective submission even when both fire in
// the same tick. A retryable persistence failure returns the coordinator
// to idle so the user can retry; the session is never silently closed.
type Coordinator struct {
	sessionID uuid.UUID
	store     *AnswerStore
	order     []uuid.UUID
	finalizer Finalizer
	log       zerolog.Logger

	// onSubmitted runs once, after the terminal transition succeeded.
	// The engine uses it to release the capture handle and stop the timer.
	onSubmitted func(trigger SubmitTrigger)

	mu          sync.Mutex
	state       SubmitState
	submittedAt time.Time
}

// NewCoordinator creates an idle coordinator for one session.
func NewCoordinator(
	sessionID uuid.UUID,
	store *AnswerStore,
	order []uuid.UUID,
	finalizer Finalizer,
	onSubmitted func(trigger SubmitTrigger),
	log zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		sessionID:   sessionID,
		store:       store,
		order:       order,
		finalizer:   finalizer,
		onSubmitted: onSubmitted,
		log:         log.With().Str("component", "submission").Str("session_id", sessionID.String()).Logger(),
		state:       SubmitIdle,
	}
}

// Submit performs the terminal transition: snapshot the answer store,
// persist the full set as the authoritative record, then mark the session
// done. Calls while a submission is in flight or after success are
// coalesced no-ops returning nil.
func (c *Coordinator) Submit(ctx context.Context, trigger SubmitTrigger) error {
	c.mu.Lock()
	if c.state != SubmitIdle {
		c.mu.Unlock()
		return nil
	}
	c.state = SubmitInFlight
	c.mu.Unlock()

	snapshot := c.store.Snapshot(c.order)

	if err := c.finalizer.Finalize(ctx, c.sessionID, snapshot); err != nil {
		// All-or-nothing: a partial failure must not mark the session
		// submitted. Back to idle so a retry is possible.
		c.mu.Lock()
		c.state = SubmitIdle
		c.mu.Unlock()

		c.log.Error().Err(err).
			Str("trigger", string(trigger)).
			Int("answers", len(snapshot)).
			Msg("Finalize failed")
		return fmt.Errorf("%w: %v", ErrRetryablePersistence, err)
	}

	c.mu.Lock()
	c.state = SubmitDone
	c.submittedAt = time.Now()
	c.mu.Unlock()

	c.log.Info().
		Str("trigger", string(trigger)).
		Int("answers", len(snapshot)).
		Msg("Session submitted")

	if c.onSubmitted != nil {
		c.onSubmitted(trigger)
	}
	return nil
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() SubmitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SubmittedAt returns the successful submission instant, if any.
func (c *Coordinator) SubmittedAt() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submittedAt, c.state == SubmitDone
}
