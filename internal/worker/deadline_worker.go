package worker

import (
	"context"
	"time"

	"github.com/linguaprep/examroom-backend/internal/service"
	"github.com/rs/zerolog"
)

// DeadlineWorker sweeps the deadline index and force-submits sessions
// whose time ran out with no live engine to fire the timer (client gone,
// server restarted mid-session). The status-guarded finalize makes the
// sweep safe to race with a live engine's own timeout submit.
type DeadlineWorker struct {
	sessions *service.SessionService
	interval time.Duration
	log      zerolog.Logger
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(sessions *service.SessionService, interval time.Duration, log zerolog.Logger) *DeadlineWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &DeadlineWorker{
		sessions: sessions,
		interval: interval,
		log:      log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DeadlineWorker) sweep(ctx context.Context) {
	due, err := w.sessions.DueSessions(ctx, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("Deadline scan failed")
		return
	}

	for _, sessionID := range due {
		if err := w.sessions.SubmitFromSaved(ctx, sessionID); err != nil {
			// Left in the index; the next sweep retries.
			w.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Forced submit failed")
			continue
		}
	}
}
