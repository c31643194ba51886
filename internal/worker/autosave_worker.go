package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/config"
	"github.com/linguaprep/examroom-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// answerUpserter persists one autosaved answer; production uses
// repository.AnswerRepository.
type answerUpserter interface {
	Upsert(ctx context.Context, sessionID, questionID uuid.UUID, value string) error
}

// answerQueue is the subset of the redis client the worker consumes.
type answerQueue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// AutosaveWorker consumes the persistence queue and UPSERTs answers to
// PostgreSQL. The queue absorbs write bursts so the autosave hot path
// never waits on pg.
type AutosaveWorker struct {
	answers answerUpserter
	rdb     answerQueue
	log     zerolog.Logger
	backoff time.Duration
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(answers *repository.AnswerRepository, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		answers: answers,
		rdb:     rdb,
		log:     log.With().Str("component", "autosave_worker").Logger(),
		backoff: 5 * time.Second,
	}
}

type answerPayload struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload answerPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistAnswer(ctx, &payload); err != nil {
		w.log.Error().Err(err).
			Str("session_id", payload.SessionID).
			Str("question_id", payload.QuestionID).
			Dur("backoff", w.backoff).
			Msg("Persist error, retrying after backoff")
		// Push back to queue for retry. The backoff must not outlive the
		// worker context or shutdown stalls behind it.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		select {
		case <-ctx.Done():
		case <-time.After(w.backoff):
		}
	}
}

func (w *AutosaveWorker) persistAnswer(ctx context.Context, p *answerPayload) error {
	sessionID, err := uuid.Parse(p.SessionID)
	if err != nil {
		return err
	}
	questionID, err := uuid.Parse(p.QuestionID)
	if err != nil {
		return err
	}
	return w.answers.Upsert(ctx, sessionID, questionID, p.Value)
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var payload answerPayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistAnswer(ctx, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
