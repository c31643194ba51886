package service

import (
	"context"
	"encoding/json"

	"github.com/linguaprep/examroom-backend/internal/config"
	"github.com/linguaprep/examroom-backend/internal/engine"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AnswerPersister is the production engine.Persister: every answer
// mutation lands in the session's Redis hash (for fast state restore) and
// on the persistence queue consumed by the autosave worker. Fire and
// forget — failures are logged, the worker's retry loop and the Redis
// hash fallback cover the gaps.
type AnswerPersister struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewAnswerPersister creates a new AnswerPersister.
func NewAnswerPersister(rdb *redis.Client, log zerolog.Logger) *AnswerPersister {
	return &AnswerPersister{
		rdb: rdb,
		log: log.With().Str("component", "answer_persister").Logger(),
	}
}

// Queue implements engine.Persister. Never blocks the mutation path on an
// acknowledgement; runs the writes on a background context.
func (p *AnswerPersister) Queue(intent engine.PersistIntent) {
	go func() {
		ctx := context.Background()

		hashKey := config.CacheKey.SessionAnswersKey(intent.SessionID.String())
		if err := p.rdb.HSet(ctx, hashKey, intent.QuestionID.String(), intent.Value).Err(); err != nil {
			p.log.Warn().Err(err).Str("session_id", intent.SessionID.String()).Msg("Autosave hash write failed")
		}

		payload, _ := json.Marshal(map[string]string{
			"session_id":  intent.SessionID.String(),
			"question_id": intent.QuestionID.String(),
			"value":       intent.Value,
		})
		if err := p.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
			p.log.Warn().Err(err).Str("session_id", intent.SessionID.String()).Msg("Persist queue push failed")
		}
	}()
}
