package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linguaprep/examroom-backend/internal/model"
)

// AnswerRepository handles durable answer storage: opportunistic upserts
// during the session and the atomic replace at submission.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert creates or overwrites one answer row. Used by the autosave
// worker; stale writes are safe because each write targets one question
// and values are idempotent overwrites.
func (r *AnswerRepository) Upsert(ctx context.Context, sessionID, questionID uuid.UUID, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = NOW()`,
		sessionID, questionID, value)
	return err
}

// ListBySession returns all saved answers for a session, used once at
// session start to restore partial progress.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.SessionAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_id, value
		 FROM session_answers WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.SessionAnswer
	for rows.Next() {
		var a model.SessionAnswer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.Value); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// Finalize is the terminal write: in one transaction it flips the session
// to SUBMITTED (status-guarded, so exactly one caller wins) and replaces —
// not merges — the full answer set with the frozen snapshot. A session
// that already left IN_PROGRESS makes Finalize a no-op returning nil, so
// redundant triggers coalesce across processes too.
func (r *AnswerRepository) Finalize(ctx context.Context, sessions *SessionRepository, sessionID uuid.UUID, answers []model.SessionAnswer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	won, err := sessions.MarkSubmitted(ctx, tx, sessionID, time.Now())
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	if !won {
		// Someone else already finalized this session.
		return nil
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM session_answers WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear partial answers: %w", err)
	}

	for _, a := range answers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO session_answers (session_id, question_id, value)
			 VALUES ($1, $2, $3)`,
			sessionID, a.QuestionID, a.Value); err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
