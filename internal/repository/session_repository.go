package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linguaprep/examroom-backend/internal/model"
)

// SessionRepository handles exam session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, status, started_at, submitted_at
		 FROM exam_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.Status, &s.StartedAt, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetInProgress retrieves the open session for an exam-student pair, if any.
func (r *SessionRepository) GetInProgress(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, status, started_at, submitted_at
		 FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2 AND status = $3`,
		examID, studentID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.Status, &s.StartedAt, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new in-progress session. The partial unique index on
// (exam_id, student_id) WHERE status = 'IN_PROGRESS' makes the insert a
// no-op when an open session already exists; the caller then resumes it.
func (r *SessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, student_id) WHERE status = 'IN_PROGRESS' DO NOTHING
		 RETURNING id, started_at`,
		s.ExamID, s.StudentID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.StartedAt)
}

// MarkSubmitted flips an open session to SUBMITTED inside the given
// transaction. Returns false when the session was not IN_PROGRESS, which
// is how a second concurrent finalize discovers it lost the race.
func (r *SessionRepository) MarkSubmitted(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, submitted_at = $2
		 WHERE id = $3 AND status = $4`,
		model.SessionStatusSubmitted, at, sessionID, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
