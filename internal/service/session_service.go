package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/linguaprep/examroom-backend/internal/config"
	"github.com/linguaprep/examroom-backend/internal/engine"
	"github.com/linguaprep/examroom-backend/internal/model"
	"github.com/linguaprep/examroom-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SessionService owns the durable side of the session lifecycle: the
// idempotent create-or-resume entry, state restore after a reload, and
// the atomic finalize used by the engine, the REST retry path, and the
// deadline sweep alike. It implements engine.Finalizer.
type SessionService struct {
	sessionRepo *repository.SessionRepository
	answerRepo  *repository.AnswerRepository
	examService *ExamService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	answerRepo *repository.AnswerRepository,
	examService *ExamService,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		answerRepo:  answerRepo,
		examService: examService,
		rdb:         rdb,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// EnterExam creates a session for the student or resumes the existing
// in-progress one. Safe to call repeatedly: at most one open session per
// (exam, student) pair ever exists.
func (s *SessionService) EnterExam(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	exam, err := s.examService.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	// Resume path: an open session wins over creating a new one.
	existing, err := s.sessionRepo.GetInProgress(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		s.indexDeadline(ctx, existing, exam.DurationMinutes)
		return existing, nil
	}

	session := &model.ExamSession{
		ExamID:    examID,
		StudentID: studentID,
		Status:    model.SessionStatusInProgress,
		StartedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent entry from another device won the insert.
			existing, fetchErr := s.sessionRepo.GetInProgress(ctx, examID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent entry detected, but fetch failed: %w", fetchErr)
			}
			s.indexDeadline(ctx, existing, exam.DurationMinutes)
			return existing, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.indexDeadline(ctx, session, exam.DurationMinutes)
	return session, nil
}

// indexDeadline caches the session deadline and registers it in the sweep
// index. Cache failures are non-fatal: state reads fall back to pg.
func (s *SessionService) indexDeadline(ctx context.Context, session *model.ExamSession, durationMinutes int) {
	deadline := session.Deadline(durationMinutes)

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.SessionDeadlineKey(session.ID.String()), deadline.Unix(), 0)
	pipe.ZAdd(ctx, config.CacheKey.DeadlineIndexKey(), redis.Z{
		Score:  float64(deadline.Unix()),
		Member: session.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Deadline cache write failed")
	}
}

// GetSession retrieves the student's open session for an exam.
func (s *SessionService) GetSession(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	session, err := s.sessionRepo.GetInProgress(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// GetState rebuilds the reload surface: remaining seconds plus all saved
// answers, so the client can restore the exam screen after a refresh.
func (s *SessionService) GetState(ctx context.Context, session *model.ExamSession) (*model.SessionState, error) {
	deadline, err := s.deadline(ctx, session)
	if err != nil {
		return nil, err
	}

	remaining := int64(time.Until(deadline) / time.Second)
	if remaining < 0 {
		remaining = 0
	}

	saved, err := s.SavedAnswers(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	return &model.SessionState{
		SessionID:        session.ID,
		ExamID:           session.ExamID,
		StudentID:        session.StudentID,
		Status:           session.Status,
		RemainingSeconds: remaining,
		SavedAnswers:     saved,
	}, nil
}

// deadline resolves the session deadline from Redis, falling back to
// PostgreSQL arithmetic on a cache miss and self-healing the cache.
func (s *SessionService) deadline(ctx context.Context, session *model.ExamSession) (time.Time, error) {
	key := config.CacheKey.SessionDeadlineKey(session.ID.String())

	val, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		unix, parseErr := strconv.ParseInt(val, 10, 64)
		if parseErr == nil {
			return time.Unix(unix, 0), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return time.Time{}, fmt.Errorf("deadline cache read: %w", err)
	}

	exam, err := s.examService.GetExam(ctx, session.ExamID)
	if err != nil {
		return time.Time{}, err
	}
	deadline := session.Deadline(exam.DurationMinutes)

	_ = s.rdb.Set(ctx, key, deadline.Unix(), 0).Err()
	return deadline, nil
}

// SavedAnswers returns the session's autosaved answers, preferring the
// Redis hash and falling back to the durable rows.
func (s *SessionService) SavedAnswers(ctx context.Context, sessionID uuid.UUID) (map[string]string, error) {
	saved, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sessionID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("read autosave hash: %w", err)
	}
	if len(saved) > 0 {
		return saved, nil
	}

	rows, err := s.answerRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read saved answers: %w", err)
	}

	saved = make(map[string]string, len(rows))
	for _, a := range rows {
		saved[a.QuestionID.String()] = a.Value
	}
	return saved, nil
}

// Finalize persists the frozen snapshot and flips the session to
// SUBMITTED, then clears the session's runtime cache entries. Implements
// engine.Finalizer; also called directly by the REST retry path and the
// deadline sweep.
func (s *SessionService) Finalize(ctx context.Context, sessionID uuid.UUID, answers []model.SessionAnswer) error {
	if err := s.answerRepo.Finalize(ctx, s.sessionRepo, sessionID, answers); err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.SessionAnswersKey(sessionID.String()))
	pipe.Del(ctx, config.CacheKey.SessionDeadlineKey(sessionID.String()))
	pipe.ZRem(ctx, config.CacheKey.DeadlineIndexKey(), sessionID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		// The durable transition already happened; leftover cache entries
		// are reaped by the next sweep.
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Runtime cache cleanup failed")
	}
	return nil
}

// SubmitFromSaved finalizes a session from its saved answers: the REST
// retry path when no engine is live, and the deadline sweep when the
// deadline passes with the client gone or after a server restart.
func (s *SessionService) SubmitFromSaved(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Session vanished; drop it from the sweep index.
			_ = s.rdb.ZRem(ctx, config.CacheKey.DeadlineIndexKey(), sessionID.String()).Err()
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}
	if session.Status != model.SessionStatusInProgress {
		_ = s.rdb.ZRem(ctx, config.CacheKey.DeadlineIndexKey(), sessionID.String()).Err()
		return nil
	}

	saved, err := s.SavedAnswers(ctx, sessionID)
	if err != nil {
		return err
	}

	answers := make([]model.SessionAnswer, 0, len(saved))
	for qid, value := range saved {
		questionID, parseErr := uuid.Parse(qid)
		if parseErr != nil {
			continue
		}
		answers = append(answers, model.SessionAnswer{
			SessionID:  sessionID,
			QuestionID: questionID,
			Value:      value,
		})
	}

	if err := s.Finalize(ctx, sessionID, answers); err != nil {
		// Persistence hiccups are retryable: the caller (or the next
		// sweep) tries again; the session is never silently closed.
		return fmt.Errorf("%w: %v", engine.ErrRetryablePersistence, err)
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("answers", len(answers)).
		Msg("Session submitted from saved answers")
	return nil
}

// DueSessions lists sessions whose deadline passed, for the sweep worker.
func (s *SessionService) DueSessions(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	members, err := s.rdb.ZRangeByScore(ctx, config.CacheKey.DeadlineIndexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan deadline index: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, parseErr := uuid.Parse(m)
		if parseErr != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
