package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/linguaprep/examroom-backend/internal/config"
	"github.com/linguaprep/examroom-backend/internal/engine"
	"github.com/linguaprep/examroom-backend/internal/model"
	"github.com/linguaprep/examroom-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrExamNotAvailable rejects entry into exams that are not published.
var ErrExamNotAvailable = errors.New("exam is not available")

// ExamService loads exam papers, normalizes them once at the collaborator
// boundary, and serves them from Redis so session traffic bypasses
// PostgreSQL.
type ExamService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// GetExam returns the bare exam descriptor, mapping missing rows onto the
// engine's NotFound.
func (s *ExamService) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// GetPaper returns the normalized exam paper for students, preferring the
// Redis cache and falling back to a fresh load on a miss.
func (s *ExamService) GetPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.ExamPaperKey(examID.String())).Bytes()
	if err == nil {
		paper := &model.ExamPaper{}
		if jsonErr := json.Unmarshal(raw, paper); jsonErr == nil {
			return paper, nil
		}
		// Corrupted cache entry; fall through to a rebuild.
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("paper cache read: %w", err)
	}

	return s.RefreshPaper(ctx, examID)
}

// RefreshPaper rebuilds the cached paper from PostgreSQL. An exam whose
// normalization leaves zero available sections is fatal for starting a
// session: EmptyContent, distinct from NotFound.
func (s *ExamService) RefreshPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	raw, err := s.examRepo.LoadRawPaper(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load raw paper: %w", err)
	}

	paper, err := model.NormalizePaper(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize paper: %w", err)
	}
	if len(paper.Sections) == 0 {
		return nil, engine.ErrEmptyContent
	}

	encoded, err := json.Marshal(paper)
	if err != nil {
		return nil, fmt.Errorf("encode paper: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPaperKey(examID.String()), encoded, 0)
	pipe.Set(ctx, config.CacheKey.ExamDurationKey(examID.String()), strconv.Itoa(paper.DurationMinutes), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		// Cache write failure is not fatal; the next read falls back to pg.
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Paper cache write failed")
	}

	return paper, nil
}

// PrewarmAllCaches loads every published exam into Redis BEFORE accepting
// traffic, avoiding lazy-load races under a thundering herd at exam start.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.examRepo.ListPublishedIDs(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	warmed := 0
	for _, id := range ids {
		if _, err := s.RefreshPaper(ctx, id); err != nil {
			if errors.Is(err, engine.ErrEmptyContent) {
				s.log.Warn().Str("exam_id", id.String()).Msg("Published exam has no available sections")
				continue
			}
			return fmt.Errorf("prewarm %s: %w", id, err)
		}
		warmed++
	}

	s.log.Info().Int("count", warmed).Msg("Exam paper caches prewarmed")
	return nil
}
