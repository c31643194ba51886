package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linguaprep/examroom-backend/internal/model"
)

// ExamRepository reads the exam content model owned by the authoring
// collaborator. Read-only during a session.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves a bare exam descriptor.
func (r *ExamRepository) GetByID(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_minutes, status, created_at, updated_at
		 FROM exams WHERE id = $1`, examID,
	).Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListPublishedIDs returns the IDs of all published exams, used for cache
// prewarming at boot.
func (r *ExamRepository) ListPublishedIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exams WHERE status = $1`, model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadRawPaper assembles the full exam tree (sections, groups, questions)
// as a JSON document in the authoring collaborator's shape. Normalization
// into the canonical schema happens once, in model.NormalizePaper.
func (r *ExamRepository) LoadRawPaper(ctx context.Context, examID uuid.UUID) ([]byte, error) {
	exam, err := r.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.type, s.title, s.instructions, s.audio_url, s.order_index,
		        g.id, g.context, g.order_index,
		        q.id, q.type, q.text, q.options, q.points, q.order_index
		 FROM sections s
		 LEFT JOIN question_groups g ON g.section_id = s.id
		 LEFT JOIN questions q ON q.group_id = g.id
		 WHERE s.exam_id = $1
		 ORDER BY s.order_index, g.order_index, q.order_index`, examID)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	defer rows.Close()

	b := newPaperBuilder()

	for rows.Next() {
		var (
			s              rawSection
			gID, qID       *uuid.UUID
			gContext       *string
			gOrder         *int
			qType, qText   *string
			qOptions       json.RawMessage
			qPoints, qOrd  *int
			sInstr, sAudio *string
		)
		if err := rows.Scan(
			&s.ID, &s.Type, &s.Title, &sInstr, &sAudio, &s.OrderIndex,
			&gID, &gContext, &gOrder,
			&qID, &qType, &qText, &qOptions, &qPoints, &qOrd,
		); err != nil {
			return nil, err
		}

		if sInstr != nil {
			s.Instructions = *sInstr
		}
		if sAudio != nil {
			s.AudioURL = *sAudio
		}
		sec := b.addSection(s)

		if gID == nil {
			continue
		}
		g := rawGroup{ID: *gID}
		if gContext != nil {
			g.Context = *gContext
		}
		if gOrder != nil {
			g.OrderIndex = *gOrder
		}
		grp := b.addGroup(sec, g)

		if qID == nil {
			continue
		}
		q := rawQuestion{ID: *qID, Options: qOptions}
		if qType != nil {
			q.Type = *qType
		}
		if qText != nil {
			q.Text = *qText
		}
		if qPoints != nil {
			q.Points = *qPoints
		}
		if qOrd != nil {
			q.OrderIndex = *qOrd
		}
		grp.Questions = append(grp.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	doc := map[string]interface{}{
		"exam_id":          exam.ID,
		"title":            exam.Title,
		"duration_minutes": exam.DurationMinutes,
		"sections":         b.sections,
	}
	return json.Marshal(doc)
}

type rawQuestion struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Text       string          `json:"text"`
	Options    json.RawMessage `json:"options,omitempty"`
	Points     int             `json:"points"`
	OrderIndex int             `json:"order_index"`
}

type rawGroup struct {
	ID         uuid.UUID     `json:"id"`
	Context    string        `json:"context,omitempty"`
	OrderIndex int           `json:"order_index"`
	Questions  []rawQuestion `json:"questions"`
}

type rawSection struct {
	ID           uuid.UUID   `json:"id"`
	Type         string      `json:"type"`
	Title        string      `json:"title"`
	Instructions string      `json:"instructions,omitempty"`
	AudioURL     string      `json:"audio_url,omitempty"`
	OrderIndex   int         `json:"order_index"`
	Groups       []*rawGroup `json:"question_groups"`
}

// paperBuilder folds the flat section/group/question join back into the
// authoring tree. Sections and groups are tracked by pointer: rows for one
// group can interleave with a sibling's when order indexes collide, and an
// element pointer into a value slice goes stale on the next append.
type paperBuilder struct {
	sections   []*rawSection
	sectionIdx map[uuid.UUID]*rawSection
	groupIdx   map[uuid.UUID]*rawGroup
}

func newPaperBuilder() *paperBuilder {
	return &paperBuilder{
		sections:   make([]*rawSection, 0),
		sectionIdx: make(map[uuid.UUID]*rawSection),
		groupIdx:   make(map[uuid.UUID]*rawGroup),
	}
}

func (b *paperBuilder) addSection(s rawSection) *rawSection {
	if sec, ok := b.sectionIdx[s.ID]; ok {
		return sec
	}
	s.Groups = []*rawGroup{}
	sec := &s
	b.sectionIdx[s.ID] = sec
	b.sections = append(b.sections, sec)
	return sec
}

func (b *paperBuilder) addGroup(sec *rawSection, g rawGroup) *rawGroup {
	if grp, ok := b.groupIdx[g.ID]; ok {
		return grp
	}
	g.Questions = []rawQuestion{}
	grp := &g
	b.groupIdx[g.ID] = grp
	sec.Groups = append(sec.Groups, grp)
	return grp
}
