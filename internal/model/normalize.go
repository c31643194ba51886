package model

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
)

// The authoring collaborator historically emitted both snake_case and
// camelCase variants of the same logical field (order_index/orderIndex,
// audio_url/audioUrl, ...). Normalization happens exactly once, here at the
// boundary; every consumer downstream sees only the canonical schema.

type rawPaper struct {
	ExamID          uuid.UUID    `json:"exam_id"`
	ExamIDAlt       uuid.UUID    `json:"examId"`
	Title           string       `json:"title"`
	DurationMinutes int          `json:"duration_minutes"`
	DurationAlt     int          `json:"durationMinutes"`
	Sections        []rawSection `json:"sections"`
}

type rawSection struct {
	ID           uuid.UUID  `json:"id"`
	Type         string     `json:"type"`
	Title        string     `json:"title"`
	Instructions string     `json:"instructions"`
	AudioURL     string     `json:"audio_url"`
	AudioURLAlt  string     `json:"audioUrl"`
	OrderIndex   int        `json:"order_index"`
	OrderAlt     int        `json:"orderIndex"`
	Groups       []rawGroup `json:"question_groups"`
	GroupsAlt    []rawGroup `json:"questionGroups"`
}

type rawGroup struct {
	ID         uuid.UUID     `json:"id"`
	Context    string        `json:"context"`
	OrderIndex int           `json:"order_index"`
	OrderAlt   int           `json:"orderIndex"`
	Questions  []rawQuestion `json:"questions"`
}

type rawQuestion struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Text       string          `json:"text"`
	TextAlt    string          `json:"question_text"`
	Options    json.RawMessage `json:"options"`
	Points     int             `json:"points"`
	OrderIndex int             `json:"order_index"`
	OrderAlt   int             `json:"orderIndex"`
}

func pickInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func pickStr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// NormalizePaper decodes an authoring-collaborator payload into the
// canonical ExamPaper. Dual-cased fields are merged (snake_case wins when
// both are present), unavailable sections are dropped, and sections,
// groups, and questions are sorted by their order index.
func NormalizePaper(raw []byte) (*ExamPaper, error) {
	var rp rawPaper
	if err := json.Unmarshal(raw, &rp); err != nil {
		return nil, err
	}

	paper := &ExamPaper{
		Title:           rp.Title,
		DurationMinutes: pickInt(rp.DurationMinutes, rp.DurationAlt),
	}
	if rp.ExamID != uuid.Nil {
		paper.ExamID = rp.ExamID
	} else {
		paper.ExamID = rp.ExamIDAlt
	}

	for _, rs := range rp.Sections {
		groups := rs.Groups
		if len(groups) == 0 {
			groups = rs.GroupsAlt
		}

		section := Section{
			ID:           rs.ID,
			ExamID:       paper.ExamID,
			Type:         SectionType(rs.Type),
			Title:        rs.Title,
			Instructions: rs.Instructions,
			AudioURL:     pickStr(rs.AudioURL, rs.AudioURLAlt),
			OrderIndex:   pickInt(rs.OrderIndex, rs.OrderAlt),
		}

		for _, rg := range groups {
			group := QuestionGroup{
				ID:         rg.ID,
				SectionID:  rs.ID,
				Context:    rg.Context,
				OrderIndex: pickInt(rg.OrderIndex, rg.OrderAlt),
			}
			for _, rq := range rg.Questions {
				group.Questions = append(group.Questions, Question{
					ID:         rq.ID,
					Type:       QuestionType(rq.Type),
					Text:       pickStr(rq.Text, rq.TextAlt),
					Options:    rq.Options,
					Points:     rq.Points,
					OrderIndex: pickInt(rq.OrderIndex, rq.OrderAlt),
				})
			}
			sort.SliceStable(group.Questions, func(i, j int) bool {
				return group.Questions[i].OrderIndex < group.Questions[j].OrderIndex
			})
			section.Groups = append(section.Groups, group)
		}
		sort.SliceStable(section.Groups, func(i, j int) bool {
			return section.Groups[i].OrderIndex < section.Groups[j].OrderIndex
		})

		// Sections with no questions at all never reach navigation.
		if section.Available() {
			paper.Sections = append(paper.Sections, section)
		}
	}
	sort.SliceStable(paper.Sections, func(i, j int) bool {
		return paper.Sections[i].OrderIndex < paper.Sections[j].OrderIndex
	})

	return paper, nil
}
