package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the authoring lifecycle of an exam. Only PUBLISHED
// exams can be entered; everything before that is an authoring concern.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// SectionType enumerates the exam part kinds.
type SectionType string

const (
	SectionTypeListening SectionType = "LISTENING"
	SectionTypeReading   SectionType = "READING"
	SectionTypeWriting   SectionType = "WRITING"
	SectionTypeSpeaking  SectionType = "SPEAKING"
	SectionTypeGrammar   SectionType = "GRAMMAR"
)

// Exam is the read-only exam descriptor consumed from the authoring
// collaborator.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Section is an ordered exam part holding question groups.
type Section struct {
	ID           uuid.UUID       `json:"id"`
	ExamID       uuid.UUID       `json:"exam_id"`
	Type         SectionType     `json:"type"`
	Title        string          `json:"title"`
	Instructions string          `json:"instructions,omitempty"`
	AudioURL     string          `json:"audio_url,omitempty"`
	OrderIndex   int             `json:"order_index"`
	Groups       []QuestionGroup `json:"question_groups"`
}

// Available reports whether the section holds at least one non-empty
// question group. Unavailable sections are excluded from navigation.
func (s *Section) Available() bool {
	for i := range s.Groups {
		if len(s.Groups[i].Questions) > 0 {
			return true
		}
	}
	return false
}

// Questions returns the section's questions across all groups, in group
// order then question order.
func (s *Section) Questions() []Question {
	var qs []Question
	for i := range s.Groups {
		qs = append(qs, s.Groups[i].Questions...)
	}
	return qs
}

// QuestionGroup clusters questions sharing context (a passage, a cue card,
// shared instructions).
type QuestionGroup struct {
	ID         uuid.UUID  `json:"id"`
	SectionID  uuid.UUID  `json:"section_id"`
	Context    string     `json:"context,omitempty"`
	OrderIndex int        `json:"order_index"`
	Questions  []Question `json:"questions"`
}

// ExamPaper is the cached payload delivered to students: the full exam
// descriptor with unavailable sections already filtered out.
type ExamPaper struct {
	ExamID          uuid.UUID `json:"exam_id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	Sections        []Section `json:"sections"`
}

// TotalQuestions counts questions across all sections of the paper.
func (p *ExamPaper) TotalQuestions() int {
	n := 0
	for i := range p.Sections {
		n += len(p.Sections[i].Questions())
	}
	return n
}
