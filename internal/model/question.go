package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice    QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeFillBlank         QuestionType = "FILL_BLANK"
	QuestionTypeShortAnswer       QuestionType = "SHORT_ANSWER"
	QuestionTypeEssay             QuestionType = "ESSAY"
	QuestionTypeSpeaking          QuestionType = "SPEAKING"
	QuestionTypeTrueFalseNotGiven QuestionType = "TRUE_FALSE_NOT_GIVEN"
	QuestionTypeYesNoNotGiven     QuestionType = "YES_NO_NOT_GIVEN"
	QuestionTypeMatching          QuestionType = "MATCHING"
)

// Question is a single exam question as delivered to a session. The order
// index is stable and shared by pagination bubbles and review numbering.
type Question struct {
	ID         uuid.UUID       `json:"id"`
	Type       QuestionType    `json:"type"`
	Text       string          `json:"text"`
	Options    json.RawMessage `json:"options,omitempty"`
	Points     int             `json:"points"`
	OrderIndex int             `json:"order_index"`
}

// IsSpeaking reports whether the question is answered with an audio artifact
// rather than text.
func (q *Question) IsSpeaking() bool {
	return q.Type == QuestionTypeSpeaking
}
