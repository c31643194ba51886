package model

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// AnswerValue is the current answer for one question within a session.
// Free-text and audio-reference answers live in Text; multi-part answers
// (matching, multi-blank) live in Parts. Exactly one of the two is set.
type AnswerValue struct {
	Text  string
	Parts map[string]string
}

// TextAnswer builds a plain text (or artifact URL) answer value.
func TextAnswer(text string) AnswerValue {
	return AnswerValue{Text: text}
}

// PartsAnswer builds a structured multi-part answer value.
func PartsAnswer(parts map[string]string) AnswerValue {
	return AnswerValue{Parts: parts}
}

// IsAnswered reports whether the value counts as answered. Text answers
// must be non-empty after trimming. Structured answers count as answered
// when ANY sub-part is non-empty; partial answers still earn partial
// credit, so "all populated" would be wrong here.
func (v AnswerValue) IsAnswered() bool {
	if v.Parts != nil {
		for _, p := range v.Parts {
			if strings.TrimSpace(p) != "" {
				return true
			}
		}
		return false
	}
	return strings.TrimSpace(v.Text) != ""
}

// Encode renders the value as its wire string: raw text, or a JSON object
// for multi-part answers.
func (v AnswerValue) Encode() string {
	if v.Parts == nil {
		return v.Text
	}
	raw, err := json.Marshal(v.Parts)
	if err != nil {
		return ""
	}
	return string(raw)
}

// DecodeAnswerValue parses a wire string back into an AnswerValue. A JSON
// object becomes a multi-part answer; anything else is plain text.
func DecodeAnswerValue(raw string) AnswerValue {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var parts map[string]string
		if err := json.Unmarshal([]byte(trimmed), &parts); err == nil {
			return AnswerValue{Parts: parts}
		}
	}
	return AnswerValue{Text: raw}
}

// SessionAnswer is one persisted answer row for a session.
type SessionAnswer struct {
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Value      string    `json:"value"`
}
