package model

// SaveAnswerRequest is the REST autosave fallback body, used when the
// WebSocket stream is unavailable. Parts carries per-blank values for
// multi-part questions; Answer carries the plain text otherwise.
type SaveAnswerRequest struct {
	QuestionID string            `json:"q_id" binding:"required,uuid"`
	Answer     string            `json:"ans"`
	Parts      map[string]string `json:"parts"`
}
