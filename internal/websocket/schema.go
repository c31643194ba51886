package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave    Action = "autosave"
	ActionFlag        Action = "flag"
	ActionPermission  Action = "permission"
	ActionRecordStart Action = "record_start"
	ActionRecordStop  Action = "record_stop"
	ActionRecordReset Action = "record_reset"
	ActionSubmit      Action = "submit"
	ActionPing        Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AutosaveRequest saves a single answer. Parts carries per-blank values
// for multi-part questions; Answer carries the plain text otherwise.
type AutosaveRequest struct {
	Action Action            `json:"action"`
	QID    string            `json:"q_id"`
	Answer string            `json:"ans"`
	Parts  map[string]string `json:"parts,omitempty"`
}

// FlagRequest toggles the review-later mark on a question.
type FlagRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
}

// PermissionRequest reports the client's microphone consent decision.
type PermissionRequest struct {
	Action  Action `json:"action"`
	Granted bool   `json:"granted"`
}

// RecordRequest starts, stops, or resets a recording for a question.
// QID is required for record_start only.
type RecordRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`
}

// SubmitRequest finishes the session.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventSaved      Event = "saved"
	EventPermission Event = "permission"
	EventFlagged    Event = "flagged"
	EventRecording  Event = "recording"
	EventArtifact   Event = "artifact"
	EventTranscript Event = "partial_transcript"
	EventTick       Event = "tick"
	EventSubmitted  Event = "submitted"
	EventPong       Event = "pong"
)

type SavedResponse struct {
	Event Event  `json:"event"`
	QID   string `json:"q_id"`
}

type PermissionResponse struct {
	Event   Event `json:"event"`
	Granted bool  `json:"granted"`
}

type FlaggedResponse struct {
	Event   Event  `json:"event"`
	QID     string `json:"q_id"`
	Flagged bool   `json:"flagged"`
}

// RecordingResponse reports the capture phase transition.
type RecordingResponse struct {
	Event Event  `json:"event"`
	QID   string `json:"q_id,omitempty"`
	Phase string `json:"phase"`
}

// ArtifactResponse delivers the stored recording URL bound as the
// question's answer.
type ArtifactResponse struct {
	Event Event  `json:"event"`
	QID   string `json:"q_id"`
	URL   string `json:"url"`
}

// TranscriptResponse carries a growing partial transcript for the active
// recording. Advisory only.
type TranscriptResponse struct {
	Event Event  `json:"event"`
	Text  string `json:"text"`
}

// TickResponse carries the authoritative remaining time.
type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int64 `json:"remaining"`
}

type SubmittedResponse struct {
	Event   Event  `json:"event"`
	Trigger string `json:"trigger"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
