package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitted  SessionStatus = "SUBMITTED"
	// SessionStatusGraded is set by the external grading collaborator,
	// never by this service.
	SessionStatusGraded SessionStatus = "GRADED"
)

// ExamSession represents a student's single attempt at one exam.
// At most one IN_PROGRESS session exists per (exam, student) pair;
// re-entering the exam resumes it instead of creating a new one.
type ExamSession struct {
	ID          uuid.UUID     `json:"id"`
	ExamID      uuid.UUID     `json:"exam_id"`
	StudentID   int           `json:"student_id"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
}

// Deadline returns the instant the session's exam time runs out.
func (s *ExamSession) Deadline(durationMinutes int) time.Time {
	return s.StartedAt.Add(time.Duration(durationMinutes) * time.Minute)
}

// SessionState is the reload/resume surface sent to the client: everything
// needed to rebuild the exam screen after a refresh or device change.
type SessionState struct {
	SessionID        uuid.UUID         `json:"session_id"`
	ExamID           uuid.UUID         `json:"exam_id"`
	StudentID        int               `json:"student_id"`
	Status           SessionStatus     `json:"status"`
	RemainingSeconds int64             `json:"remaining_seconds"`
	SavedAnswers     map[string]string `json:"saved_answers"`
}
