package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Session engine ────────────────────────────────────────────────
	ErrNotFound             ErrCode = "NOT_FOUND"
	ErrEmptyContent         ErrCode = "EMPTY_CONTENT"
	ErrExamNotAvailable     ErrCode = "EXAM_NOT_AVAILABLE"
	ErrSessionClosed        ErrCode = "SESSION_CLOSED"
	ErrRetryablePersistence ErrCode = "RETRYABLE_PERSISTENCE"

	// ─── Media capture ─────────────────────────────────────────────────
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrDeviceUnavailable ErrCode = "DEVICE_UNAVAILABLE"
	ErrNoActiveRecording ErrCode = "NO_ACTIVE_RECORDING"

	// ─── Media upload ──────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Session engine ────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrEmptyContent:
		return "This exam has no available sections."
	case ErrExamNotAvailable:
		return "This exam is not currently available."
	case ErrSessionClosed:
		return "This exam session has already been submitted."
	case ErrRetryablePersistence:
		return "Saving failed temporarily. Please try submitting again."

	// ─── Media capture ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Microphone access was denied. Audio questions are unavailable until it is enabled in your settings."
	case ErrDeviceUnavailable:
		return "No recording device is available."
	case ErrNoActiveRecording:
		return "There is no active recording to stop."

	// ─── Media upload ──────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "The file type is not supported."
	case ErrFileTooLarge:
		return "The file exceeds the size limit."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
