package handlers

// Error kinds returned in the "error" field of every error response
const (
	KindNotFound        = "NotFound"
	KindForbidden       = "Forbidden"
	KindValidation      = "ValidationError"
	KindInvalidInput    = "InvalidInput"
	KindUnauthorized    = "Unauthorized"
	KindServerError     = "ServerError"
	KindTooManyRequests = "TooManyRequests"
)

const (
	ErrInvalidJSON         = "Request body must be valid JSON"
	ErrUnauthorized        = "Unauthorized"
	ErrInternalServerError = "Something went wrong, please try again"

	maxBodyBytes = 1 << 20
)
