package handlers

const (
	SessionCookieName = "session"

	// Client-visible error tags
	ErrBadRequest          = "Bad Request"
	ErrInvalidID           = "Invalid id"
	ErrInvalidJSON         = "Invalid JSON body"
	ErrInvalidCredentials  = "InvalidCredentials"
	ErrUnauthorized        = "Unauthorized"
	ErrNotFound            = "Not Found"
	ErrConflict            = "Conflict"
	ErrSelfDelete          = "Cannot delete your own account"
	ErrInternalServerError = "Internal Server Error"
	ErrServiceUnavailable  = "Service Unavailable"

	maxJSONBody   = 1 << 20
	maxUploadBody = 10 << 20
)
