package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"ampa/internal/models"
	"ampa/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(authService *service.AuthService) *Middleware {
	return &Middleware{authService: authService}
}

// Authenticate resolves the session cookie and stores the user in the
// request context. Requests without a valid session pass through with no
// user; the services decide what an anonymous caller may do.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.authService.ResolveSession(r.Context(), cookie.Value)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error resolving session", err)
			return
		}
		if user == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Printf("%s %s %s %d", r.Method, r.URL.Path, time.Since(start), rec.status)
	})
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// requireActor runs an authorization gate on the caller before any path
// or body input is read. On failure the response is already written.
func requireActor(w http.ResponseWriter, r *http.Request, gate func(*models.User) (*models.User, error)) (*models.User, bool) {
	actor, err := gate(GetUserFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, "", err)
		return nil, false
	}
	return actor, true
}
