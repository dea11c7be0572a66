package handlers

import (
	"log"
	"net/http"
	"time"

	"ampa/internal/models"
	"ampa/internal/security"
	"ampa/internal/service"
)

// AuthHandler handles login, logout and session introspection
type AuthHandler struct {
	authService     *service.AuthService
	sessionDuration time.Duration
	cookieSecure    bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, sessionDuration time.Duration, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		authService:     authService,
		sessionDuration: sessionDuration,
		cookieSecure:    cookieSecure,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// identity is the public view of the logged in account
type identity struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
}

func identityOf(u *models.User) *identity {
	return &identity{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

// Login checks credentials and sets the session cookie
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondWithServiceError(w, "Error during login", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, SessionCookieName, session.Token, h.sessionDuration, h.cookieSecure))
	log.Printf("User %q logged in", user.Username)
	respondJSON(w, http.StatusOK, identityOf(user))
}

// Logout revokes the session of the cookie, if any, and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.authService.DestroySession(r.Context(), cookie.Value); err != nil {
			respondWithServiceError(w, "Error destroying session", err)
			return
		}
	}

	http.SetCookie(w, security.CreateDeleteCookie(r, SessionCookieName, h.cookieSecure))
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

type sessionResponse struct {
	Authenticated bool      `json:"authenticated"`
	User          *identity `json:"user,omitempty"`
}

// Session reports who the cookie belongs to
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: identityOf(user)})
}

// Me returns the caller's identity, or 401 without a session
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := requireActor(w, r, service.RequireAuthenticated)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, identityOf(user))
}
