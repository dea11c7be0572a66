package handlers

import (
	"net/http"

	"ampa/internal/service"
)

// UserHandler serves account administration
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// List returns every account
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, service.RequireAdmin)
	if !ok {
		return
	}

	users, err := h.userService.List(r.Context(), actor)
	if err != nil {
		respondWithServiceError(w, "Error listing users", err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// Create adds an account
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, service.RequireSuperAdmin)
	if !ok {
		return
	}

	var input service.UserInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.userService.Create(r.Context(), actor, input)
	if err != nil {
		respondWithServiceError(w, "Error creating user", err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// Update changes an account; the password is kept when omitted
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, service.RequireSuperAdmin)
	if !ok {
		return
	}

	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	var input service.UserInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.userService.Update(r.Context(), actor, id, input)
	if err != nil {
		respondWithServiceError(w, "Error updating user", err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Delete removes an account other than the caller's
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, service.RequireSuperAdmin)
	if !ok {
		return
	}

	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	if err := h.userService.Delete(r.Context(), actor, id); err != nil {
		respondWithServiceError(w, "Error deleting user", err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}
