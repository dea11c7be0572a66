package handlers

import (
	"net/http"

	"ampa/internal/models"
	"ampa/internal/service"
)

// FamilyHandler serves the family registry and the per-family extras
type FamilyHandler struct {
	familyService  *service.FamilyService
	cardService    *service.CardService
	summaryService *service.SummaryService
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService *service.FamilyService, cardService *service.CardService, summaryService *service.SummaryService) *FamilyHandler {
	return &FamilyHandler{
		familyService:  familyService,
		cardService:    cardService,
		summaryService: summaryService,
	}
}

// List returns every family with its members
func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	families, err := h.familyService.List(r.Context(), GetUserFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, "Error listing families", err)
		return
	}
	respondJSON(w, http.StatusOK, families)
}

// Get returns one family
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, service.RequireAuthenticated)
	if !ok {
		return
	}

	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	family, err := h.familyService.Get(r.Context(), actor, id)
	if err != nil {
		respondWithServiceError(w, "Error fetching family", err)
		return
	}
	respondJSON(w, http.StatusOK, family)
}

// Create registers a family
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, service.RequireAdmin)
	if !ok {
		return
	}

	var input models.Family
	if !decodeJSON(w, r, &input) {
		return
	}

	family, err := h.familyService.Create(r.Context(), actor, input)
	if err != nil {
		respondWithServiceError(w, "Error creating family", err)
		return
	}
	respondJSON(w, http.StatusCreated, family)
}

// Update replaces a family and all of its members
func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, service.RequireAdmin)
	if !ok {
		return
	}

	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	var input models.Family
	if !decodeJSON(w, r, &input) {
		return
	}

	family, err := h.familyService.Update(r.Context(), actor, id, input)
	if err != nil {
		respondWithServiceError(w, "Error updating family", err)
		return
	}
	respondJSON(w, http.StatusOK, family)
}

// Delete removes a family and its members
func (h *FamilyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, service.RequireAdmin)
	if !ok {
		return
	}

	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	if err := h.familyService.Delete(r.Context(), actor, id); err != nil {
		respondWithServiceError(w, "Error deleting family", err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

// Card returns the membership card of a family
func (h *FamilyHandler) Card(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, service.RequireAuthenticated)
	if !ok {
		return
	}

	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	card, err := h.cardService.Card(r.Context(), actor, id)
	if err != nil {
		respondWithServiceError(w, "Error building card", err)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

// EmailCard sends the membership card to the family's address
func (h *FamilyHandler) EmailCard(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, service.RequireAdmin)
	if !ok {
		return
	}

	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	sent, err := h.cardService.EmailCard(r.Context(), actor, id)
	if err != nil {
		respondWithServiceError(w, "Error emailing card", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true, "sent": sent})
}

// VerifyCard checks a scanned card token. It needs no session.
func (h *FamilyHandler) VerifyCard(w http.ResponseWriter, r *http.Request) {
	result, err := h.cardService.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		respondWithServiceError(w, "Error verifying card", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Summary generates and stores an AI profile of the family
func (h *FamilyHandler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, service.RequireAdmin)
	if !ok {
		return
	}

	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, ErrInvalidID, "", nil)
		return
	}

	family, err := h.summaryService.Generate(r.Context(), actor, id)
	if err != nil {
		respondWithServiceError(w, "Error generating summary", err)
		return
	}
	respondJSON(w, http.StatusOK, family)
}
