package handlers

import (
	"net/http"
	"time"

	"ampa/internal/service"
)

// DashboardHandler serves registry statistics
type DashboardHandler struct {
	reportService *service.ReportService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(reportService *service.ReportService) *DashboardHandler {
	return &DashboardHandler{reportService: reportService}
}

// Show returns the dashboard figures
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.reportService.Dashboard(r.Context(), GetUserFromContext(r.Context()), time.Now())
	if err != nil {
		respondWithServiceError(w, "Error building dashboard", err)
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}
