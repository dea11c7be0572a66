package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"ampa/internal/models"
	"ampa/internal/service"
)

// TransferHandler serves spreadsheet export and bulk import
type TransferHandler struct {
	transferService *service.TransferService
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(transferService *service.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

// ExportCSV downloads every family as a semicolon separated file
func (h *TransferHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, service.FormatCSV, "text/csv; charset=utf-8", service.WriteCSV)
}

// ExportXLSX downloads every family as an Excel workbook
func (h *TransferHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, service.FormatXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", service.WriteXLSX)
}

func (h *TransferHandler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(io.Writer, []service.ExportRow) error) {
	rows, err := h.transferService.ExportAll(r.Context(), GetUserFromContext(r.Context()))
	if err != nil {
		respondWithServiceError(w, "Error exporting families", err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, rows); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error writing export", err)
		return
	}

	filename := fmt.Sprintf("families-%s.%s", time.Now().Format("2006-01-02"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Error sending export: %v", err)
	}
}

// Preview parses an uploaded file and returns the families it describes.
// The file is either the raw request body or the "file" field of a
// multipart form. Nothing is stored.
func (h *TransferHandler) Preview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	format := strings.ToLower(r.URL.Query().Get("format"))

	var upload io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, ErrBadRequest, "", nil)
			return
		}
		defer file.Close()
		upload = file
		if format == "" {
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
		}
	}

	families, err := service.ParsePreview(upload, format)
	if err != nil {
		respondWithServiceError(w, "Error parsing import", err)
		return
	}
	respondJSON(w, http.StatusOK, families)
}

// Commit replaces the whole registry with the posted families
func (h *TransferHandler) Commit(w http.ResponseWriter, r *http.Request) {
	// Reject before reading a possibly large body
	actor, ok := requireActor(w, r, service.RequireAdmin)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	var families []models.Family
	if !decodeJSON(w, r, &families) {
		return
	}
	if families == nil {
		families = []models.Family{}
	}

	if err := h.transferService.CommitImport(r.Context(), actor, families); err != nil {
		respondWithServiceError(w, "Error committing import", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
