// Package handler exposes the CSV upload endpoint.
package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rupeeledger/rupee-ledger/internal/api"
	"github.com/rupeeledger/rupee-ledger/internal/domain/import/parser"
	"github.com/rupeeledger/rupee-ledger/internal/domain/import/service"
	"github.com/rupeeledger/rupee-ledger/internal/exchange"
	"github.com/rupeeledger/rupee-ledger/pkg/archive"
)

// Handler serves the transaction upload endpoint.
type Handler struct {
	service      *service.ImportService
	maxFileBytes int64
	archive      archive.Archive
	logger       *slog.Logger
}

// NewHandler creates an import handler. maxFileBytes caps the accepted
// upload size.
func NewHandler(svc *service.ImportService, maxFileBytes int64, logger *slog.Logger) *Handler {
	return &Handler{service: svc, maxFileBytes: maxFileBytes, logger: logger}
}

// WithArchive keeps an audit copy of every successfully processed upload.
func (h *Handler) WithArchive(a archive.Archive) *Handler {
	h.archive = a
	return h
}

// RegisterRoutes mounts the upload endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/transactions/upload", h.Upload)
}

// Upload handles POST /api/v1/transactions/upload. The CSV comes as the
// multipart form field "file".
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileBytes)
	if err := r.ParseMultipartForm(h.maxFileBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.WriteError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		api.WriteError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	fileData, err := io.ReadAll(file)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	result, err := h.service.Import(r.Context(), fileData)
	if err != nil {
		switch {
		case errors.Is(err, parser.ErrParse):
			api.WriteError(w, http.StatusBadRequest, "Failed to parse CSV file")
		case errors.Is(err, exchange.ErrConversionFailed):
			api.WriteError(w, http.StatusBadGateway, exchange.ErrConversionFailed.Error())
		default:
			h.logger.Error("upload failed", "error", err)
			api.WriteError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	// Archive failures never fail the request; the import already happened.
	if h.archive != nil {
		if _, err := h.archive.Save(header.Filename, fileData); err != nil {
			h.logger.Warn("failed to archive upload", "filename", header.Filename, "error", err)
		}
	}

	api.WriteJSON(w, http.StatusOK, result)
}
