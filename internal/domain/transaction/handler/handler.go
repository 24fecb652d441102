// Package handler exposes the transaction CRUD surface over JSON HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/rupeeledger/rupee-ledger/internal/api"
	"github.com/rupeeledger/rupee-ledger/internal/domain/transaction/repository"
	"github.com/rupeeledger/rupee-ledger/internal/domain/transaction/service"
	"github.com/rupeeledger/rupee-ledger/internal/exchange"
)

// apiDateLayout is the date format on the JSON surface. The CSV import
// surface keeps its own dd-mm-yyyy layout.
const apiDateLayout = "2006-01-02"

// Handler serves the transaction endpoints.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

// NewHandler creates a transaction handler.
func NewHandler(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// RegisterRoutes mounts the public transaction endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/transactions", h.List)
	r.Post("/api/v1/transactions", h.Add)
	r.Put("/api/v1/transactions/{id}", h.Update)
	r.Delete("/api/v1/transactions/{id}", h.Delete)
}

// RegisterInternalRoutes mounts the administrative endpoints.
func (h *Handler) RegisterInternalRoutes(r chi.Router) {
	r.Delete("/internal/transactions", h.DeleteAll)
}

type addRequest struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// Add handles POST /api/v1/transactions.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	date, err := time.Parse(apiDateLayout, req.Date)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid date format")
		return
	}

	tx, err := h.service.Add(r.Context(), service.AddParams{
		Date:        date,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Currency,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, tx)
}

type updateRequest struct {
	Date        *string          `json:"date"`
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
	Currency    *string          `json:"currency"`
}

// Update handles PUT /api/v1/transactions/{id}. Absent fields are left
// unchanged.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	params := service.UpdateParams{
		ID:          id,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Currency,
	}
	if req.Date != nil {
		date, err := time.Parse(apiDateLayout, *req.Date)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, "Invalid date format")
			return
		}
		params.Date = &date
	}

	tx, err := h.service.Update(r.Context(), params)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, tx)
}

// Delete handles DELETE /api/v1/transactions/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted successfully"})
}

// DeleteAll handles DELETE /internal/transactions.
func (h *Handler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAll(r.Context()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "All transactions deleted"})
}

// List handles GET /api/v1/transactions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query, err := parseListQuery(r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.service.List(r.Context(), query)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

func parseListQuery(r *http.Request) (service.ListQuery, error) {
	var query service.ListQuery
	q := r.URL.Query()

	var err error
	if query.Page, err = intParam(q.Get("page")); err != nil {
		return query, errors.New("Page must be a number")
	}
	if query.Limit, err = intParam(q.Get("limit")); err != nil {
		return query, errors.New("Limit must be a number")
	}
	if query.Frequency, err = intParam(q.Get("frequency")); err != nil {
		return query, errors.New("Frequency must be a number")
	}
	query.Sort = q.Get("sort")

	if raw := q.Get("startDate"); raw != "" {
		date, err := time.Parse(apiDateLayout, raw)
		if err != nil {
			return query, errors.New("Invalid startDate format")
		}
		query.StartDate = &date
	}
	if raw := q.Get("endDate"); raw != "" {
		date, err := time.Parse(apiDateLayout, raw)
		if err != nil {
			return query, errors.New("Invalid endDate format")
		}
		query.EndDate = &date
	}
	return query, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		api.WriteError(w, http.StatusBadRequest, vErr.Message)
	case errors.Is(err, repository.ErrNotFound):
		api.WriteError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, repository.ErrDuplicate):
		api.WriteError(w, http.StatusConflict, "A transaction with the same date and description already exists")
	case errors.Is(err, exchange.ErrConversionFailed):
		api.WriteError(w, http.StatusBadGateway, exchange.ErrConversionFailed.Error())
	default:
		h.logger.Error("transaction request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		api.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
