// Package rest provides the JSON API for product operations. Operations are
// selected by the action query parameter, e.g. GET /api?action=list.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	cerrors "github.com/mitienda/catalog/internal/errors"
	"github.com/mitienda/catalog/internal/platform/web"
	"github.com/mitienda/catalog/internal/service"
)

type Handler struct {
	service  service.ProductService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new instance of the product API with the provided service.
func NewHandler(svc service.ProductService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  svc,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the product API.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.HandleFunc("/api", h.Dispatch)
	r.Get("/healthz", h.HealthCheck)
}

// Dispatch routes a request by HTTP method and the action query parameter.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	switch {
	case r.Method == http.MethodGet && action == "list":
		h.List(w, r)
	case r.Method == http.MethodGet && action == "get":
		h.Get(w, r)
	case r.Method == http.MethodPost && action == "create":
		h.Create(w, r)
	case r.Method == http.MethodPut && action == "update":
		h.Update(w, r)
	case r.Method == http.MethodDelete && action == "delete":
		h.Delete(w, r)
	default:
		h.unknownAction(w, r)
	}
}

// List returns one page of products with pagination metadata.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	q := service.ListQuery{
		Page:     web.QueryInt(r, "page", 1),
		PerPage:  web.QueryInt(r, "per_page", service.DefaultPerPage),
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	}
	mLogger.DebugContext(r.Context(), "Received request to list products",
		"page", q.Page, "per_page", q.PerPage, "search", q.Search, "category", q.Category)

	page, err := h.service.List(r.Context(), q)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving product list", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(page.Items))
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{
		"success":    true,
		"data":       page.Items,
		"pagination": page.Page,
	})
}

// Get returns a single product by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.QueryID(w, r, mLogger, "id")
	if !ok {
		return
	}

	found, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, cerrors.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not found", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Product with ID %d not found", id))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving product", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve product with ID %d", id))
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{"success": true, "data": found})
}

// Create handles the creation of a new product from a JSON body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var dto service.ProductCreateDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.validateStruct(w, r, mLogger, dto) {
		return
	}

	created, err := h.service.Create(r.Context(), dto, nil)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to create product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID, "Name", created.Name)
	web.RespondJSON(w, mLogger, http.StatusCreated, map[string]any{
		"success": true,
		"data":    created,
		"message": "Product created successfully",
	})
}

// Update applies a partial update from a JSON body.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.QueryID(w, r, mLogger, "id")
	if !ok {
		return
	}

	var dto service.ProductUpdateDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.validateStruct(w, r, mLogger, dto) {
		return
	}

	updated, err := h.service.Update(r.Context(), id, dto, nil)
	if err != nil {
		if errors.Is(err, cerrors.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not found for update", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Product with ID %d not found", id))
			return
		}
		h.respondServiceError(w, r, mLogger, err, fmt.Sprintf("Failed to update product with ID %d", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Product updated successfully", "ID", updated.ID, "Name", updated.Name)
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{
		"success": true,
		"data":    updated,
		"message": "Product updated successfully",
	})
}

// Delete removes a product by id.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.QueryID(w, r, mLogger, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, cerrors.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not found for deletion", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Product with ID %d not found", id))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error deleting product", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to delete product with ID %d", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Product deleted successfully", "ID", id)
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{
		"success": true,
		"message": "Product deleted successfully",
	})
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// unknownAction answers any unmapped method/action pair with usage help.
func (h *Handler) unknownAction(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	web.RespondJSON(w, mLogger, http.StatusNotFound, map[string]any{
		"error": "Endpoint not found",
		"help": map[string]string{
			"GET /api?action=list":           "List products (page, per_page, search, category)",
			"GET /api?action=get&id=X":       "Get product by ID",
			"POST /api?action=create":        "Create product (JSON body)",
			"PUT /api?action=update&id=X":    "Update product (JSON body)",
			"DELETE /api?action=delete&id=X": "Delete product",
		},
	})
}

// validateStruct runs the validator tags and answers with per-field problems
// on failure. Returns true when the payload is valid.
func (h *Handler) validateStruct(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, payload any) bool {
	err := h.validate.Struct(payload)
	if err == nil {
		return true
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errorResponse := make(map[string]string)
		for _, fieldErr := range validationErrors {
			errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
		}
		mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
		web.RespondJSON(w, mLogger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
		return false
	}
	mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
	web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
	return false
}

// respondServiceError maps service-layer failures that are not "not found":
// validation problems become a 400 with details, everything else a 500.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, err error, genericMsg string) {
	var vErr *cerrors.ValidationError
	if errors.As(err, &vErr) {
		mLogger.WarnContext(r.Context(), "Validation failed", "problems", vErr.Problems)
		web.RespondJSON(w, mLogger, http.StatusBadRequest, map[string]any{
			"error":   "Validation failed",
			"details": vErr.Problems,
		})
		return
	}
	if errors.Is(err, cerrors.ErrNothingToUpdate) {
		mLogger.WarnContext(r.Context(), "Update with no fields")
		web.RespondError(w, mLogger, http.StatusBadRequest, "No fields to update")
		return
	}
	mLogger.ErrorContext(r.Context(), "Service error", "error", err)
	web.RespondError(w, mLogger, http.StatusInternalServerError, genericMsg)
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
