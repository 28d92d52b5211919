// Package handlers provides HTTP handlers for the pantry REST API
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/alchemorsel/pantry/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantry/internal/ports/inbound"
	"github.com/alchemorsel/pantry/pkg/errors"
)

const maxBodyBytes = 1 << 20

// PantryHandlers handles pantry API requests
type PantryHandlers struct {
	service   inbound.PantryService
	validator *RequestValidator
	logger    *zap.Logger
}

// NewPantryHandlers creates a new pantry handlers instance
func NewPantryHandlers(service inbound.PantryService, logger *zap.Logger) *PantryHandlers {
	return &PantryHandlers{
		service:   service,
		validator: NewRequestValidator(),
		logger:    logger.Named("pantry-handlers"),
	}
}

type cookRequest struct {
	Ingredients []consumedIngredientRequest `json:"ingredients" validate:"required,min=1,max=200,dive"`
}

type consumedIngredientRequest struct {
	Name   string  `json:"name" validate:"required,ingredient"`
	Amount float64 `json:"amount" validate:"gt=0"`
	Unit   string  `json:"unit" validate:"required,unit"`
}

type addIngredientRequest struct {
	Name   string  `json:"name" validate:"required,ingredient"`
	Amount float64 `json:"amount" validate:"gt=0"`
	Unit   string  `json:"unit" validate:"required,unit"`
}

// updateEntryRequest allows non-positive amounts, which remove the entry
type updateEntryRequest struct {
	Amount *float64 `json:"amount" validate:"required"`
	Unit   string   `json:"unit" validate:"required,unit"`
}

// CookRecipe handles POST /api/v1/pantry/cook
func (h *PantryHandlers) CookRecipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req cookRequest
	if !h.decode(w, r, &req) {
		return
	}

	cmd := inbound.CookRecipeCommand{
		UserID:      userID,
		Ingredients: make([]pantry.ConsumedIngredient, 0, len(req.Ingredients)),
	}
	for _, item := range req.Ingredients {
		cmd.Ingredients = append(cmd.Ingredients, pantry.ConsumedIngredient{
			Name:   item.Name,
			Amount: decimal.NewFromFloat(item.Amount),
			Unit:   item.Unit,
		})
	}

	result, err := h.service.CookRecipe(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ListPantry handles GET /api/v1/pantry
func (h *PantryHandlers) ListPantry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListPantry(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// AddIngredient handles POST /api/v1/pantry
func (h *PantryHandlers) AddIngredient(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req addIngredientRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.service.AddIngredient(r.Context(), inbound.AddIngredientCommand{
		UserID: userID,
		Name:   req.Name,
		Amount: decimal.NewFromFloat(req.Amount),
		Unit:   req.Unit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, entry)
}

// UpdateEntry handles PUT /api/v1/pantry/{ingredientID}
func (h *PantryHandlers) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	ingredientID, ok := h.ingredientID(w, r)
	if !ok {
		return
	}

	var req updateEntryRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.service.UpdateEntry(r.Context(), inbound.UpdateEntryCommand{
		UserID:       userID,
		IngredientID: ingredientID,
		Amount:       decimal.NewFromFloat(*req.Amount),
		Unit:         req.Unit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if entry == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// RemoveEntry handles DELETE /api/v1/pantry/{ingredientID}
func (h *PantryHandlers) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	ingredientID, ok := h.ingredientID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveEntry(r.Context(), userID, ingredientID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PantryHandlers) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, r, errors.NewUnauthorizedError(""))
		return uuid.Nil, false
	}
	return userID, true
}

func (h *PantryHandlers) ingredientID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "ingredientID"))
	if err != nil {
		h.writeError(w, r, errors.NewBadRequestError("ingredient id must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body into dst and validates it
func (h *PantryHandlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, errors.NewBadRequestError("Invalid JSON request body").WithCause(err))
		return false
	}
	if err := h.validator.Validate(dst); err != nil {
		h.writeError(w, r, err)
		return false
	}
	return true
}

// writeError renders err as an ErrorResponse. Unknown errors become 500s.
func (h *PantryHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.NewInternalError("").WithCause(err)
	}

	status := appErr.StatusCode()
	requestID := chimiddleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("request_id", requestID),
			zap.String("code", string(appErr.Code)),
			zap.Error(err),
			zap.String("stack_trace", appErr.StackTrace),
		)
	}

	h.writeJSON(w, status, errors.ToErrorResponse(appErr, requestID))
}

// writeJSON writes a JSON response
func (h *PantryHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}
