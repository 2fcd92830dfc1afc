package shipment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cargotrack/backend-cargo/internal/common"
)

// Handler exposes shipment management over HTTP.
type Handler struct {
	Svc *Service
}

// Create handles POST /shipments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload Input
	if err := common.DecodeAndValidate(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	created, err := h.Svc.Create(r.Context(), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Get handles GET /shipments/{numero}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	numero, ok := h.numero(w, r)
	if !ok {
		return
	}
	detail, err := h.Svc.Get(r.Context(), numero)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// List handles GET /shipments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	shipments, total, err := h.Svc.List(r.Context(), page, perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": shipments,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(total),
		},
	})
}

// Update handles PUT /shipments/{numero}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	numero, ok := h.numero(w, r)
	if !ok {
		return
	}
	var payload Input
	if err := common.DecodeAndValidate(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	updated, err := h.Svc.Update(r.Context(), numero, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

type statusInput struct {
	Estado string `json:"estado" validate:"required"`
}

// SetStatus handles PATCH /shipments/{numero}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	numero, ok := h.numero(w, r)
	if !ok {
		return
	}
	var payload statusInput
	if err := common.DecodeAndValidate(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	updated, err := h.Svc.SetStatus(r.Context(), numero, payload.Estado)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete handles DELETE /shipments/{numero}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	numero, ok := h.numero(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), numero); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) numero(w http.ResponseWriter, r *http.Request) (int64, bool) {
	numero, err := strconv.ParseInt(chi.URLParam(r, "numero"), 10, 64)
	if err != nil || numero <= 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid shipment number", nil)
		return 0, false
	}
	return numero, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
