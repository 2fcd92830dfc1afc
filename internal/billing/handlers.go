package billing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cargotrack/backend-cargo/internal/common"
)

// Handler exposes invoicing over HTTP.
type Handler struct {
	Svc *Service
}

type associateInput struct {
	ParcelIDs  []int64 `json:"parcelIds" validate:"required,min=1,dive,gt=0"`
	CustomerID int64   `json:"customerId" validate:"required,gt=0"`
}

// Associate handles POST /shipments/{numero}/associate.
func (h *Handler) Associate(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "billing service not configured", nil)
		return
	}
	numero, err := strconv.ParseInt(chi.URLParam(r, "numero"), 10, 64)
	if err != nil || numero <= 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid shipment number", nil)
		return
	}
	var payload associateInput
	if err := common.DecodeAndValidate(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	out, err := h.Svc.Associate(r.Context(), numero, payload.CustomerID, payload.ParcelIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

type payInput struct {
	InvoiceID     int64  `json:"invoiceId" validate:"required,gt=0"`
	PaymentMethod string `json:"paymentMethod" validate:"required"`
}

// Pay handles POST /invoices/pay.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "billing service not configured", nil)
		return
	}
	var payload payInput
	if err := common.DecodeAndValidate(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	invoice, err := h.Svc.Pay(r.Context(), payload.InvoiceID, payload.PaymentMethod)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": invoice})
}

// Get handles GET /invoices/{numero}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	numero, err := strconv.ParseInt(chi.URLParam(r, "numero"), 10, 64)
	if err != nil || numero <= 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid invoice number", nil)
		return
	}
	detail, err := h.Svc.GetInvoice(r.Context(), numero)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// List handles GET /invoices.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	invoices, total, err := h.Svc.ListInvoices(r.Context(), page, perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": invoices,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(total),
		},
	})
}

// ListMine handles GET /invoices/mine for the authenticated customer.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID <= 0 {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	invoices, err := h.Svc.ListByCustomer(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": invoices})
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
