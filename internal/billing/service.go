package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/cargotrack/backend-cargo/internal/common"
	"github.com/cargotrack/backend-cargo/internal/db"
	"github.com/cargotrack/backend-cargo/internal/events"
	"github.com/cargotrack/backend-cargo/internal/pricing"
	"github.com/cargotrack/backend-cargo/internal/shipment"
)

const pendingPaymentMethod = "pendiente"

// Service owns invoicing: associating parcels to a shipment opens the
// invoice, paying it closes the billing cycle.
type Service struct {
	Q      Store
	Tx     TxManager
	Events *events.Bus
	Log    *zerolog.Logger
}

func (s *Service) emit(ctx context.Context, topic string, aggregateID int64, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, aggregateID, payload); err != nil && s.Log != nil {
		s.Log.Warn().Err(err).Str("topic", topic).Int64("aggregate_id", aggregateID).Msg("event emission failed")
	}
}

// AssociateResult reports the outcome of a parcel association.
type AssociateResult struct {
	Invoice db.Invoice       `json:"invoice"`
	Items   []db.InvoiceItem `json:"items"`
	Parcels []db.Parcel      `json:"parcels"`
}

// Associate assigns a batch of unassigned parcels to a shipment and opens
// one unpaid invoice for the customer, all in a single transaction. Parcels
// already bound to any shipment reject the whole batch.
func (s *Service) Associate(ctx context.Context, shipmentNumero, customerID int64, parcelIDs []int64) (AssociateResult, error) {
	if len(parcelIDs) == 0 {
		return AssociateResult{}, common.ValidationError("at least one parcel is required", nil)
	}
	ids := dedupeIDs(parcelIDs)

	customer, err := s.Q.GetUserByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AssociateResult{}, common.ValidationError("customer does not exist", map[string]any{"customer_id": customerID})
		}
		return AssociateResult{}, fmt.Errorf("load customer: %w", err)
	}

	var result AssociateResult
	var shipmentTipo db.TransportMode
	err = s.Tx.InTx(ctx, func(q Store) error {
		sh, err := q.GetShipment(ctx, shipmentNumero)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NotFoundError("shipment not found", err)
			}
			return fmt.Errorf("load shipment: %w", err)
		}

		if _, err := q.GetInvoiceByShipment(ctx, sh.Numero); err == nil {
			return &common.AppError{
				Code:       "SHIPMENT_ALREADY_INVOICED",
				Message:    "shipment already has an invoice",
				HTTPStatus: http.StatusConflict,
			}
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check existing invoice: %w", err)
		}

		available, err := q.ListAvailableParcelsByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("check parcel availability: %w", err)
		}
		if len(available) != len(ids) {
			return &common.AppError{
				Code:       "PARCELS_UNAVAILABLE",
				Message:    "some parcels do not exist or are already assigned to a shipment",
				HTTPStatus: http.StatusBadRequest,
				Details:    map[string]any{"parcel_ids": missingIDs(ids, available)},
			}
		}

		parcelStatus, ok := shipment.ParcelStatusFor(sh.Status)
		if !ok {
			parcelStatus = db.ParcelStatusWarehoused
		}
		assigned, err := q.AssignParcelsToShipment(ctx, db.AssignParcelsToShipmentParams{
			IDs:            ids,
			ShipmentNumero: sh.Numero,
			Status:         parcelStatus,
		})
		if err != nil {
			return fmt.Errorf("assign parcels: %w", err)
		}
		if assigned != int64(len(ids)) {
			// A concurrent association claimed part of the batch between
			// the availability check and the update.
			return &common.AppError{
				Code:       "PARCELS_UNAVAILABLE",
				Message:    "some parcels were assigned concurrently",
				HTTPStatus: http.StatusConflict,
			}
		}

		total := pricing.Total(sh.Tipo, available)
		invoice, err := q.CreateInvoice(ctx, db.CreateInvoiceParams{
			MetodoPago:     pendingPaymentMethod,
			MontoCents:     total,
			CantidadPiezas: int32(len(available)),
			CustomerID:     customer.ID,
			ShipmentNumero: sh.Numero,
		})
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}

		items := make([]db.InvoiceItem, 0, len(available))
		for _, p := range available {
			item, err := q.CreateInvoiceItem(ctx, db.CreateInvoiceItemParams{
				Descripcion:   p.Descripcion,
				Cantidad:      1,
				MontoCents:    pricing.Charge(sh.Tipo, p.PesoLb, p.VolumenFt3),
				ParcelID:      p.ID,
				InvoiceNumero: invoice.Numero,
			})
			if err != nil {
				return fmt.Errorf("create invoice item: %w", err)
			}
			items = append(items, item)
		}

		parcels, err := q.ListParcelsByShipment(ctx, sh.Numero)
		if err != nil {
			return fmt.Errorf("reload parcels: %w", err)
		}
		shipmentTipo = sh.Tipo
		result = AssociateResult{Invoice: invoice, Items: items, Parcels: parcels}
		return nil
	})
	if err != nil {
		return AssociateResult{}, err
	}

	s.emit(ctx, events.TopicInvoiceCreated, result.Invoice.Numero, map[string]any{
		"invoiceNumero":  result.Invoice.Numero,
		"shipmentNumero": shipmentNumero,
		"tipo":           shipmentTipo,
		"customerId":     customer.ID,
		"email":          customer.Email,
		"montoCents":     result.Invoice.MontoCents,
		"cantidadPiezas": result.Invoice.CantidadPiezas,
	})
	return result, nil
}

// Pay settles an invoice and marks its shipment as paid atomically. Paying
// an already settled invoice is rejected, not replayed.
func (s *Service) Pay(ctx context.Context, invoiceNumero int64, metodoPago string) (db.Invoice, error) {
	if metodoPago == "" || metodoPago == pendingPaymentMethod {
		return db.Invoice{}, common.ValidationError("a concrete payment method is required", nil)
	}

	var paid db.Invoice
	err := s.Tx.InTx(ctx, func(q Store) error {
		invoice, err := q.GetInvoice(ctx, invoiceNumero)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NotFoundError("invoice not found", err)
			}
			return fmt.Errorf("load invoice: %w", err)
		}
		if invoice.Paid {
			return &common.AppError{
				Code:       "ALREADY_PAID",
				Message:    "invoice is already paid",
				HTTPStatus: http.StatusConflict,
			}
		}
		paid, err = q.MarkInvoicePaid(ctx, db.MarkInvoicePaidParams{Numero: invoiceNumero, MetodoPago: metodoPago})
		if err != nil {
			return fmt.Errorf("mark invoice paid: %w", err)
		}
		if err := q.UpdateShipmentStatus(ctx, db.UpdateShipmentStatusParams{
			Numero: invoice.ShipmentNumero,
			Status: db.ShipmentStatusPaid,
		}); err != nil {
			return fmt.Errorf("mark shipment paid: %w", err)
		}
		return nil
	})
	if err != nil {
		return db.Invoice{}, err
	}

	if s.Events != nil {
		payload := map[string]any{
			"invoiceNumero":  paid.Numero,
			"shipmentNumero": paid.ShipmentNumero,
			"metodoPago":     paid.MetodoPago,
			"montoCents":     paid.MontoCents,
		}
		if customer, err := s.Q.GetUserByID(ctx, paid.CustomerID); err == nil {
			payload["email"] = customer.Email
		}
		s.emit(ctx, events.TopicInvoicePaid, paid.Numero, payload)
	}
	return paid, nil
}

// InvoiceDetail is an invoice with its line items.
type InvoiceDetail struct {
	Invoice db.Invoice       `json:"invoice"`
	Items   []db.InvoiceItem `json:"items"`
}

// GetInvoice loads one invoice with its items.
func (s *Service) GetInvoice(ctx context.Context, numero int64) (InvoiceDetail, error) {
	invoice, err := s.Q.GetInvoice(ctx, numero)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InvoiceDetail{}, common.NotFoundError("invoice not found", err)
		}
		return InvoiceDetail{}, fmt.Errorf("load invoice: %w", err)
	}
	items, err := s.Q.ListInvoiceItems(ctx, numero)
	if err != nil {
		return InvoiceDetail{}, fmt.Errorf("load invoice items: %w", err)
	}
	return InvoiceDetail{Invoice: invoice, Items: items}, nil
}

// ListInvoices pages all invoices, newest first.
func (s *Service) ListInvoices(ctx context.Context, page, perPage int) ([]db.Invoice, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	invoices, err := s.Q.ListInvoices(ctx, db.ListInvoicesParams{
		Limit:  int32(perPage),
		Offset: int32((page - 1) * perPage),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	total, err := s.Q.CountInvoices(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// ListByCustomer returns every invoice billed to one customer.
func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]db.Invoice, error) {
	invoices, err := s.Q.ListInvoicesByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list customer invoices: %w", err)
	}
	return invoices, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(requested []int64, available []db.Parcel) []int64 {
	got := make(map[int64]struct{}, len(available))
	for _, p := range available {
		got[p.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range requested {
		if _, ok := got[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
