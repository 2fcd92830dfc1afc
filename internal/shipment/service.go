package shipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/cargotrack/backend-cargo/internal/common"
	"github.com/cargotrack/backend-cargo/internal/db"
	"github.com/cargotrack/backend-cargo/internal/events"
)

// Service manages the shipment lifecycle: creation, routing updates, status
// transitions and removal. Status transitions cascade onto the parcels
// travelling in the shipment.
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

// Input carries shipment creation and update fields.
type Input struct {
	Tipo          string     `json:"tipo" validate:"required"`
	Estado        string     `json:"estado"`
	FechaSalida   *time.Time `json:"fechaSalida"`
	FechaLlegada  *time.Time `json:"fechaLlegada"`
	OriginID      int64      `json:"originId" validate:"required,gt=0"`
	DestinationID int64      `json:"destinationId" validate:"required,gt=0"`
	EmployeeID    int64      `json:"employeeId" validate:"required,gt=0"`
}

// Detail is a shipment with the parcels it carries.
type Detail struct {
	Shipment db.Shipment `json:"shipment"`
	Parcels  []db.Parcel `json:"parcels"`
}

// Create registers a new shipment. New shipments start at the departure
// port unless an explicit valid status is provided.
func (s *Service) Create(ctx context.Context, in Input) (db.Shipment, error) {
	tipo, ok := db.ParseTransportMode(in.Tipo)
	if !ok {
		return db.Shipment{}, common.ValidationError("unknown transport mode", map[string]any{"tipo": in.Tipo})
	}
	status := db.ShipmentStatusDeparting
	if in.Estado != "" {
		parsed, ok := db.ParseShipmentStatus(in.Estado)
		if !ok {
			return db.Shipment{}, common.ValidationError("unknown shipment status", map[string]any{"estado": in.Estado})
		}
		status = parsed
	}
	if err := s.validateRefs(ctx, in); err != nil {
		return db.Shipment{}, err
	}

	created, err := s.Q.CreateShipment(ctx, db.CreateShipmentParams{
		Tipo:          tipo,
		Status:        status,
		FechaSalida:   toTimestamptz(in.FechaSalida),
		FechaLlegada:  toTimestamptz(in.FechaLlegada),
		OriginID:      in.OriginID,
		DestinationID: in.DestinationID,
		EmployeeID:    in.EmployeeID,
	})
	if err != nil {
		return db.Shipment{}, fmt.Errorf("create shipment: %w", err)
	}

	s.emit(ctx, events.TopicShipmentCreated, created.Numero, map[string]any{
		"numero": created.Numero,
		"tipo":   created.Tipo,
		"estado": created.Status,
	})
	return created, nil
}

// Get loads one shipment with its parcels.
func (s *Service) Get(ctx context.Context, numero int64) (Detail, error) {
	sh, err := s.Q.GetShipment(ctx, numero)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, common.NotFoundError("shipment not found", err)
		}
		return Detail{}, fmt.Errorf("load shipment: %w", err)
	}
	parcels, err := s.Q.ListParcelsByShipment(ctx, numero)
	if err != nil {
		return Detail{}, fmt.Errorf("load shipment parcels: %w", err)
	}
	return Detail{Shipment: sh, Parcels: parcels}, nil
}

// List pages shipments, newest first.
func (s *Service) List(ctx context.Context, page, perPage int) ([]db.Shipment, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	shipments, err := s.Q.ListShipments(ctx, db.ListShipmentsParams{
		Limit:  int32(perPage),
		Offset: int32((page - 1) * perPage),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list shipments: %w", err)
	}
	total, err := s.Q.CountShipments(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count shipments: %w", err)
	}
	return shipments, total, nil
}

// Update rewrites a shipment's routing and schedule. A status change runs
// the parcel cascade inside the same transaction as the update.
func (s *Service) Update(ctx context.Context, numero int64, in Input) (db.Shipment, error) {
	tipo, ok := db.ParseTransportMode(in.Tipo)
	if !ok {
		return db.Shipment{}, common.ValidationError("unknown transport mode", map[string]any{"tipo": in.Tipo})
	}
	status, ok := db.ParseShipmentStatus(in.Estado)
	if !ok {
		return db.Shipment{}, common.ValidationError("unknown shipment status", map[string]any{"estado": in.Estado})
	}
	if err := s.validateRefs(ctx, in); err != nil {
		return db.Shipment{}, err
	}

	var (
		updated       db.Shipment
		statusChanged bool
	)
	err := s.Tx.InTx(ctx, func(q Store) error {
		current, err := q.GetShipment(ctx, numero)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NotFoundError("shipment not found", err)
			}
			return fmt.Errorf("load shipment: %w", err)
		}
		updated, err = q.UpdateShipment(ctx, db.UpdateShipmentParams{
			Numero:        numero,
			Tipo:          tipo,
			Status:        status,
			FechaSalida:   toTimestamptz(in.FechaSalida),
			FechaLlegada:  toTimestamptz(in.FechaLlegada),
			OriginID:      in.OriginID,
			DestinationID: in.DestinationID,
			EmployeeID:    in.EmployeeID,
		})
		if err != nil {
			return fmt.Errorf("update shipment: %w", err)
		}
		if current.Status != status {
			statusChanged = true
			if err := cascade(ctx, q, numero, status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return db.Shipment{}, err
	}
	if statusChanged {
		s.emitStatusChanged(ctx, updated)
	}
	return updated, nil
}

// SetStatus moves a shipment along its lifecycle and cascades the matching
// parcel status in the same transaction.
func (s *Service) SetStatus(ctx context.Context, numero int64, estado string) (db.Shipment, error) {
	status, ok := db.ParseShipmentStatus(estado)
	if !ok {
		return db.Shipment{}, common.ValidationError("unknown shipment status", map[string]any{"estado": estado})
	}

	var updated db.Shipment
	err := s.Tx.InTx(ctx, func(q Store) error {
		current, err := q.GetShipment(ctx, numero)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NotFoundError("shipment not found", err)
			}
			return fmt.Errorf("load shipment: %w", err)
		}
		if err := q.UpdateShipmentStatus(ctx, db.UpdateShipmentStatusParams{Numero: numero, Status: status}); err != nil {
			return fmt.Errorf("update shipment status: %w", err)
		}
		if err := cascade(ctx, q, numero, status); err != nil {
			return err
		}
		current.Status = status
		updated = current
		return nil
	})
	if err != nil {
		return db.Shipment{}, err
	}
	s.emitStatusChanged(ctx, updated)
	return updated, nil
}

// Delete removes a shipment. Its parcels are detached and returned to the
// warehouse, and any open invoice is removed with its line items, all
// atomically.
func (s *Service) Delete(ctx context.Context, numero int64) error {
	return s.Tx.InTx(ctx, func(q Store) error {
		if _, err := q.GetShipment(ctx, numero); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NotFoundError("shipment not found", err)
			}
			return fmt.Errorf("load shipment: %w", err)
		}
		if err := q.DetachParcelsFromShipment(ctx, db.DetachParcelsFromShipmentParams{
			ShipmentNumero: numero,
			Status:         db.ParcelStatusWarehoused,
		}); err != nil {
			return fmt.Errorf("detach parcels: %w", err)
		}
		invoice, err := q.GetInvoiceByShipment(ctx, numero)
		switch {
		case err == nil:
			if err := q.DeleteInvoiceItemsByInvoice(ctx, invoice.Numero); err != nil {
				return fmt.Errorf("delete invoice items: %w", err)
			}
			if err := q.DeleteInvoice(ctx, invoice.Numero); err != nil {
				return fmt.Errorf("delete invoice: %w", err)
			}
		case errors.Is(err, pgx.ErrNoRows):
			// no invoice yet, nothing to clean up
		default:
			return fmt.Errorf("load shipment invoice: %w", err)
		}
		if err := q.DeleteShipment(ctx, numero); err != nil {
			return fmt.Errorf("delete shipment: %w", err)
		}
		return nil
	})
}

// cascade stamps the parcel status matching the new shipment stage onto
// every parcel in the batch. Stages with no mapping leave parcels alone.
func cascade(ctx context.Context, q Store, numero int64, status db.ShipmentStatus) error {
	parcelStatus, ok := ParcelStatusFor(status)
	if !ok {
		return nil
	}
	if _, err := q.UpdateParcelsStatusByShipment(ctx, db.UpdateParcelsStatusByShipmentParams{
		ShipmentNumero: numero,
		Status:         parcelStatus,
	}); err != nil {
		return fmt.Errorf("cascade parcel status: %w", err)
	}
	return nil
}

func (s *Service) validateRefs(ctx context.Context, in Input) error {
	for _, ref := range []struct {
		id    int64
		field string
	}{
		{in.OriginID, "originId"},
		{in.DestinationID, "destinationId"},
	} {
		if _, err := s.Q.GetWarehouse(ctx, ref.id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.ValidationError("warehouse does not exist", map[string]any{ref.field: ref.id})
			}
			return fmt.Errorf("load warehouse: %w", err)
		}
	}
	employee, err := s.Q.GetUserByID(ctx, in.EmployeeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ValidationError("employee does not exist", map[string]any{"employeeId": in.EmployeeID})
		}
		return fmt.Errorf("load employee: %w", err)
	}
	if employee.Rol == "cliente" {
		return common.ValidationError("employeeId must reference an employee", map[string]any{"employeeId": in.EmployeeID})
	}
	return nil
}

func (s *Service) emitStatusChanged(ctx context.Context, sh db.Shipment) {
	s.emit(ctx, events.TopicShipmentStatusChanged, sh.Numero, map[string]any{
		"numero": sh.Numero,
		"tipo":   sh.Tipo,
		"estado": sh.Status,
	})
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
