package parcel

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/cargotrack/backend-cargo/internal/common"
	"github.com/cargotrack/backend-cargo/internal/db"
	"github.com/cargotrack/backend-cargo/internal/events"
	"github.com/cargotrack/backend-cargo/internal/pricing"
)

type queryProvider interface {
	GetUserByID(ctx context.Context, id int64) (db.User, error)
	GetWarehouse(ctx context.Context, id int64) (db.Warehouse, error)
	CreateParcel(ctx context.Context, arg db.CreateParcelParams) (db.Parcel, error)
	GetParcel(ctx context.Context, id int64) (db.Parcel, error)
	ListParcels(ctx context.Context, arg db.ListParcelsParams) ([]db.Parcel, error)
	CountParcels(ctx context.Context) (int64, error)
	ListParcelsByCustomer(ctx context.Context, customerID int64) ([]db.Parcel, error)
	UpdateParcel(ctx context.Context, arg db.UpdateParcelParams) (db.Parcel, error)
	UpdateParcelsStatusByIDs(ctx context.Context, arg db.UpdateParcelsStatusByIDsParams) (int64, error)
	DeleteParcel(ctx context.Context, id int64) error
	CountInvoiceItemsByParcel(ctx context.Context, parcelID int64) (int64, error)
}

// Service manages parcel intake and warehouse-side bookkeeping. Volume is
// always derived from the measured dimensions, never trusted from input.
type Service struct {
	Q      queryProvider
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

// Input carries parcel intake and update fields. Dimensions are inches,
// weight is pounds.
type Input struct {
	Descripcion string  `json:"descripcion" validate:"required"`
	LargoIn     float64 `json:"largoIn" validate:"gte=0"`
	AnchoIn     float64 `json:"anchoIn" validate:"gte=0"`
	AltoIn      float64 `json:"altoIn" validate:"gte=0"`
	PesoLb      float64 `json:"pesoLb" validate:"gte=0"`
	Estado      string  `json:"estado"`
	WarehouseID int64   `json:"warehouseId" validate:"required,gt=0"`
	EmployeeID  int64   `json:"employeeId" validate:"required,gt=0"`
}

// Intake registers a parcel arriving at a warehouse.
func (s *Service) Intake(ctx context.Context, in Input) (db.Parcel, error) {
	status := db.ParcelStatusWarehoused
	if in.Estado != "" {
		parsed, ok := db.ParseParcelStatus(in.Estado)
		if !ok {
			return db.Parcel{}, common.ValidationError("unknown parcel status", map[string]any{"estado": in.Estado})
		}
		status = parsed
	}
	if err := s.validateRefs(ctx, in); err != nil {
		return db.Parcel{}, err
	}

	created, err := s.Q.CreateParcel(ctx, db.CreateParcelParams{
		Descripcion: in.Descripcion,
		LargoIn:     in.LargoIn,
		AnchoIn:     in.AnchoIn,
		AltoIn:      in.AltoIn,
		PesoLb:      in.PesoLb,
		VolumenFt3:  pricing.VolumeFt3(in.LargoIn, in.AnchoIn, in.AltoIn),
		Status:      status,
		WarehouseID: in.WarehouseID,
		EmployeeID:  in.EmployeeID,
	})
	if err != nil {
		return db.Parcel{}, fmt.Errorf("create parcel: %w", err)
	}

	s.emit(ctx, events.TopicParcelReceived, created.ID, map[string]any{
		"parcelId":    created.ID,
		"warehouseId": created.WarehouseID,
		"volumenFt3":  created.VolumenFt3,
	})
	return created, nil
}

// Get loads one parcel.
func (s *Service) Get(ctx context.Context, id int64) (db.Parcel, error) {
	p, err := s.Q.GetParcel(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Parcel{}, common.NotFoundError("parcel not found", err)
		}
		return db.Parcel{}, fmt.Errorf("load parcel: %w", err)
	}
	return p, nil
}

// List pages all parcels.
func (s *Service) List(ctx context.Context, page, perPage int) ([]db.Parcel, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	parcels, err := s.Q.ListParcels(ctx, db.ListParcelsParams{
		Limit:  int32(perPage),
		Offset: int32((page - 1) * perPage),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list parcels: %w", err)
	}
	total, err := s.Q.CountParcels(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count parcels: %w", err)
	}
	return parcels, total, nil
}

// ListByCustomer returns the parcels a customer has been billed for.
func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]db.Parcel, error) {
	parcels, err := s.Q.ListParcelsByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list customer parcels: %w", err)
	}
	return parcels, nil
}

// Update rewrites a parcel's intake data, re-deriving its volume.
func (s *Service) Update(ctx context.Context, id int64, in Input) (db.Parcel, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return db.Parcel{}, err
	}
	status := current.Status
	if in.Estado != "" {
		parsed, ok := db.ParseParcelStatus(in.Estado)
		if !ok {
			return db.Parcel{}, common.ValidationError("unknown parcel status", map[string]any{"estado": in.Estado})
		}
		status = parsed
	}
	if err := s.validateRefs(ctx, in); err != nil {
		return db.Parcel{}, err
	}

	updated, err := s.Q.UpdateParcel(ctx, db.UpdateParcelParams{
		ID:          id,
		Descripcion: in.Descripcion,
		LargoIn:     in.LargoIn,
		AnchoIn:     in.AnchoIn,
		AltoIn:      in.AltoIn,
		PesoLb:      in.PesoLb,
		VolumenFt3:  pricing.VolumeFt3(in.LargoIn, in.AnchoIn, in.AltoIn),
		Status:      status,
		WarehouseID: in.WarehouseID,
		EmployeeID:  in.EmployeeID,
	})
	if err != nil {
		return db.Parcel{}, fmt.Errorf("update parcel: %w", err)
	}
	return updated, nil
}

// BulkStatus stamps a status on an explicit parcel set, e.g. marking a
// picked-up batch as dispatched at the counter.
func (s *Service) BulkStatus(ctx context.Context, ids []int64, estado string) (int64, error) {
	if len(ids) == 0 {
		return 0, common.ValidationError("at least one parcel is required", nil)
	}
	status, ok := db.ParseParcelStatus(estado)
	if !ok {
		return 0, common.ValidationError("unknown parcel status", map[string]any{"estado": estado})
	}
	updated, err := s.Q.UpdateParcelsStatusByIDs(ctx, db.UpdateParcelsStatusByIDsParams{IDs: ids, Status: status})
	if err != nil {
		return 0, fmt.Errorf("bulk update parcel status: %w", err)
	}
	return updated, nil
}

// Delete removes a parcel that was never billed. Parcels referenced by an
// invoice line item stay for bookkeeping.
func (s *Service) Delete(ctx context.Context, id int64) error {
	parcel, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if parcel.ShipmentNumero.Valid {
		return common.ValidationError("parcel is assigned to a shipment", map[string]any{"shipmentNumero": parcel.ShipmentNumero.Int64})
	}
	billed, err := s.Q.CountInvoiceItemsByParcel(ctx, id)
	if err != nil {
		return fmt.Errorf("check parcel billing: %w", err)
	}
	if billed > 0 {
		return common.ValidationError("parcel has been billed and cannot be deleted", nil)
	}
	if err := s.Q.DeleteParcel(ctx, id); err != nil {
		return fmt.Errorf("delete parcel: %w", err)
	}
	return nil
}

func (s *Service) validateRefs(ctx context.Context, in Input) error {
	if _, err := s.Q.GetWarehouse(ctx, in.WarehouseID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ValidationError("warehouse does not exist", map[string]any{"warehouseId": in.WarehouseID})
		}
		return fmt.Errorf("load warehouse: %w", err)
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
