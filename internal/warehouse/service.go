package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cargotrack/backend-cargo/internal/common"
	"github.com/cargotrack/backend-cargo/internal/db"
)

type queryProvider interface {
	CreateWarehouse(ctx context.Context, arg db.CreateWarehouseParams) (db.Warehouse, error)
	GetWarehouse(ctx context.Context, id int64) (db.Warehouse, error)
	ListWarehouses(ctx context.Context) ([]db.Warehouse, error)
	UpdateWarehouse(ctx context.Context, arg db.UpdateWarehouseParams) (db.Warehouse, error)
	DeleteWarehouse(ctx context.Context, id int64) error
}

// Service manages the warehouse directory. The list endpoint is cached;
// writes invalidate the cache.
type Service struct {
	Q     queryProvider
	Cache *Cache
}

// Input carries warehouse address fields.
type Input struct {
	Telefono     string `json:"telefono" validate:"required"`
	Linea1       string `json:"linea1" validate:"required"`
	Linea2       string `json:"linea2"`
	Pais         string `json:"pais" validate:"required"`
	EstadoRegion string `json:"estadoRegion" validate:"required"`
	Ciudad       string `json:"ciudad" validate:"required"`
	Codpostal    string `json:"codpostal" validate:"required"`
}

// Create registers a warehouse.
func (s *Service) Create(ctx context.Context, in Input) (db.Warehouse, error) {
	created, err := s.Q.CreateWarehouse(ctx, db.CreateWarehouseParams{
		Telefono:     in.Telefono,
		Linea1:       in.Linea1,
		Linea2:       toText(in.Linea2),
		Pais:         in.Pais,
		EstadoRegion: in.EstadoRegion,
		Ciudad:       in.Ciudad,
		Codpostal:    in.Codpostal,
	})
	if err != nil {
		return db.Warehouse{}, fmt.Errorf("create warehouse: %w", err)
	}
	s.Cache.Invalidate(ctx, listCacheKey)
	return created, nil
}

// Get loads one warehouse.
func (s *Service) Get(ctx context.Context, id int64) (db.Warehouse, error) {
	wh, err := s.Q.GetWarehouse(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Warehouse{}, common.NotFoundError("warehouse not found", err)
		}
		return db.Warehouse{}, fmt.Errorf("load warehouse: %w", err)
	}
	return wh, nil
}

// List returns the warehouse directory, served from cache when warm.
func (s *Service) List(ctx context.Context) ([]db.Warehouse, error) {
	var cached []db.Warehouse
	if hit, err := s.Cache.GetJSON(ctx, listCacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	warehouses, err := s.Q.ListWarehouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	_ = s.Cache.SetJSON(ctx, listCacheKey, warehouses)
	return warehouses, nil
}

// Update rewrites a warehouse's address record.
func (s *Service) Update(ctx context.Context, id int64, in Input) (db.Warehouse, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return db.Warehouse{}, err
	}
	updated, err := s.Q.UpdateWarehouse(ctx, db.UpdateWarehouseParams{
		ID:           id,
		Telefono:     in.Telefono,
		Linea1:       in.Linea1,
		Linea2:       toText(in.Linea2),
		Pais:         in.Pais,
		EstadoRegion: in.EstadoRegion,
		Ciudad:       in.Ciudad,
		Codpostal:    in.Codpostal,
	})
	if err != nil {
		return db.Warehouse{}, fmt.Errorf("update warehouse: %w", err)
	}
	s.Cache.Invalidate(ctx, listCacheKey)
	return updated, nil
}

// Delete removes a warehouse. Warehouses referenced by parcels or shipments
// are protected by foreign keys; surface that as a validation error.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Q.DeleteWarehouse(ctx, id); err != nil {
		if isForeignKeyViolation(err) {
			return common.ValidationError("warehouse is still referenced by parcels or shipments", nil)
		}
		return fmt.Errorf("delete warehouse: %w", err)
	}
	s.Cache.Invalidate(ctx, listCacheKey)
	return nil
}

func toText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
