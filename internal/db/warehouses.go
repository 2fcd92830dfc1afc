package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const warehouseColumns = `id, telefono, linea1, linea2, pais, estado_region, ciudad, codpostal, created_at, updated_at`

func scanWarehouse(row interface{ Scan(dest ...any) error }) (Warehouse, error) {
	var w Warehouse
	err := row.Scan(
		&w.ID, &w.Telefono, &w.Linea1, &w.Linea2, &w.Pais,
		&w.EstadoRegion, &w.Ciudad, &w.Codpostal, &w.CreatedAt, &w.UpdatedAt,
	)
	return w, err
}

// CreateWarehouseParams holds the address fields for a new warehouse.
type CreateWarehouseParams struct {
	Telefono     string
	Linea1       string
	Linea2       pgtype.Text
	Pais         string
	EstadoRegion string
	Ciudad       string
	Codpostal    string
}

func (q *Queries) CreateWarehouse(ctx context.Context, arg CreateWarehouseParams) (Warehouse, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO warehouses (telefono, linea1, linea2, pais, estado_region, ciudad, codpostal)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+warehouseColumns,
		arg.Telefono, arg.Linea1, arg.Linea2, arg.Pais, arg.EstadoRegion, arg.Ciudad, arg.Codpostal,
	)
	return scanWarehouse(row)
}

func (q *Queries) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	row := q.db.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id = $1`, id)
	return scanWarehouse(row)
}

func (q *Queries) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := q.db.Query(ctx, `SELECT `+warehouseColumns+` FROM warehouses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var warehouses []Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

// UpdateWarehouseParams rewrites a warehouse's address record.
type UpdateWarehouseParams struct {
	ID           int64
	Telefono     string
	Linea1       string
	Linea2       pgtype.Text
	Pais         string
	EstadoRegion string
	Ciudad       string
	Codpostal    string
}

func (q *Queries) UpdateWarehouse(ctx context.Context, arg UpdateWarehouseParams) (Warehouse, error) {
	row := q.db.QueryRow(ctx, `
UPDATE warehouses
SET telefono = $2, linea1 = $3, linea2 = $4, pais = $5, estado_region = $6,
    ciudad = $7, codpostal = $8, updated_at = now()
WHERE id = $1
RETURNING `+warehouseColumns,
		arg.ID, arg.Telefono, arg.Linea1, arg.Linea2, arg.Pais, arg.EstadoRegion, arg.Ciudad, arg.Codpostal,
	)
	return scanWarehouse(row)
}

func (q *Queries) DeleteWarehouse(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM warehouses WHERE id = $1`, id)
	return err
}
