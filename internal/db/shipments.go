package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const shipmentColumns = `numero, tipo, status, fecha_salida, fecha_llegada, origin_id, destination_id, employee_id, created_at, updated_at`

func scanShipment(row interface{ Scan(dest ...any) error }) (Shipment, error) {
	var s Shipment
	err := row.Scan(
		&s.Numero, &s.Tipo, &s.Status, &s.FechaSalida, &s.FechaLlegada,
		&s.OriginID, &s.DestinationID, &s.EmployeeID, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

// CreateShipmentParams describes a new transport batch.
type CreateShipmentParams struct {
	Tipo          TransportMode
	Status        ShipmentStatus
	FechaSalida   pgtype.Timestamptz
	FechaLlegada  pgtype.Timestamptz
	OriginID      int64
	DestinationID int64
	EmployeeID    int64
}

func (q *Queries) CreateShipment(ctx context.Context, arg CreateShipmentParams) (Shipment, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO shipments (tipo, status, fecha_salida, fecha_llegada, origin_id, destination_id, employee_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+shipmentColumns,
		arg.Tipo, arg.Status, arg.FechaSalida, arg.FechaLlegada,
		arg.OriginID, arg.DestinationID, arg.EmployeeID,
	)
	return scanShipment(row)
}

func (q *Queries) GetShipment(ctx context.Context, numero int64) (Shipment, error) {
	row := q.db.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE numero = $1`, numero)
	return scanShipment(row)
}

// ListShipmentsParams pages shipments newest first, matching the admin view.
type ListShipmentsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListShipments(ctx context.Context, arg ListShipmentsParams) ([]Shipment, error) {
	rows, err := q.db.Query(ctx, `SELECT `+shipmentColumns+` FROM shipments ORDER BY numero DESC LIMIT $1 OFFSET $2`, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var shipments []Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, s)
	}
	return shipments, rows.Err()
}

func (q *Queries) CountShipments(ctx context.Context) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM shipments`).Scan(&total)
	return total, err
}

// UpdateShipmentParams rewrites a shipment's routing and schedule.
type UpdateShipmentParams struct {
	Numero        int64
	Tipo          TransportMode
	Status        ShipmentStatus
	FechaSalida   pgtype.Timestamptz
	FechaLlegada  pgtype.Timestamptz
	OriginID      int64
	DestinationID int64
	EmployeeID    int64
}

func (q *Queries) UpdateShipment(ctx context.Context, arg UpdateShipmentParams) (Shipment, error) {
	row := q.db.QueryRow(ctx, `
UPDATE shipments
SET tipo = $2, status = $3, fecha_salida = $4, fecha_llegada = $5,
    origin_id = $6, destination_id = $7, employee_id = $8, updated_at = now()
WHERE numero = $1
RETURNING `+shipmentColumns,
		arg.Numero, arg.Tipo, arg.Status, arg.FechaSalida, arg.FechaLlegada,
		arg.OriginID, arg.DestinationID, arg.EmployeeID,
	)
	return scanShipment(row)
}

// UpdateShipmentStatusParams moves a shipment along its lifecycle.
type UpdateShipmentStatusParams struct {
	Numero int64
	Status ShipmentStatus
}

func (q *Queries) UpdateShipmentStatus(ctx context.Context, arg UpdateShipmentStatusParams) error {
	_, err := q.db.Exec(ctx, `UPDATE shipments SET status = $2, updated_at = now() WHERE numero = $1`, arg.Numero, arg.Status)
	return err
}

func (q *Queries) DeleteShipment(ctx context.Context, numero int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM shipments WHERE numero = $1`, numero)
	return err
}
