package db

import (
	"context"
	"strings"
)

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}

const parcelColumns = `id, descripcion, largo_in, ancho_in, alto_in, peso_lb, volumen_ft3, status, warehouse_id, employee_id, shipment_numero, created_at, updated_at`

func scanParcel(row interface{ Scan(dest ...any) error }) (Parcel, error) {
	var p Parcel
	err := row.Scan(
		&p.ID, &p.Descripcion, &p.LargoIn, &p.AnchoIn, &p.AltoIn, &p.PesoLb,
		&p.VolumenFt3, &p.Status, &p.WarehouseID, &p.EmployeeID, &p.ShipmentNumero,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func collectParcels(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}) ([]Parcel, error) {
	defer rows.Close()
	var parcels []Parcel
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, err
		}
		parcels = append(parcels, p)
	}
	return parcels, rows.Err()
}

// CreateParcelParams holds intake data; VolumenFt3 is derived before insert.
type CreateParcelParams struct {
	Descripcion string
	LargoIn     float64
	AnchoIn     float64
	AltoIn      float64
	PesoLb      float64
	VolumenFt3  float64
	Status      ParcelStatus
	WarehouseID int64
	EmployeeID  int64
}

func (q *Queries) CreateParcel(ctx context.Context, arg CreateParcelParams) (Parcel, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO parcels (descripcion, largo_in, ancho_in, alto_in, peso_lb, volumen_ft3, status, warehouse_id, employee_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+parcelColumns,
		arg.Descripcion, arg.LargoIn, arg.AnchoIn, arg.AltoIn, arg.PesoLb,
		arg.VolumenFt3, arg.Status, arg.WarehouseID, arg.EmployeeID,
	)
	return scanParcel(row)
}

func (q *Queries) GetParcel(ctx context.Context, id int64) (Parcel, error) {
	row := q.db.QueryRow(ctx, `SELECT `+parcelColumns+` FROM parcels WHERE id = $1`, id)
	return scanParcel(row)
}

// ListParcelsParams pages the admin parcel listing.
type ListParcelsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListParcels(ctx context.Context, arg ListParcelsParams) ([]Parcel, error) {
	rows, err := q.db.Query(ctx, `SELECT `+parcelColumns+` FROM parcels ORDER BY id LIMIT $1 OFFSET $2`, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectParcels(rows)
}

func (q *Queries) CountParcels(ctx context.Context) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM parcels`).Scan(&total)
	return total, err
}

func (q *Queries) ListParcelsByShipment(ctx context.Context, shipmentNumero int64) ([]Parcel, error) {
	rows, err := q.db.Query(ctx, `SELECT `+parcelColumns+` FROM parcels WHERE shipment_numero = $1 ORDER BY id`, shipmentNumero)
	if err != nil {
		return nil, err
	}
	return collectParcels(rows)
}

// ListParcelsByCustomer resolves the parcels a customer has been billed for,
// walking invoice line items back to their parcels.
func (q *Queries) ListParcelsByCustomer(ctx context.Context, customerID int64) ([]Parcel, error) {
	rows, err := q.db.Query(ctx, `
SELECT `+prefixColumns("p", parcelColumns)+`
FROM parcels p
JOIN invoice_items ii ON ii.parcel_id = p.id
JOIN invoices i ON i.numero = ii.invoice_numero
WHERE i.customer_id = $1
ORDER BY p.id`, customerID)
	if err != nil {
		return nil, err
	}
	return collectParcels(rows)
}

// ListAvailableParcelsByIDs returns the subset of the requested parcels that
// exist and are not yet assigned to any shipment.
func (q *Queries) ListAvailableParcelsByIDs(ctx context.Context, ids []int64) ([]Parcel, error) {
	rows, err := q.db.Query(ctx, `
SELECT `+parcelColumns+`
FROM parcels
WHERE id = ANY($1) AND shipment_numero IS NULL
ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	return collectParcels(rows)
}

// AssignParcelsToShipmentParams binds a parcel batch to a shipment and stamps
// the denormalised status in one statement.
type AssignParcelsToShipmentParams struct {
	IDs            []int64
	ShipmentNumero int64
	Status         ParcelStatus
}

func (q *Queries) AssignParcelsToShipment(ctx context.Context, arg AssignParcelsToShipmentParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
UPDATE parcels SET shipment_numero = $2, status = $3, updated_at = now()
WHERE id = ANY($1) AND shipment_numero IS NULL`,
		arg.IDs, arg.ShipmentNumero, arg.Status,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateParcelsStatusByShipmentParams cascades a parcel status over a shipment's batch.
type UpdateParcelsStatusByShipmentParams struct {
	ShipmentNumero int64
	Status         ParcelStatus
}

func (q *Queries) UpdateParcelsStatusByShipment(ctx context.Context, arg UpdateParcelsStatusByShipmentParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
UPDATE parcels SET status = $2, updated_at = now() WHERE shipment_numero = $1`,
		arg.ShipmentNumero, arg.Status,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateParcelsStatusByIDsParams stamps a status on an explicit parcel set.
type UpdateParcelsStatusByIDsParams struct {
	IDs    []int64
	Status ParcelStatus
}

func (q *Queries) UpdateParcelsStatusByIDs(ctx context.Context, arg UpdateParcelsStatusByIDsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
UPDATE parcels SET status = $2, updated_at = now() WHERE id = ANY($1)`,
		arg.IDs, arg.Status,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DetachParcelsFromShipmentParams clears the shipment reference on a batch and
// resets its status; used when the shipment itself is removed.
type DetachParcelsFromShipmentParams struct {
	ShipmentNumero int64
	Status         ParcelStatus
}

func (q *Queries) DetachParcelsFromShipment(ctx context.Context, arg DetachParcelsFromShipmentParams) error {
	_, err := q.db.Exec(ctx, `
UPDATE parcels SET shipment_numero = NULL, status = $2, updated_at = now()
WHERE shipment_numero = $1`,
		arg.ShipmentNumero, arg.Status,
	)
	return err
}

// UpdateParcelParams rewrites intake data; VolumenFt3 is re-derived by the caller.
type UpdateParcelParams struct {
	ID          int64
	Descripcion string
	LargoIn     float64
	AnchoIn     float64
	AltoIn      float64
	PesoLb      float64
	VolumenFt3  float64
	Status      ParcelStatus
	WarehouseID int64
	EmployeeID  int64
}

func (q *Queries) UpdateParcel(ctx context.Context, arg UpdateParcelParams) (Parcel, error) {
	row := q.db.QueryRow(ctx, `
UPDATE parcels
SET descripcion = $2, largo_in = $3, ancho_in = $4, alto_in = $5, peso_lb = $6,
    volumen_ft3 = $7, status = $8, warehouse_id = $9, employee_id = $10, updated_at = now()
WHERE id = $1
RETURNING `+parcelColumns,
		arg.ID, arg.Descripcion, arg.LargoIn, arg.AnchoIn, arg.AltoIn, arg.PesoLb,
		arg.VolumenFt3, arg.Status, arg.WarehouseID, arg.EmployeeID,
	)
	return scanParcel(row)
}

func (q *Queries) DeleteParcel(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM parcels WHERE id = $1`, id)
	return err
}

// CountInvoiceItemsByParcel guards parcel deletion: a parcel referenced by a
// line item must never be hard-deleted.
func (q *Queries) CountInvoiceItemsByParcel(ctx context.Context, parcelID int64) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM invoice_items WHERE parcel_id = $1`, parcelID).Scan(&total)
	return total, err
}
