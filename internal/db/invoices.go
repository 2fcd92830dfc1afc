package db

import (
	"context"
)

const invoiceColumns = `numero, paid, metodo_pago, monto_cents, cantidad_piezas, pdf, customer_id, shipment_numero, created_at, updated_at`

func scanInvoice(row interface{ Scan(dest ...any) error }) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.Numero, &inv.Paid, &inv.MetodoPago, &inv.MontoCents, &inv.CantidadPiezas,
		&inv.PDF, &inv.CustomerID, &inv.ShipmentNumero, &inv.CreatedAt, &inv.UpdatedAt,
	)
	return inv, err
}

func collectInvoices(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}) ([]Invoice, error) {
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// CreateInvoiceParams opens an unpaid invoice for a shipment.
type CreateInvoiceParams struct {
	MetodoPago     string
	MontoCents     int64
	CantidadPiezas int32
	CustomerID     int64
	ShipmentNumero int64
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO invoices (paid, metodo_pago, monto_cents, cantidad_piezas, customer_id, shipment_numero)
VALUES (FALSE, $1, $2, $3, $4, $5)
RETURNING `+invoiceColumns,
		arg.MetodoPago, arg.MontoCents, arg.CantidadPiezas, arg.CustomerID, arg.ShipmentNumero,
	)
	return scanInvoice(row)
}

// CreateInvoiceItemParams adds one billed parcel to an invoice.
type CreateInvoiceItemParams struct {
	Descripcion   string
	Cantidad      int32
	MontoCents    int64
	ParcelID      int64
	InvoiceNumero int64
}

func (q *Queries) CreateInvoiceItem(ctx context.Context, arg CreateInvoiceItemParams) (InvoiceItem, error) {
	var item InvoiceItem
	err := q.db.QueryRow(ctx, `
INSERT INTO invoice_items (descripcion, cantidad, monto_cents, parcel_id, invoice_numero)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, descripcion, cantidad, monto_cents, parcel_id, invoice_numero`,
		arg.Descripcion, arg.Cantidad, arg.MontoCents, arg.ParcelID, arg.InvoiceNumero,
	).Scan(&item.ID, &item.Descripcion, &item.Cantidad, &item.MontoCents, &item.ParcelID, &item.InvoiceNumero)
	return item, err
}

func (q *Queries) GetInvoice(ctx context.Context, numero int64) (Invoice, error) {
	row := q.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE numero = $1`, numero)
	return scanInvoice(row)
}

func (q *Queries) GetInvoiceByShipment(ctx context.Context, shipmentNumero int64) (Invoice, error) {
	row := q.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE shipment_numero = $1`, shipmentNumero)
	return scanInvoice(row)
}

// ListInvoicesParams pages invoices newest first.
type ListInvoicesParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListInvoices(ctx context.Context, arg ListInvoicesParams) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY numero DESC LIMIT $1 OFFSET $2`, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

func (q *Queries) CountInvoices(ctx context.Context) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM invoices`).Scan(&total)
	return total, err
}

func (q *Queries) ListInvoicesByCustomer(ctx context.Context, customerID int64) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE customer_id = $1 ORDER BY numero DESC`, customerID)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

func (q *Queries) ListInvoiceItems(ctx context.Context, invoiceNumero int64) ([]InvoiceItem, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, descripcion, cantidad, monto_cents, parcel_id, invoice_numero
FROM invoice_items WHERE invoice_numero = $1 ORDER BY id`, invoiceNumero)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceItem
	for rows.Next() {
		var item InvoiceItem
		if err := rows.Scan(&item.ID, &item.Descripcion, &item.Cantidad, &item.MontoCents, &item.ParcelID, &item.InvoiceNumero); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkInvoicePaidParams finalises payment; the shipment transition is the
// caller's responsibility inside the same transaction.
type MarkInvoicePaidParams struct {
	Numero     int64
	MetodoPago string
}

func (q *Queries) MarkInvoicePaid(ctx context.Context, arg MarkInvoicePaidParams) (Invoice, error) {
	row := q.db.QueryRow(ctx, `
UPDATE invoices SET paid = TRUE, metodo_pago = $2, updated_at = now()
WHERE numero = $1
RETURNING `+invoiceColumns,
		arg.Numero, arg.MetodoPago,
	)
	return scanInvoice(row)
}

func (q *Queries) DeleteInvoiceItemsByInvoice(ctx context.Context, invoiceNumero int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_numero = $1`, invoiceNumero)
	return err
}

func (q *Queries) DeleteInvoice(ctx context.Context, numero int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM invoices WHERE numero = $1`, numero)
	return err
}
