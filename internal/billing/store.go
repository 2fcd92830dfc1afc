package billing

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargotrack/backend-cargo/internal/db"
)

// Store is the slice of the query layer billing needs. Narrowing it here
// keeps the service mockable without a database.
type Store interface {
	GetUserByID(ctx context.Context, id int64) (db.User, error)
	GetShipment(ctx context.Context, numero int64) (db.Shipment, error)
	ListAvailableParcelsByIDs(ctx context.Context, ids []int64) ([]db.Parcel, error)
	ListParcelsByShipment(ctx context.Context, numero int64) ([]db.Parcel, error)
	AssignParcelsToShipment(ctx context.Context, arg db.AssignParcelsToShipmentParams) (int64, error)
	CreateInvoice(ctx context.Context, arg db.CreateInvoiceParams) (db.Invoice, error)
	CreateInvoiceItem(ctx context.Context, arg db.CreateInvoiceItemParams) (db.InvoiceItem, error)
	GetInvoice(ctx context.Context, numero int64) (db.Invoice, error)
	GetInvoiceByShipment(ctx context.Context, numero int64) (db.Invoice, error)
	ListInvoices(ctx context.Context, arg db.ListInvoicesParams) ([]db.Invoice, error)
	CountInvoices(ctx context.Context) (int64, error)
	ListInvoicesByCustomer(ctx context.Context, customerID int64) ([]db.Invoice, error)
	ListInvoiceItems(ctx context.Context, invoiceNumero int64) ([]db.InvoiceItem, error)
	MarkInvoicePaid(ctx context.Context, arg db.MarkInvoicePaidParams) (db.Invoice, error)
	UpdateShipmentStatus(ctx context.Context, arg db.UpdateShipmentStatusParams) error
}

// TxManager runs a function against a transactional Store. The transaction
// commits when fn returns nil and rolls back otherwise.
type TxManager interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// PgxTxManager is the production TxManager backed by a pgx pool.
type PgxTxManager struct {
	Pool *pgxpool.Pool
	Q    *db.Queries
}

// InTx implements TxManager.
func (m PgxTxManager) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := m.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(m.Q.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
