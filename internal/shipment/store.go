package shipment

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargotrack/backend-cargo/internal/db"
)

// Store is the slice of the query layer shipment management needs.
type Store interface {
	GetUserByID(ctx context.Context, id int64) (db.User, error)
	GetWarehouse(ctx context.Context, id int64) (db.Warehouse, error)
	CreateShipment(ctx context.Context, arg db.CreateShipmentParams) (db.Shipment, error)
	GetShipment(ctx context.Context, numero int64) (db.Shipment, error)
	ListShipments(ctx context.Context, arg db.ListShipmentsParams) ([]db.Shipment, error)
	CountShipments(ctx context.Context) (int64, error)
	UpdateShipment(ctx context.Context, arg db.UpdateShipmentParams) (db.Shipment, error)
	UpdateShipmentStatus(ctx context.Context, arg db.UpdateShipmentStatusParams) error
	DeleteShipment(ctx context.Context, numero int64) error
	ListParcelsByShipment(ctx context.Context, numero int64) ([]db.Parcel, error)
	UpdateParcelsStatusByShipment(ctx context.Context, arg db.UpdateParcelsStatusByShipmentParams) (int64, error)
	DetachParcelsFromShipment(ctx context.Context, arg db.DetachParcelsFromShipmentParams) error
	GetInvoiceByShipment(ctx context.Context, numero int64) (db.Invoice, error)
	DeleteInvoiceItemsByInvoice(ctx context.Context, invoiceNumero int64) error
	DeleteInvoice(ctx context.Context, numero int64) error
}

// TxManager runs a function against a transactional Store.
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
