package billing

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cargotrack/backend-cargo/internal/common"
	"github.com/cargotrack/backend-cargo/internal/db"
	"github.com/cargotrack/backend-cargo/internal/events"
)

// fakeStore keeps the billing slice of the schema in memory.
type fakeStore struct {
	users     map[int64]db.User
	shipments map[int64]db.Shipment
	parcels   map[int64]db.Parcel
	invoices  map[int64]db.Invoice
	items     []db.InvoiceItem

	nextInvoice int64
	nextItem    int64

	failCreateInvoice     error
	failCreateInvoiceItem error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[int64]db.User{},
		shipments: map[int64]db.Shipment{},
		parcels:   map[int64]db.Parcel{},
		invoices:  map[int64]db.Invoice{},
	}
}

func (f *fakeStore) clone() *fakeStore {
	c := newFakeStore()
	for k, v := range f.users {
		c.users[k] = v
	}
	for k, v := range f.shipments {
		c.shipments[k] = v
	}
	for k, v := range f.parcels {
		c.parcels[k] = v
	}
	for k, v := range f.invoices {
		c.invoices[k] = v
	}
	c.items = append(c.items, f.items...)
	c.nextInvoice = f.nextInvoice
	c.nextItem = f.nextItem
	c.failCreateInvoice = f.failCreateInvoice
	c.failCreateInvoiceItem = f.failCreateInvoiceItem
	return c
}

func (f *fakeStore) restoreFrom(c *fakeStore) {
	f.users = c.users
	f.shipments = c.shipments
	f.parcels = c.parcels
	f.invoices = c.invoices
	f.items = c.items
	f.nextInvoice = c.nextInvoice
	f.nextItem = c.nextItem
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (db.User, error) {
	u, ok := f.users[id]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) GetShipment(_ context.Context, numero int64) (db.Shipment, error) {
	s, ok := f.shipments[numero]
	if !ok {
		return db.Shipment{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) ListAvailableParcelsByIDs(_ context.Context, ids []int64) ([]db.Parcel, error) {
	var out []db.Parcel
	for _, id := range ids {
		p, ok := f.parcels[id]
		if ok && !p.ShipmentNumero.Valid {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListParcelsByShipment(_ context.Context, numero int64) ([]db.Parcel, error) {
	var out []db.Parcel
	for _, p := range f.parcels {
		if p.ShipmentNumero.Valid && p.ShipmentNumero.Int64 == numero {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) AssignParcelsToShipment(_ context.Context, arg db.AssignParcelsToShipmentParams) (int64, error) {
	var n int64
	for _, id := range arg.IDs {
		p, ok := f.parcels[id]
		if !ok || p.ShipmentNumero.Valid {
			continue
		}
		p.ShipmentNumero = pgtype.Int8{Int64: arg.ShipmentNumero, Valid: true}
		p.Status = arg.Status
		f.parcels[id] = p
		n++
	}
	return n, nil
}

func (f *fakeStore) CreateInvoice(_ context.Context, arg db.CreateInvoiceParams) (db.Invoice, error) {
	if f.failCreateInvoice != nil {
		return db.Invoice{}, f.failCreateInvoice
	}
	f.nextInvoice++
	inv := db.Invoice{
		Numero:         f.nextInvoice,
		Paid:           false,
		MetodoPago:     arg.MetodoPago,
		MontoCents:     arg.MontoCents,
		CantidadPiezas: arg.CantidadPiezas,
		CustomerID:     arg.CustomerID,
		ShipmentNumero: arg.ShipmentNumero,
	}
	f.invoices[inv.Numero] = inv
	return inv, nil
}

func (f *fakeStore) CreateInvoiceItem(_ context.Context, arg db.CreateInvoiceItemParams) (db.InvoiceItem, error) {
	if f.failCreateInvoiceItem != nil {
		return db.InvoiceItem{}, f.failCreateInvoiceItem
	}
	f.nextItem++
	item := db.InvoiceItem{
		ID:            f.nextItem,
		Descripcion:   arg.Descripcion,
		Cantidad:      arg.Cantidad,
		MontoCents:    arg.MontoCents,
		ParcelID:      arg.ParcelID,
		InvoiceNumero: arg.InvoiceNumero,
	}
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeStore) GetInvoice(_ context.Context, numero int64) (db.Invoice, error) {
	inv, ok := f.invoices[numero]
	if !ok {
		return db.Invoice{}, pgx.ErrNoRows
	}
	return inv, nil
}

func (f *fakeStore) GetInvoiceByShipment(_ context.Context, numero int64) (db.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.ShipmentNumero == numero {
			return inv, nil
		}
	}
	return db.Invoice{}, pgx.ErrNoRows
}

func (f *fakeStore) ListInvoices(_ context.Context, _ db.ListInvoicesParams) ([]db.Invoice, error) {
	var out []db.Invoice
	for _, inv := range f.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeStore) CountInvoices(_ context.Context) (int64, error) {
	return int64(len(f.invoices)), nil
}

func (f *fakeStore) ListInvoicesByCustomer(_ context.Context, customerID int64) ([]db.Invoice, error) {
	var out []db.Invoice
	for _, inv := range f.invoices {
		if inv.CustomerID == customerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeStore) ListInvoiceItems(_ context.Context, invoiceNumero int64) ([]db.InvoiceItem, error) {
	var out []db.InvoiceItem
	for _, item := range f.items {
		if item.InvoiceNumero == invoiceNumero {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkInvoicePaid(_ context.Context, arg db.MarkInvoicePaidParams) (db.Invoice, error) {
	inv, ok := f.invoices[arg.Numero]
	if !ok {
		return db.Invoice{}, pgx.ErrNoRows
	}
	inv.Paid = true
	inv.MetodoPago = arg.MetodoPago
	f.invoices[arg.Numero] = inv
	return inv, nil
}

func (f *fakeStore) UpdateShipmentStatus(_ context.Context, arg db.UpdateShipmentStatusParams) error {
	s, ok := f.shipments[arg.Numero]
	if !ok {
		return pgx.ErrNoRows
	}
	s.Status = arg.Status
	f.shipments[arg.Numero] = s
	return nil
}

// fakeTx snapshots the store, runs fn against the copy, and only publishes
// the copy on success. Mirrors commit/rollback without a database.
type fakeTx struct {
	store *fakeStore
}

func (t fakeTx) InTx(_ context.Context, fn func(Store) error) error {
	snapshot := t.store.clone()
	if err := fn(t.store); err != nil {
		t.store.restoreFrom(snapshot)
		return err
	}
	return nil
}

func seedStore() *fakeStore {
	store := newFakeStore()
	store.users[10] = db.User{ID: 10, Email: "cliente@example.com", Rol: "cliente"}
	store.shipments[1] = db.Shipment{Numero: 1, Tipo: db.TransportModeSea, Status: db.ShipmentStatusInTransit}
	store.parcels[100] = db.Parcel{ID: 100, Descripcion: "caja de zapatos", PesoLb: 5, VolumenFt3: 1.2, Status: db.ParcelStatusWarehoused}
	store.parcels[101] = db.Parcel{ID: 101, Descripcion: "televisor", PesoLb: 30, VolumenFt3: 2, Status: db.ParcelStatusWarehoused}
	return store
}

func newService(store *fakeStore) *Service {
	return &Service{Q: store, Tx: fakeTx{store: store}}
}

func TestAssociateCreatesInvoiceWithItems(t *testing.T) {
	store := seedStore()
	svc := newService(store)

	out, err := svc.Associate(context.Background(), 1, 10, []int64{100, 101})
	require.NoError(t, err)

	// 1.2 ft³ hits the sea minimum (3500), 2 ft³ bills 5000.
	require.Equal(t, int64(8500), out.Invoice.MontoCents)
	require.Equal(t, int32(2), out.Invoice.CantidadPiezas)
	require.False(t, out.Invoice.Paid)
	require.Equal(t, "pendiente", out.Invoice.MetodoPago)
	require.Equal(t, int64(10), out.Invoice.CustomerID)
	require.Len(t, out.Items, 2)

	var itemTotal int64
	for _, item := range out.Items {
		itemTotal += item.MontoCents
	}
	require.Equal(t, out.Invoice.MontoCents, itemTotal)

	for _, id := range []int64{100, 101} {
		p := store.parcels[id]
		require.True(t, p.ShipmentNumero.Valid)
		require.Equal(t, int64(1), p.ShipmentNumero.Int64)
		require.Equal(t, db.ParcelStatusInTransit, p.Status)
	}
}

func TestAssociateEmptyBatchRejected(t *testing.T) {
	svc := newService(seedStore())

	_, err := svc.Associate(context.Background(), 1, 10, nil)
	requireAppError(t, err, "VALIDATION_ERROR", http.StatusBadRequest)
}

func TestAssociateUnknownCustomerRejected(t *testing.T) {
	svc := newService(seedStore())

	_, err := svc.Associate(context.Background(), 1, 999, []int64{100})
	requireAppError(t, err, "VALIDATION_ERROR", http.StatusBadRequest)
}

func TestAssociateUnknownShipmentNotFound(t *testing.T) {
	svc := newService(seedStore())

	_, err := svc.Associate(context.Background(), 77, 10, []int64{100})
	requireAppError(t, err, "NOT_FOUND", http.StatusNotFound)
}

func TestAssociateUnavailableParcelsListed(t *testing.T) {
	store := seedStore()
	taken := store.parcels[101]
	taken.ShipmentNumero = pgtype.Int8{Int64: 5, Valid: true}
	store.parcels[101] = taken
	svc := newService(store)

	_, err := svc.Associate(context.Background(), 1, 10, []int64{100, 101, 999})

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PARCELS_UNAVAILABLE", appErr.Code)
	details, ok := appErr.Details.(map[string]any)
	require.True(t, ok)
	require.ElementsMatch(t, []int64{101, 999}, details["parcel_ids"])

	// The whole batch must be rejected, including the free parcel.
	require.False(t, store.parcels[100].ShipmentNumero.Valid)
	require.Empty(t, store.invoices)
}

func TestAssociateRollsBackOnInvoiceFailure(t *testing.T) {
	store := seedStore()
	store.failCreateInvoice = errors.New("disk full")
	svc := newService(store)

	_, err := svc.Associate(context.Background(), 1, 10, []int64{100, 101})
	require.Error(t, err)

	for _, id := range []int64{100, 101} {
		require.False(t, store.parcels[id].ShipmentNumero.Valid, "parcel %d must stay unassigned", id)
		require.Equal(t, db.ParcelStatusWarehoused, store.parcels[id].Status)
	}
	require.Empty(t, store.invoices)
	require.Empty(t, store.items)
}

func TestAssociateRollsBackOnItemFailure(t *testing.T) {
	store := seedStore()
	store.failCreateInvoiceItem = errors.New("constraint violation")
	svc := newService(store)

	_, err := svc.Associate(context.Background(), 1, 10, []int64{100})
	require.Error(t, err)
	require.Empty(t, store.invoices)
	require.False(t, store.parcels[100].ShipmentNumero.Valid)
}

func TestAssociateShipmentAlreadyInvoiced(t *testing.T) {
	store := seedStore()
	store.invoices[50] = db.Invoice{Numero: 50, ShipmentNumero: 1, CustomerID: 10}
	svc := newService(store)

	_, err := svc.Associate(context.Background(), 1, 10, []int64{100})
	requireAppError(t, err, "SHIPMENT_ALREADY_INVOICED", http.StatusConflict)
}

func TestAssociateDeduplicatesParcelIDs(t *testing.T) {
	store := seedStore()
	svc := newService(store)

	out, err := svc.Associate(context.Background(), 1, 10, []int64{100, 100, 101})
	require.NoError(t, err)
	require.Equal(t, int32(2), out.Invoice.CantidadPiezas)
	require.Len(t, out.Items, 2)
}

func TestAssociateEmitsInvoiceCreated(t *testing.T) {
	store := seedStore()
	evStore := &memEventStore{}
	svc := newService(store)
	svc.Events = &events.Bus{Store: evStore}

	out, err := svc.Associate(context.Background(), 1, 10, []int64{100})
	require.NoError(t, err)
	require.Len(t, evStore.inserted, 1)
	require.Equal(t, events.TopicInvoiceCreated, evStore.inserted[0].Topic)
	require.Equal(t, out.Invoice.Numero, evStore.inserted[0].AggregateID)
	require.Contains(t, string(evStore.inserted[0].Payload), `"tipo":"barco"`)
}

func TestAssociateLogsNotifierFailure(t *testing.T) {
	store := seedStore()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	svc := newService(store)
	svc.Events = &events.Bus{Store: &memEventStore{}, Notifiers: []events.Notifier{failingNotifier{}}}
	svc.Log = &logger

	_, err := svc.Associate(context.Background(), 1, 10, []int64{100})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "event emission failed")
	require.Contains(t, buf.String(), "smtp unreachable")
}

func TestPaySettlesInvoiceAndShipment(t *testing.T) {
	store := seedStore()
	store.invoices[7] = db.Invoice{Numero: 7, MetodoPago: "pendiente", MontoCents: 8500, CustomerID: 10, ShipmentNumero: 1}
	svc := newService(store)

	paid, err := svc.Pay(context.Background(), 7, "tarjeta")
	require.NoError(t, err)
	require.True(t, paid.Paid)
	require.Equal(t, "tarjeta", paid.MetodoPago)
	require.Equal(t, db.ShipmentStatusPaid, store.shipments[1].Status)
}

func TestPayAlreadyPaidRejected(t *testing.T) {
	store := seedStore()
	store.invoices[7] = db.Invoice{Numero: 7, Paid: true, MetodoPago: "efectivo", ShipmentNumero: 1}
	svc := newService(store)

	_, err := svc.Pay(context.Background(), 7, "tarjeta")
	requireAppError(t, err, "ALREADY_PAID", http.StatusConflict)

	// Nothing moves on a rejected replay.
	require.Equal(t, "efectivo", store.invoices[7].MetodoPago)
	require.Equal(t, db.ShipmentStatusInTransit, store.shipments[1].Status)
}

func TestPayUnknownInvoiceNotFound(t *testing.T) {
	svc := newService(seedStore())

	_, err := svc.Pay(context.Background(), 404, "tarjeta")
	requireAppError(t, err, "NOT_FOUND", http.StatusNotFound)
}

func TestPayRejectsPendingMethod(t *testing.T) {
	store := seedStore()
	store.invoices[7] = db.Invoice{Numero: 7, ShipmentNumero: 1}
	svc := newService(store)

	_, err := svc.Pay(context.Background(), 7, "pendiente")
	requireAppError(t, err, "VALIDATION_ERROR", http.StatusBadRequest)

	_, err = svc.Pay(context.Background(), 7, "")
	requireAppError(t, err, "VALIDATION_ERROR", http.StatusBadRequest)
}

func TestPayRollsBackWhenShipmentMissing(t *testing.T) {
	store := seedStore()
	store.invoices[7] = db.Invoice{Numero: 7, MetodoPago: "pendiente", ShipmentNumero: 99}
	svc := newService(store)

	_, err := svc.Pay(context.Background(), 7, "tarjeta")
	require.Error(t, err)
	require.False(t, store.invoices[7].Paid, "invoice must stay unpaid when the shipment update fails")
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, db.DomainEvent) error {
	return errors.New("smtp unreachable")
}

type memEventStore struct {
	inserted []db.DomainEvent
}

func (m *memEventStore) InsertDomainEvent(_ context.Context, arg db.InsertDomainEventParams) (db.DomainEvent, error) {
	ev := db.DomainEvent{
		ID:          int64(len(m.inserted) + 1),
		Topic:       arg.Topic,
		AggregateID: arg.AggregateID,
		Payload:     arg.Payload,
	}
	m.inserted = append(m.inserted, ev)
	return ev, nil
}

func requireAppError(t *testing.T, err error, code string, status int) {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
	require.Equal(t, status, appErr.HTTPStatus)
}
