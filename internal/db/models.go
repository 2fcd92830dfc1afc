package db

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// TransportMode determines which rate formula a shipment bills under.
type TransportMode string

const (
	TransportModeSea TransportMode = "barco"
	TransportModeAir TransportMode = "avion"
)

// ShipmentStatus is the closed lifecycle of a shipment. The values are the
// canonical labels carried on the wire and in the database.
type ShipmentStatus string

const (
	ShipmentStatusDeparting ShipmentStatus = "en puerto de salida"
	ShipmentStatusInTransit ShipmentStatus = "en transito"
	ShipmentStatusArrived   ShipmentStatus = "en destino"
	ShipmentStatusPaid      ShipmentStatus = "pagado"
)

// ParcelStatus is the closed lifecycle of a parcel.
type ParcelStatus string

const (
	ParcelStatusWarehoused       ParcelStatus = "En almacén"
	ParcelStatusInTransit        ParcelStatus = "En tránsito"
	ParcelStatusReadyForDispatch ParcelStatus = "Disponible para despacho"
	ParcelStatusDispatched       ParcelStatus = "Despachado"
)

// ParseShipmentStatus normalises the label variants that circulated in older
// clients ("En Tránsito", "EnTransito", ...) onto the canonical enum.
func ParseShipmentStatus(raw string) (ShipmentStatus, bool) {
	switch normalizeLabel(raw) {
	case "enpuertodesalida":
		return ShipmentStatusDeparting, true
	case "entransito":
		return ShipmentStatusInTransit, true
	case "endestino":
		return ShipmentStatusArrived, true
	case "pagado":
		return ShipmentStatusPaid, true
	}
	return "", false
}

// ParseParcelStatus normalises parcel status labels onto the canonical enum.
func ParseParcelStatus(raw string) (ParcelStatus, bool) {
	switch normalizeLabel(raw) {
	case "enalmacen":
		return ParcelStatusWarehoused, true
	case "entransito":
		return ParcelStatusInTransit, true
	case "disponibleparadespacho":
		return ParcelStatusReadyForDispatch, true
	case "despachado":
		return ParcelStatusDispatched, true
	}
	return "", false
}

// ParseTransportMode validates a transport mode label.
func ParseTransportMode(raw string) (TransportMode, bool) {
	switch normalizeLabel(raw) {
	case "barco":
		return TransportModeSea, true
	case "avion":
		return TransportModeAir, true
	}
	return "", false
}

func normalizeLabel(raw string) string {
	replacer := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
		" ", "", "-", "", "_", "",
	)
	return replacer.Replace(strings.ToLower(strings.TrimSpace(raw)))
}

// User is an account in the directory; Rol is one of admin, empleado, cliente.
type User struct {
	ID           int64
	Cedula       string
	Email        string
	PNombre      string
	SNombre      pgtype.Text
	PApellido    string
	SApellido    pgtype.Text
	Telefono     string
	PasswordHash string
	Rol          string
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// FullName renders the display name used on invoices.
func (u User) FullName() string {
	parts := []string{u.PNombre}
	if u.SNombre.Valid && u.SNombre.String != "" {
		parts = append(parts, u.SNombre.String)
	}
	parts = append(parts, u.PApellido)
	if u.SApellido.Valid && u.SApellido.String != "" {
		parts = append(parts, u.SApellido.String)
	}
	return strings.Join(parts, " ")
}

// Session is a refresh-token session row; TokenHash stores a SHA-256 digest.
type Session struct {
	ID        int64
	UserID    int64
	TokenHash string
	UserAgent pgtype.Text
	IP        pgtype.Text
	ExpiresAt pgtype.Timestamptz
	CreatedAt pgtype.Timestamptz
}

// PasswordReset is a single-use password reset token.
type PasswordReset struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt pgtype.Timestamptz
	UsedAt    pgtype.Timestamptz
	CreatedAt pgtype.Timestamptz
}

// Warehouse is immutable reference data referenced by parcels and shipments.
type Warehouse struct {
	ID           int64
	Telefono     string
	Linea1       string
	Linea2       pgtype.Text
	Pais         string
	EstadoRegion string
	Ciudad       string
	Codpostal    string
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// Parcel is the billable physical unit. ShipmentNumero is null while the
// parcel is unassigned and therefore available for association.
type Parcel struct {
	ID             int64
	Descripcion    string
	LargoIn        float64
	AnchoIn        float64
	AltoIn         float64
	PesoLb         float64
	VolumenFt3     float64
	Status         ParcelStatus
	WarehouseID    int64
	EmployeeID     int64
	ShipmentNumero pgtype.Int8
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

// Shipment is a transport batch between two warehouses.
type Shipment struct {
	Numero        int64
	Tipo          TransportMode
	Status        ShipmentStatus
	FechaSalida   pgtype.Timestamptz
	FechaLlegada  pgtype.Timestamptz
	OriginID      int64
	DestinationID int64
	EmployeeID    int64
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

// Invoice bills one shipment to one customer. Amounts are integer cents.
type Invoice struct {
	Numero         int64
	Paid           bool
	MetodoPago     string
	MontoCents     int64
	CantidadPiezas int32
	PDF            pgtype.Text
	CustomerID     int64
	ShipmentNumero int64
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

// InvoiceItem is one billed parcel on an invoice.
type InvoiceItem struct {
	ID            int64
	Descripcion   string
	Cantidad      int32
	MontoCents    int64
	ParcelID      int64
	InvoiceNumero int64
}

// DomainEvent is a persisted record of a state change.
type DomainEvent struct {
	ID          int64
	Topic       string
	AggregateID int64
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}
