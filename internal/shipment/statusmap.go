package shipment

import "github.com/cargotrack/backend-cargo/internal/db"

// parcelStatusByShipment maps a shipment lifecycle stage onto the status its
// parcels display to customers. Paid is absent on purpose: payment does not
// move cargo.
var parcelStatusByShipment = map[db.ShipmentStatus]db.ParcelStatus{
	db.ShipmentStatusDeparting: db.ParcelStatusWarehoused,
	db.ShipmentStatusInTransit: db.ParcelStatusInTransit,
	db.ShipmentStatusArrived:   db.ParcelStatusReadyForDispatch,
}

// ParcelStatusFor returns the parcel status a shipment stage cascades to.
// ok is false when the stage carries no cascade (e.g. pagado).
func ParcelStatusFor(status db.ShipmentStatus) (db.ParcelStatus, bool) {
	ps, ok := parcelStatusByShipment[status]
	return ps, ok
}
