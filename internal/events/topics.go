package events

// Topic constants for domain events emitted by the platform.
const (
	TopicParcelReceived        = "parcel.received"
	TopicShipmentCreated       = "shipment.created"
	TopicShipmentStatusChanged = "shipment.status_changed"
	TopicInvoiceCreated        = "invoice.created"
	TopicInvoicePaid           = "invoice.paid"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicParcelReceived,
		TopicShipmentCreated,
		TopicShipmentStatusChanged,
		TopicInvoiceCreated,
		TopicInvoicePaid,
	}
}
