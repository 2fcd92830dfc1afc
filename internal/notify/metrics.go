package notify

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/cargotrack/backend-cargo/internal/db"
	"github.com/cargotrack/backend-cargo/internal/events"
	"github.com/cargotrack/backend-cargo/internal/obs"
)

// MetricsNotifier mirrors domain events into Prometheus counters.
type MetricsNotifier struct{}

// Notify implements the events.Notifier interface.
func (MetricsNotifier) Notify(_ context.Context, event db.DomainEvent) error {
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		_ = json.Unmarshal(event.Payload, &payload)
	}
	switch event.Topic {
	case events.TopicParcelReceived:
		if obs.ParcelsReceivedTotal != nil {
			warehouse := stringOr(payload, "warehouseId", "unknown")
			obs.ParcelsReceivedTotal.WithLabelValues(warehouse).Inc()
		}
	case events.TopicShipmentCreated, events.TopicShipmentStatusChanged:
		if obs.ShipmentStatusTotal != nil {
			obs.ShipmentStatusTotal.WithLabelValues(
				stringOr(payload, "tipo", "unknown"),
				stringOr(payload, "estado", "unknown"),
			).Inc()
		}
	case events.TopicInvoiceCreated:
		if obs.InvoicesIssuedTotal != nil {
			obs.InvoicesIssuedTotal.WithLabelValues(stringOr(payload, "tipo", "unknown")).Inc()
		}
		if obs.BilledCentsTotal != nil {
			if cents, ok := numberField(payload, "montoCents"); ok && cents > 0 {
				obs.BilledCentsTotal.Add(float64(cents))
			}
		}
	case events.TopicInvoicePaid:
		if obs.InvoicesPaidTotal != nil {
			obs.InvoicesPaidTotal.WithLabelValues(stringOr(payload, "metodoPago", "unknown")).Inc()
		}
	}
	return nil
}

func stringOr(payload map[string]any, key, fallback string) string {
	if val, ok := payload[key].(string); ok && val != "" {
		return val
	}
	if n, ok := numberField(payload, key); ok {
		return strconv.FormatInt(n, 10)
	}
	return fallback
}
