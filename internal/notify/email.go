package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cargotrack/backend-cargo/internal/common"
	"github.com/cargotrack/backend-cargo/internal/db"
	"github.com/cargotrack/backend-cargo/internal/events"
)

// EmailNotifier turns billing events into customer emails. Deliveries go
// through the task queue when one is configured, otherwise straight to the
// mailer.
type EmailNotifier struct {
	Tasks        *Enqueuer
	Mail         common.EmailSender
	Enabled      bool
	TopicToggles map[string]bool
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(ctx context.Context, event db.DomainEvent) error {
	if !n.Enabled {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	to := extractRecipient(payload)
	if to == "" {
		return nil
	}
	task := EmailTask{
		To:      to,
		Subject: subjectFor(event.Topic),
		Body:    bodyFor(event.Topic, payload, event.OccurredAt.Time),
	}
	if n.Tasks != nil {
		return n.Tasks.EnqueueEmail(ctx, task)
	}
	if n.Mail == nil {
		return nil
	}
	return n.Mail.Send(task.To, task.Subject, task.Body)
}

func extractRecipient(payload map[string]any) string {
	keys := []string{"email", "recipient", "customerEmail"}
	for _, key := range keys {
		if val, ok := payload[key]; ok {
			if s, ok := val.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func subjectFor(topic string) string {
	switch topic {
	case events.TopicParcelReceived:
		return "Paquete recibido en almacén"
	case events.TopicInvoiceCreated:
		return "Factura emitida"
	case events.TopicInvoicePaid:
		return "Pago confirmado"
	case events.TopicShipmentStatusChanged:
		return "Estado de envío actualizado"
	default:
		return fmt.Sprintf("Notificación %s", topic)
	}
}

func bodyFor(topic string, payload map[string]any, occurred time.Time) string {
	summary := fmt.Sprintf("Evento %s registrado el %s.", topic, occurred.Format(time.RFC3339))
	if numero, ok := numberField(payload, "invoiceNumero"); ok {
		summary += fmt.Sprintf("\nFactura: %d", numero)
	}
	if numero, ok := numberField(payload, "shipmentNumero"); ok {
		summary += fmt.Sprintf("\nEnvío: %d", numero)
	}
	if cents, ok := numberField(payload, "montoCents"); ok {
		summary += fmt.Sprintf("\nMonto: $%.2f", float64(cents)/100)
	}
	if metodo, ok := payload["metodoPago"].(string); ok && metodo != "" {
		summary += "\nMétodo de pago: " + metodo
	}
	return summary
}

func numberField(payload map[string]any, key string) (int64, bool) {
	val, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
