package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/cargotrack/backend-cargo/internal/common"
	"github.com/cargotrack/backend-cargo/internal/db"
	"github.com/cargotrack/backend-cargo/internal/events"
)

func invoicePaidEvent(t *testing.T, payload map[string]any) db.DomainEvent {
	t.Helper()
	encoded, err := json.Marshal(payload)
	require.NoError(t, err)
	return db.DomainEvent{
		ID:          1,
		Topic:       events.TopicInvoicePaid,
		AggregateID: 42,
		Payload:     encoded,
		OccurredAt:  pgtype.Timestamptz{Time: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC), Valid: true},
	}
}

func TestEmailNotifierSendsDirectly(t *testing.T) {
	mail := &common.InMemoryEmail{}
	notifier := EmailNotifier{Mail: mail, Enabled: true}

	event := invoicePaidEvent(t, map[string]any{
		"email":         "ana@example.com",
		"invoiceNumero": 42,
		"montoCents":    8500,
		"metodoPago":    "zelle",
	})
	require.NoError(t, notifier.Notify(context.Background(), event))
	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "ana@example.com", mail.Outbox[0].To)
	require.Equal(t, "Pago confirmado", mail.Outbox[0].Subject)
	require.Contains(t, mail.Outbox[0].HTML, "Factura: 42")
	require.Contains(t, mail.Outbox[0].HTML, "$85.00")
	require.Contains(t, mail.Outbox[0].HTML, "zelle")
}

func TestEmailNotifierSkipsWithoutRecipient(t *testing.T) {
	mail := &common.InMemoryEmail{}
	notifier := EmailNotifier{Mail: mail, Enabled: true}

	event := invoicePaidEvent(t, map[string]any{"invoiceNumero": 42})
	require.NoError(t, notifier.Notify(context.Background(), event))
	require.Empty(t, mail.Outbox)
}

func TestEmailNotifierDisabled(t *testing.T) {
	mail := &common.InMemoryEmail{}
	notifier := EmailNotifier{Mail: mail, Enabled: false}

	event := invoicePaidEvent(t, map[string]any{"email": "ana@example.com"})
	require.NoError(t, notifier.Notify(context.Background(), event))
	require.Empty(t, mail.Outbox)
}

func TestEmailNotifierTopicToggle(t *testing.T) {
	mail := &common.InMemoryEmail{}
	notifier := EmailNotifier{
		Mail:         mail,
		Enabled:      true,
		TopicToggles: map[string]bool{events.TopicInvoicePaid: false},
	}

	event := invoicePaidEvent(t, map[string]any{"email": "ana@example.com"})
	require.NoError(t, notifier.Notify(context.Background(), event))
	require.Empty(t, mail.Outbox)
}

func TestEmailWorkerDelivers(t *testing.T) {
	mail := &common.InMemoryEmail{}
	worker := EmailWorker{Mail: mail}

	task, err := NewEmailTask(EmailTask{To: "ana@example.com", Subject: "Factura emitida", Body: "hola"})
	require.NoError(t, err)
	require.NoError(t, worker.ProcessTask(context.Background(), task))
	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "Factura emitida", mail.Outbox[0].Subject)
}
