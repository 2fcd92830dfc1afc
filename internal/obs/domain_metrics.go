package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ParcelsReceivedTotal counts parcels registered at intake by warehouse.
	ParcelsReceivedTotal *prometheus.CounterVec
	// ShipmentStatusTotal counts shipment status transitions by mode and status.
	ShipmentStatusTotal *prometheus.CounterVec
	// InvoicesIssuedTotal counts invoices created by transport mode.
	InvoicesIssuedTotal *prometheus.CounterVec
	// InvoicesPaidTotal counts settled invoices by payment method.
	InvoicesPaidTotal *prometheus.CounterVec
	// BilledCentsTotal accumulates the invoiced amount in cents.
	BilledCentsTotal prometheus.Counter
	// ResetEmailsTotal counts password reset emails handed to the mailer.
	ResetEmailsTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ParcelsReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parcels_received_total",
			Help:      "Count of parcels registered at warehouse intake.",
		}, []string{"warehouse"})
		ShipmentStatusTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipment_status_total",
			Help:      "Count of shipment status transitions.",
		}, []string{"mode", "status"})
		InvoicesIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_issued_total",
			Help:      "Count of invoices created by transport mode.",
		}, []string{"mode"})
		InvoicesPaidTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_paid_total",
			Help:      "Count of invoices settled by payment method.",
		}, []string{"method"})
		BilledCentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billed_cents_total",
			Help:      "Total invoiced amount in cents.",
		})
		ResetEmailsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reset_emails_total",
			Help:      "Number of password reset emails dispatched.",
		})

		mustRegisterCollector(reg, ParcelsReceivedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ParcelsReceivedTotal = v
			}
		})
		mustRegisterCollector(reg, ShipmentStatusTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ShipmentStatusTotal = v
			}
		})
		mustRegisterCollector(reg, InvoicesIssuedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoicesIssuedTotal = v
			}
		})
		mustRegisterCollector(reg, InvoicesPaidTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoicesPaidTotal = v
			}
		})
		mustRegisterCollector(reg, BilledCentsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				BilledCentsTotal = v
			}
		})
		mustRegisterCollector(reg, ResetEmailsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ResetEmailsTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
