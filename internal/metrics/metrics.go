// Package metrics registers the Prometheus collectors for the event and
// delivery pipelines.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photorelay_webhook_events_total",
			Help: "Count of inbound webhook events by outcome",
		},
		[]string{"outcome"}, // handled, ignored_tenant, ignored_completed, unrecognized, error
	)
	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photorelay_messages_sent_total",
			Help: "Count of outbound messages by kind",
		},
		[]string{"kind"}, // text, buttons, template, image
	)
	Enhancements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photorelay_enhancements_total",
			Help: "Count of restoration runs by status",
		},
		[]string{"status"}, // ok, invalid_image, failed
	)
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photorelay_deliveries_total",
			Help: "Count of operator delivery requests by status",
		},
		[]string{"status"}, // ok, validation, enhance, upload, send
	)
)

func Init() {
	prometheus.MustRegister(
		WebhookEvents,
		MessagesSent,
		Enhancements,
		Deliveries,
	)
}
