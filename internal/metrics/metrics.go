// Package metrics exposes the collector's ingest counters on a prometheus
// endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_ingestion_messages_received_total",
		Help: "Raw MQTT messages received.",
	})
	MessagesIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_ingestion_messages_ignored_total",
		Help: "Well-formed messages filtered out by the envelope classifier.",
	})
	MessagesMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_ingestion_messages_malformed_total",
		Help: "Messages rejected as unparseable or shape-invalid.",
	})
	RecordsDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_ingestion_records_decoded_total",
		Help: "GPS records fully decoded and forwarded.",
	})
	DLQMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_ingestion_dlq_messages_total",
		Help: "Envelopes published to the dead-letter topic.",
	})
)

// Serve starts the /metrics endpoint. It blocks, so run it on its own
// goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
