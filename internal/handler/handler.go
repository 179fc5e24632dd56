// Package handler runs the per-message pipeline of the collector: classify
// the envelope, decode accepted payloads, enrich with vehicle context and
// hand the result to Kafka. One invocation per MQTT delivery; the handler
// keeps no per-message state, so deliveries may run concurrently.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/acmgroup/gps-ingestion/internal/config"
	"github.com/acmgroup/gps-ingestion/internal/metrics"
	"github.com/acmgroup/gps-ingestion/internal/model"
	"github.com/acmgroup/gps-ingestion/internal/registry"
	"github.com/acmgroup/gps-ingestion/internal/telemetry"
)

// Forwarder takes decoded-record messages for the main topic.
type Forwarder interface {
	Enqueue(msg kafka.Message)
}

// DLQSink takes rejected payloads wrapped in a DLQEnvelope.
type DLQSink interface {
	SendDLQ(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

type Handler struct {
	logger    *log.Logger
	forwarder Forwarder
	dlq       DLQSink
	vehicles  registry.VehicleRegistry // nil when enrichment is disabled
}

func New(logger *log.Logger, forwarder Forwarder, dlq DLQSink, vehicles registry.VehicleRegistry) *Handler {
	return &Handler{logger: logger, forwarder: forwarder, dlq: dlq, vehicles: vehicles}
}

// Handle processes one inbound MQTT message end to end.
func (h *Handler) Handle(ctx context.Context, msg mqtt.Message) {
	receivedAt := time.Now().UTC()
	payload := msg.Payload()
	metrics.MessagesReceived.Inc()

	switch telemetry.Classify(payload) {
	case telemetry.Ignored:
		// non-GPS or gateway-rejected traffic: expected, skip silently
		metrics.MessagesIgnored.Inc()
		return
	case telemetry.Malformed:
		metrics.MessagesMalformed.Inc()
		h.logger.Printf("malformed envelope — sending to DLQ | message: %s", config.Truncate(payload, 512))
		h.toDLQ(ctx, model.StageClassify, "payload is not valid JSON", payload, msg.Topic(), receivedAt)
		return
	}

	rec, err := telemetry.Decode(payload)
	if err != nil {
		metrics.MessagesMalformed.Inc()
		h.logger.Printf("decode failed — sending to DLQ: %v | message: %s", err, config.Truncate(payload, 512))
		h.toDLQ(ctx, model.StageDecode, err.Error(), payload, msg.Topic(), receivedAt)
		return
	}

	identity := rec.Device.Identity()
	key := []byte(identity)
	if identity == "" {
		key = []byte("unknown-device")
	}

	env := model.OutboundEnvelope{
		Record:  rec,
		Vehicle: h.lookupVehicle(ctx, identity),
		Metadata: model.Metadata{
			EventID:     uuid.NewString(),
			CollectedAt: receivedAt,
			SourceTopic: msg.Topic(),
		},
	}

	buf, err := json.Marshal(env)
	if err != nil {
		h.logger.Printf("marshal outbound envelope failed: %v", err)
		return
	}

	h.forwarder.Enqueue(kafka.Message{
		Key:   key,
		Value: buf,
		Headers: []kafka.Header{
			{Key: "receivedAt", Value: []byte(receivedAt.Format(time.RFC3339Nano))},
		},
	})
	metrics.RecordsDecoded.Inc()
	h.logger.Printf("record OK: device=%s events=%d sensors=%d bytes=%d",
		identity, len(rec.Events), len(rec.Sensors), len(buf))
}

func (h *Handler) lookupVehicle(ctx context.Context, identity string) *model.VehicleContext {
	if h.vehicles == nil || identity == "" {
		return nil
	}
	vc, err := h.vehicles.Lookup(ctx, identity)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			h.logger.Printf("vehicle registry lookup error for %s: %v", identity, err)
		}
		return nil
	}
	return vc
}

func (h *Handler) toDLQ(ctx context.Context, stage, reason string, payload []byte, topic string, receivedAt time.Time) {
	dlq := model.DLQEnvelope{
		Error:      reason,
		Stage:      stage,
		Original:   json.RawMessage(payload),
		Topic:      topic,
		ReceivedAt: receivedAt,
	}
	if !json.Valid(payload) {
		// classify-stage rejects are not valid JSON; carry them as text
		dlq.Original = nil
		dlq.OriginalText = string(payload)
	}
	buf, err := json.Marshal(dlq)
	if err != nil {
		h.logger.Printf("marshal dlq envelope failed: %v", err)
		return
	}
	if err := h.dlq.SendDLQ(ctx, []byte("invalid"), buf); err != nil {
		h.logger.Printf("kafka write error (dlq): %v", err)
		return
	}
	metrics.DLQMessages.Inc()
}
