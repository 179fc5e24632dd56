package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/acmgroup/gps-ingestion/internal/telemetry"
)

// OutboundEnvelope is what the collector publishes for each decoded GPS
// message. The record is the immutable decode result; vehicle context is
// present only when the registry knows the device.
type OutboundEnvelope struct {
	Record   *telemetry.Record `json:"record"`
	Vehicle  *VehicleContext   `json:"vehicle,omitempty"`
	Metadata Metadata          `json:"metadata"`
}

type Metadata struct {
	EventID     string    `json:"eventId"`
	CollectedAt time.Time `json:"collectedAt"`
	SourceTopic string    `json:"sourceTopic"`
}

// VehicleContext is fleet-side information about a device, looked up from
// the registry rather than carried on the wire by the device itself.
type VehicleContext struct {
	FleetID      string `json:"fleetId"`
	Label        string `json:"label"`
	VehicleModel string `json:"vehicleModel,omitempty"`
	Group        string `json:"group,omitempty"`
}

// DLQEnvelope wraps payloads that failed classification or decoding. Stage
// tells which phase rejected the message; the original bytes ride along for
// offline inspection.
type DLQEnvelope struct {
	Error string `json:"error"`
	Stage string `json:"stage"`
	// Original carries the payload verbatim when it is valid JSON;
	// OriginalText carries it as an escaped string when it is not.
	Original     json.RawMessage `json:"original,omitempty"`
	OriginalText string          `json:"originalText,omitempty"`
	Topic        string          `json:"topic"`
	ReceivedAt   time.Time       `json:"receivedAt"`
}

const (
	StageClassify = "classify"
	StageDecode   = "decode"
)

// DecodeOutbound parses a forwarded envelope off the records topic.
func DecodeOutbound(raw []byte) (*OutboundEnvelope, error) {
	var env OutboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Record == nil {
		return nil, errors.New("envelope has no record")
	}
	return &env, nil
}
