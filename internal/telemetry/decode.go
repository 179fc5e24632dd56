package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// DecodeError reports a structurally invalid payload. Field names the path
// of the offending substructure, e.g. "gps" or "events[1]".
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("telemetry: malformed field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("telemetry: malformed field %s", e.Field)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func malformed(field string, err error) *DecodeError {
	return &DecodeError{Field: field, Err: err}
}

func missing(field string) *DecodeError {
	return &DecodeError{Field: field, Err: fmt.Errorf("required field missing")}
}

// wireMessage defers the loosely-typed substructures so each can be decoded
// with its own shape rules and a precise error path.
type wireMessage struct {
	Device  json.RawMessage   `json:"device"`
	Network json.RawMessage   `json:"network"`
	Gsm     json.RawMessage   `json:"gsm"`
	Sims    json.RawMessage   `json:"sims"`
	Gps     json.RawMessage   `json:"gps"`
	Events  []json.RawMessage `json:"events"`
	Sensors []json.RawMessage `json:"sensors"`
	ObdPids []json.RawMessage `json:"obd_pids"`
	CanBus  []json.RawMessage `json:"can_bus"`
}

type wireGps struct {
	Timestamp  *int64   `json:"timestamp"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Altitude   float64  `json:"altitude"`
	Speed      float64  `json:"speed"`
	Heading    float64  `json:"heading"`
	Satellites int      `json:"satellites"`
	Activity   Activity `json:"activity"`
	Odometer   *int64   `json:"odometer"`
	TripOdo    *int64   `json:"trip_odo"`
	Pdop       *float64 `json:"pdop"`
	Hdop       *float64 `json:"hdop"`
	Vdop       *float64 `json:"vdop"`
	Tdop       *float64 `json:"tdop"`
	Flags      []string `json:"flags"`
}

// Decode parses a payload already classified as Decodable into a Record.
// It does not re-check the envelope, only structural shape. There is no
// partial recovery: a shape violation anywhere fails the whole decode and
// no record is returned.
func Decode(raw []byte) (*Record, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, malformed("message", err)
	}

	rec := &Record{}

	if len(w.Device) == 0 || isNull(w.Device) {
		return nil, missing("device")
	}
	if err := json.Unmarshal(w.Device, &rec.Device); err != nil {
		return nil, malformed("device", err)
	}

	// network is optional: absent means no fields reported.
	if len(w.Network) > 0 && !isNull(w.Network) {
		if err := json.Unmarshal(w.Network, &rec.Network); err != nil {
			return nil, malformed("network", err)
		}
	}

	if len(w.Gsm) == 0 || isNull(w.Gsm) {
		return nil, missing("gsm")
	}
	if err := json.Unmarshal(w.Gsm, &rec.Gsm); err != nil {
		return nil, malformed("gsm", err)
	}
	for i := range rec.Gsm {
		normalizeGsm(&rec.Gsm[i])
	}

	if len(w.Sims) == 0 || isNull(w.Sims) {
		return nil, missing("sims")
	}
	if err := json.Unmarshal(w.Sims, &rec.Sims); err != nil {
		return nil, malformed("sims", err)
	}

	if len(w.Gps) == 0 || isNull(w.Gps) {
		return nil, missing("gps")
	}
	var g wireGps
	if err := json.Unmarshal(w.Gps, &g); err != nil {
		return nil, malformed("gps", err)
	}
	rec.Gps = fixFromWire(g)

	var err error
	if rec.Events, err = decodeEvents(w.Events); err != nil {
		return nil, err
	}
	if rec.Sensors, err = decodeSensors(w.Sensors); err != nil {
		return nil, err
	}
	if rec.ObdPids, err = decodeObdPids(w.ObdPids); err != nil {
		return nil, err
	}
	if rec.CanBus, err = decodeCanBus(w.CanBus); err != nil {
		return nil, err
	}

	return rec, nil
}

func fixFromWire(g wireGps) Fix {
	f := Fix{
		Latitude:   g.Latitude,
		Longitude:  g.Longitude,
		Altitude:   g.Altitude,
		Speed:      g.Speed,
		Heading:    g.Heading,
		Satellites: g.Satellites,
		Activity:   g.Activity,
		Odometer:   g.Odometer,
		TripOdo:    g.TripOdo,
		Pdop:       g.Pdop,
		Hdop:       g.Hdop,
		Vdop:       g.Vdop,
		Tdop:       g.Tdop,
		Flags:      g.Flags,
	}
	if f.Activity == "" {
		f.Activity = ActivityUnknown
	}
	if f.Flags == nil {
		f.Flags = []string{}
	}
	if g.Timestamp != nil {
		t := time.Unix(*g.Timestamp, 0).UTC()
		f.Timestamp = &t
	}
	return f
}

// normalizeGsm keeps the list-valued fields as empty lists when the source
// omitted them, so "no cells reported" is never confused with a null list
// downstream.
func normalizeGsm(g *GsmInfo) {
	if g.Cid == nil {
		g.Cid = []int64{}
	}
	if g.Lcid == nil {
		g.Lcid = []int64{}
	}
	if g.Lac == nil {
		g.Lac = []int64{}
	}
	if g.Rssi == nil {
		g.Rssi = []int64{}
	}
	if g.Rcpi == nil {
		g.Rcpi = []int64{}
	}
	if g.Mcc == nil {
		g.Mcc = []string{}
	}
	if g.Mnc == nil {
		g.Mnc = []string{}
	}
	if g.Status == nil {
		g.Status = []string{}
	}
}

// decodeEvents applies the pair rule: every entry is an array whose first
// element is the event code; every further element must itself be a
// two-element [key, value] array. Shape is checked at decode time — nothing
// in the wire format names these pairs.
func decodeEvents(raws []json.RawMessage) ([]Event, error) {
	events := make([]Event, 0, len(raws))
	for i, raw := range raws {
		field := fmt.Sprintf("events[%d]", i)
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, malformed(field, err)
		}
		if len(elems) == 0 {
			return nil, malformed(field, fmt.Errorf("empty event entry"))
		}
		var code string
		if err := json.Unmarshal(elems[0], &code); err != nil {
			return nil, malformed(field, fmt.Errorf("event code must be a string: %w", err))
		}
		ev := Event{Code: code, Pairs: make([]Pair, 0, len(elems)-1)}
		for j, el := range elems[1:] {
			pair, err := decodePair(el)
			if err != nil {
				return nil, malformed(fmt.Sprintf("%s[%d]", field, j+1), err)
			}
			ev.Pairs = append(ev.Pairs, pair)
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodePair(raw json.RawMessage) (Pair, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return Pair{}, fmt.Errorf("expected [key, value] pair: %w", err)
	}
	if len(elems) != 2 {
		return Pair{}, fmt.Errorf("expected 2 elements, got %d", len(elems))
	}
	var key string
	if err := json.Unmarshal(elems[0], &key); err != nil {
		return Pair{}, fmt.Errorf("pair key must be a string: %w", err)
	}
	val, err := decodeValue(elems[1])
	if err != nil {
		return Pair{}, err
	}
	return Pair{Key: key, Value: val}, nil
}

func decodeSensors(raws []json.RawMessage) ([]Sensor, error) {
	sensors := make([]Sensor, 0, len(raws))
	for i, raw := range raws {
		pair, err := decodePair(raw)
		if err != nil {
			return nil, malformed(fmt.Sprintf("sensors[%d]", i), err)
		}
		sensors = append(sensors, Sensor{Name: pair.Key, Value: pair.Value})
	}
	return sensors, nil
}

// decodeIntPair handles the fixed [int, int] convention shared by the OBD
// and CAN bus lists. Fractional values are rejected — the format documents
// integer pairs only.
func decodeIntPair(raw json.RawMessage) (a, b int64, err error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return 0, 0, fmt.Errorf("expected [int, int] pair: %w", err)
	}
	if len(elems) != 2 {
		return 0, 0, fmt.Errorf("expected 2 elements, got %d", len(elems))
	}
	if err := json.Unmarshal(elems[0], &a); err != nil {
		return 0, 0, err
	}
	if err := json.Unmarshal(elems[1], &b); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func decodeObdPids(raws []json.RawMessage) ([]ObdPid, error) {
	pids := make([]ObdPid, 0, len(raws))
	for i, raw := range raws {
		pid, val, err := decodeIntPair(raw)
		if err != nil {
			return nil, malformed(fmt.Sprintf("obd_pids[%d]", i), err)
		}
		pids = append(pids, ObdPid{Pid: pid, Value: val})
	}
	return pids, nil
}

func decodeCanBus(raws []json.RawMessage) ([]CanEntry, error) {
	entries := make([]CanEntry, 0, len(raws))
	for i, raw := range raws {
		id, val, err := decodeIntPair(raw)
		if err != nil {
			return nil, malformed(fmt.Sprintf("can_bus[%d]", i), err)
		}
		entries = append(entries, CanEntry{ID: id, Value: val})
	}
	return entries, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 4 && string(raw) == "null"
}
