package telemetry

import (
	"bytes"
	"encoding/json"
)

// Decision is the outcome of classifying a raw payload.
type Decision int

const (
	// Decodable: a valid GPS v1 message — worth the full typed decode.
	Decodable Decision = iota
	// Ignored: well-formed but not a validated GPS v1 message. Expected
	// filtering of register/heartbeat/history/etc traffic, not an error.
	Ignored
	// Malformed: not parseable as a JSON message object at all.
	Malformed
)

func (d Decision) String() string {
	switch d {
	case Decodable:
		return "decodable"
	case Ignored:
		return "ignored"
	case Malformed:
		return "malformed"
	}
	return "invalid"
}

// envelope is the minimal view of a message used for the gate decision.
// Fields stay as raw tokens so a wrong-typed or missing field never errors
// at this stage — it just fails the match and the message is ignored.
type envelope struct {
	MessageVer  json.RawMessage `json:"message_ver"`
	MessageType json.RawMessage `json:"message_type"`
	Valid       json.RawMessage `json:"valid"`
}

var (
	tokenVerOne  = []byte("1")
	tokenTypeGps = []byte(`"gps"`)
	tokenTrue    = []byte("true")
)

// Classify inspects just enough of the payload to decide whether a full
// decode is warranted. It is a pure function over the bytes and never
// allocates more than the three envelope tokens.
func Classify(raw []byte) Decision {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Malformed
	}
	if bytes.Equal(env.MessageVer, tokenVerOne) &&
		bytes.Equal(env.MessageType, tokenTypeGps) &&
		bytes.Equal(env.Valid, tokenTrue) {
		return Decodable
	}
	return Ignored
}
