package telemetry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Decision
	}{
		{"valid gps v1", `{"message_ver":1,"message_type":"gps","valid":true}`, Decodable},
		{"extra fields ignored", `{"message_ver":1,"message_type":"gps","valid":true,"device":{},"foo":42}`, Decodable},
		{"wrong version", `{"message_ver":2,"message_type":"gps","valid":true}`, Ignored},
		{"heartbeat", `{"message_ver":1,"message_type":"heartbeat","valid":true}`, Ignored},
		{"register", `{"message_ver":1,"message_type":"register","valid":true}`, Ignored},
		{"history", `{"message_ver":1,"message_type":"history","valid":true}`, Ignored},
		{"status", `{"message_ver":1,"message_type":"status","valid":true}`, Ignored},
		{"event", `{"message_ver":1,"message_type":"event","valid":true}`, Ignored},
		{"gateway rejected", `{"message_ver":1,"message_type":"gps","valid":false}`, Ignored},
		{"missing version", `{"message_type":"gps","valid":true}`, Ignored},
		{"missing type", `{"message_ver":1,"valid":true}`, Ignored},
		{"missing valid", `{"message_ver":1,"message_type":"gps"}`, Ignored},
		{"null valid", `{"message_ver":1,"message_type":"gps","valid":null}`, Ignored},
		{"string version", `{"message_ver":"1","message_type":"gps","valid":true}`, Ignored},
		{"empty object", `{}`, Ignored},
		{"truncated json", `{"message_ver":1,"message_type":"g`, Malformed},
		{"not json", `<xml/>`, Malformed},
		{"empty payload", ``, Malformed},
		{"binary garbage", "\x00\x01\x02", Malformed},
		{"top-level array", `[1,2,3]`, Malformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify([]byte(tt.payload)))
		})
	}
}

// Any payload that is not a validated GPS v1 message must never classify as
// Decodable, whatever the combination.
func TestClassifyNeverDecodableForNonGps(t *testing.T) {
	for _, typ := range []string{"register", "heartbeat", "history", "status", "event"} {
		for _, ver := range []int{0, 1, 2} {
			for _, valid := range []bool{true, false} {
				payload := fmt.Sprintf(`{"message_ver":%d,"message_type":%q,"valid":%t}`, ver, typ, valid)
				assert.NotEqual(t, Decodable, Classify([]byte(payload)), "payload: %s", payload)
			}
		}
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "decodable", Decodable.String())
	assert.Equal(t, "ignored", Ignored.String())
	assert.Equal(t, "malformed", Malformed.String())
}
