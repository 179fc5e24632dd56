package telemetry

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
	"message_ver": 1,
	"message_type": "gps",
	"valid": true,
	"device": {
		"ident_type": "imei",
		"imei": "354523022xxxxxx",
		"serial_no": "B4234",
		"firmware": "2.1.14",
		"type": "tracker",
		"model": "ct-3100"
	},
	"network": {
		"ip": "196.44.102.13",
		"ipv6": null,
		"remote_port": 40332,
		"mac": null
	},
	"gsm": [{
		"cid": [31422],
		"lcid": [],
		"lac": [501],
		"carrier": "vodacom",
		"rssi": [-67],
		"mcc": ["655"],
		"mnc": ["01"],
		"signal_str": 23,
		"data_mode": "lte",
		"status": ["registered"]
	}],
	"sims": [{"msisdn": "+2782xxxxxxx", "iccid": "8927xxxxxxxxxxxxxxx", "imsi": null}],
	"gps": {
		"timestamp": 1724580000,
		"latitude": -33.918861,
		"longitude": 18.4233,
		"altitude": 42.5,
		"speed": 63.2,
		"heading": 181.5,
		"satellites": 9,
		"activity": "driving",
		"odometer": 120934,
		"trip_odo": 1532,
		"pdop": 1.2,
		"hdop": 0.8,
		"vdop": 0.9,
		"tdop": 1.1,
		"flags": ["fix_3d", "time_synced"]
	},
	"events": [
		["TOWING"],
		["HARSH_DRIVING:BRAKING", ["x", -0.4531], ["y", 0.00312]]
	],
	"sensors": [
		["charging", true],
		["fuel_level", 23.7],
		["driver_tag", "AA34553"],
		["aux_input", null]
	],
	"obd_pids": [[12, 1850], [13, 64]],
	"can_bus": [[419360256, 2048]]
}`

func TestDecodeFullMessage(t *testing.T) {
	rec, err := Decode([]byte(samplePayload))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, IdentIMEI, rec.Device.IdentType)
	require.NotNil(t, rec.Device.IMEI)
	assert.Equal(t, "354523022xxxxxx", *rec.Device.IMEI)
	assert.Equal(t, "354523022xxxxxx", rec.Device.Identity())

	require.NotNil(t, rec.Network.IP)
	assert.Equal(t, "196.44.102.13", *rec.Network.IP)
	assert.Nil(t, rec.Network.IPv6)
	require.NotNil(t, rec.Network.RemotePort)
	assert.Equal(t, 40332, *rec.Network.RemotePort)
	assert.Nil(t, rec.Network.MAC)

	require.Len(t, rec.Gsm, 1)
	gsm := rec.Gsm[0]
	assert.Equal(t, []int64{31422}, gsm.Cid)
	assert.Equal(t, []int64{}, gsm.Lcid, "present-but-empty list stays empty")
	assert.Equal(t, []int64{}, gsm.Rcpi, "absent list defaults to empty")
	assert.Equal(t, []string{"655"}, gsm.Mcc)
	assert.Equal(t, DataModeLTE, gsm.DataMode)

	require.Len(t, rec.Sims, 1)
	require.NotNil(t, rec.Sims[0].Msisdn)
	assert.Nil(t, rec.Sims[0].Imsi)

	require.NotNil(t, rec.Gps.Timestamp)
	assert.Equal(t, time.Unix(1724580000, 0).UTC(), *rec.Gps.Timestamp)
	assert.Equal(t, -33.918861, rec.Gps.Latitude)
	assert.Equal(t, 9, rec.Gps.Satellites)
	assert.Equal(t, ActivityDriving, rec.Gps.Activity)
	require.NotNil(t, rec.Gps.TripOdo)
	assert.Equal(t, int64(1532), *rec.Gps.TripOdo)
	require.NotNil(t, rec.Gps.Hdop)
	assert.Equal(t, 0.8, *rec.Gps.Hdop)
	assert.True(t, rec.Gps.HasFlag("fix_3d"))
	assert.False(t, rec.Gps.HasFlag("fix_2d"))

	assert.Equal(t, []ObdPid{{Pid: 12, Value: 1850}, {Pid: 13, Value: 64}}, rec.ObdPids)
	assert.Equal(t, []CanEntry{{ID: 419360256, Value: 2048}}, rec.CanBus)
}

func TestDecodeEvents(t *testing.T) {
	rec, err := Decode([]byte(samplePayload))
	require.NoError(t, err)

	require.Len(t, rec.Events, 2)

	// bare one-element entry: code only, zero pairs
	assert.Equal(t, "TOWING", rec.Events[0].Code)
	assert.Empty(t, rec.Events[0].Pairs)

	// entry with auxiliary pairs, order preserved
	ev := rec.Events[1]
	assert.Equal(t, "HARSH_DRIVING:BRAKING", ev.Code)
	require.Len(t, ev.Pairs, 2)
	assert.Equal(t, Pair{Key: "x", Value: NumberValue(-0.4531)}, ev.Pairs[0])
	assert.Equal(t, Pair{Key: "y", Value: NumberValue(0.00312)}, ev.Pairs[1])
}

func TestDecodeSensorsMixedKinds(t *testing.T) {
	rec, err := Decode([]byte(samplePayload))
	require.NoError(t, err)

	require.Len(t, rec.Sensors, 4)
	assert.Equal(t, Sensor{Name: "charging", Value: BoolValue(true)}, rec.Sensors[0])
	assert.Equal(t, Sensor{Name: "fuel_level", Value: NumberValue(23.7)}, rec.Sensors[1])
	assert.Equal(t, Sensor{Name: "driver_tag", Value: StringValue("AA34553")}, rec.Sensors[2])
	assert.Equal(t, Sensor{Name: "aux_input", Value: NullValue()}, rec.Sensors[3])
}

func TestDecodeNullTimestampMeansNoTimeSync(t *testing.T) {
	payload := withReplacedField(t, samplePayload, "gps", func(gps map[string]any) {
		gps["timestamp"] = nil
	})
	rec, err := Decode(payload)
	require.NoError(t, err)
	assert.Nil(t, rec.Gps.Timestamp, "null timestamp must decode to the absent state")

	// absent key behaves the same as an explicit null
	payload = withReplacedField(t, samplePayload, "gps", func(gps map[string]any) {
		delete(gps, "timestamp")
	})
	rec, err = Decode(payload)
	require.NoError(t, err)
	assert.Nil(t, rec.Gps.Timestamp)
}

func TestDecodeMissingRequiredFields(t *testing.T) {
	for _, field := range []string{"device", "gsm", "sims", "gps"} {
		t.Run(field, func(t *testing.T) {
			var doc map[string]json.RawMessage
			require.NoError(t, json.Unmarshal([]byte(samplePayload), &doc))
			delete(doc, field)
			payload, err := json.Marshal(doc)
			require.NoError(t, err)

			rec, err := Decode(payload)
			assert.Nil(t, rec, "no partial record on failure")
			var derr *DecodeError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, field, derr.Field)
		})
	}
}

func TestDecodeShapeViolations(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(doc map[string]json.RawMessage)
		wantField string
	}{
		{
			"device wrong shape",
			func(doc map[string]json.RawMessage) { doc["device"] = json.RawMessage(`[1,2]`) },
			"device",
		},
		{
			"gsm not an array",
			func(doc map[string]json.RawMessage) { doc["gsm"] = json.RawMessage(`{"cid":[1]}`) },
			"gsm",
		},
		{
			"event entry not an array",
			func(doc map[string]json.RawMessage) { doc["events"] = json.RawMessage(`["TOWING"]`) },
			"events[0]",
		},
		{
			"event pair with three elements",
			func(doc map[string]json.RawMessage) {
				doc["events"] = json.RawMessage(`[["CODE", ["x", 1, 2]]]`)
			},
			"events[0][1]",
		},
		{
			"event pair value is an object",
			func(doc map[string]json.RawMessage) {
				doc["events"] = json.RawMessage(`[["CODE", ["x", {"nested": true}]]]`)
			},
			"events[0][1]",
		},
		{
			"sensor entry not a pair",
			func(doc map[string]json.RawMessage) { doc["sensors"] = json.RawMessage(`[["only_name"]]`) },
			"sensors[0]",
		},
		{
			"obd pid fractional value",
			func(doc map[string]json.RawMessage) { doc["obd_pids"] = json.RawMessage(`[[12, 18.5]]`) },
			"obd_pids[0]",
		},
		{
			"can entry too long",
			func(doc map[string]json.RawMessage) { doc["can_bus"] = json.RawMessage(`[[1, 2, 3]]`) },
			"can_bus[0]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]json.RawMessage
			require.NoError(t, json.Unmarshal([]byte(samplePayload), &doc))
			tt.mutate(doc)
			payload, err := json.Marshal(doc)
			require.NoError(t, err)

			rec, err := Decode(payload)
			assert.Nil(t, rec)
			var derr *DecodeError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.wantField, derr.Field)
		})
	}
}

// Decoding then re-encoding reproduces the original field values: list order
// preserved, value kinds intact, absent fields still absent.
func TestRecordRoundTrip(t *testing.T) {
	rec, err := Decode([]byte(samplePayload))
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &doc))

	events, err := json.Marshal(rec.Events)
	require.NoError(t, err)
	assert.JSONEq(t, string(doc["events"]), string(events))

	sensors, err := json.Marshal(rec.Sensors)
	require.NoError(t, err)
	assert.JSONEq(t, string(doc["sensors"]), string(sensors))

	obd, err := json.Marshal(rec.ObdPids)
	require.NoError(t, err)
	assert.JSONEq(t, string(doc["obd_pids"]), string(obd))

	device, err := json.Marshal(rec.Device)
	require.NoError(t, err)
	assert.JSONEq(t, string(doc["device"]), string(device))

	// full cycle: a forwarded record re-decodes to an identical value
	encoded, err := json.Marshal(rec)
	require.NoError(t, err)
	var again Record
	require.NoError(t, json.Unmarshal(encoded, &again))
	assert.Equal(t, *rec, again)
}

func TestRoundTripNullTimestamp(t *testing.T) {
	payload := withReplacedField(t, samplePayload, "gps", func(gps map[string]any) {
		gps["timestamp"] = nil
	})
	rec, err := Decode(payload)
	require.NoError(t, err)

	encoded, err := json.Marshal(rec)
	require.NoError(t, err)
	var again Record
	require.NoError(t, json.Unmarshal(encoded, &again))
	assert.Nil(t, again.Gps.Timestamp, "absent timestamp survives the round trip")
}

// The pipeline invokes the decoder from concurrent delivery callbacks;
// results must not depend on interleaving.
func TestDecodeConcurrent(t *testing.T) {
	payloads := make([][]byte, 16)
	for i := range payloads {
		payloads[i] = withReplacedField(t, samplePayload, "gps", func(gps map[string]any) {
			gps["satellites"] = float64(i)
		})
	}

	var wg sync.WaitGroup
	for round := 0; round < 8; round++ {
		for i, p := range payloads {
			wg.Add(1)
			go func(i int, p []byte) {
				defer wg.Done()
				assert.Equal(t, Decodable, Classify(p))
				rec, err := Decode(p)
				if assert.NoError(t, err) {
					assert.Equal(t, i, rec.Gps.Satellites)
				}
			}(i, p)
		}
	}
	wg.Wait()
}

func TestDecodeErrorMessage(t *testing.T) {
	err := malformed("events[2]", fmt.Errorf("expected 2 elements, got 3"))
	assert.Contains(t, err.Error(), "events[2]")
	assert.Contains(t, err.Error(), "expected 2 elements")
}

// withReplacedField rewrites one top-level object field of a payload.
func withReplacedField(t *testing.T, payload, field string, mutate func(map[string]any)) []byte {
	t.Helper()
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(payload), &doc))
	var obj map[string]any
	require.NoError(t, json.Unmarshal(doc[field], &obj))
	mutate(obj)
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	doc[field] = raw
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}
