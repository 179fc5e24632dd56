package archive

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmgroup/gps-ingestion/internal/model"
	"github.com/acmgroup/gps-ingestion/internal/telemetry"
)

func sampleEnvelope(withTimeSync bool) *model.OutboundEnvelope {
	imei := "354523022000001"
	env := &model.OutboundEnvelope{
		Record: &telemetry.Record{
			Device: telemetry.Device{IdentType: telemetry.IdentIMEI, IMEI: &imei},
			Gps: telemetry.Fix{
				Latitude:   -33.9,
				Longitude:  18.4,
				Satellites: 7,
				Activity:   telemetry.ActivityDriving,
			},
			Events:  []telemetry.Event{{Code: "TOWING"}},
			Sensors: []telemetry.Sensor{{Name: "charging", Value: telemetry.BoolValue(true)}},
		},
		Vehicle: &model.VehicleContext{FleetID: "fleet-7", Label: "truck-42"},
		Metadata: model.Metadata{
			EventID:     "evt-1",
			CollectedAt: time.Unix(1724580100, 0).UTC(),
		},
	}
	if withTimeSync {
		ts := time.Unix(1724580000, 0).UTC()
		env.Record.Gps.Timestamp = &ts
	}
	return env
}

func TestToArchiveRecord(t *testing.T) {
	env := sampleEnvelope(true)
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	row := ToArchiveRecord(env, raw)

	assert.Equal(t, "evt-1", row.EventID)
	assert.Equal(t, "354523022000001", row.DeviceID)
	assert.Equal(t, "fleet-7", row.FleetID)
	assert.Equal(t, int64(1724580100000), row.CollectedAt)
	require.NotNil(t, row.GpsTimestamp)
	assert.Equal(t, int64(1724580000000), *row.GpsTimestamp)
	assert.Equal(t, -33.9, row.Latitude)
	assert.Equal(t, int32(7), row.Satellites)
	assert.Equal(t, "driving", row.Activity)
	assert.Nil(t, row.Odometer)
	assert.Equal(t, int32(1), row.EventCount)
	assert.Equal(t, int32(1), row.SensorCount)
	assert.JSONEq(t, string(raw), row.Envelope)
}

func TestToArchiveRecordNoTimeSync(t *testing.T) {
	env := sampleEnvelope(false)
	row := ToArchiveRecord(env, []byte(`{}`))
	assert.Nil(t, row.GpsTimestamp, "no time sync means no gps_timestamp column value")
}

func TestDecodeOutboundRoundTrip(t *testing.T) {
	raw, err := json.Marshal(sampleEnvelope(true))
	require.NoError(t, err)

	env, err := model.DecodeOutbound(raw)
	require.NoError(t, err)
	assert.Equal(t, "354523022000001", env.Record.Device.Identity())
	assert.Equal(t, "TOWING", env.Record.Events[0].Code)

	_, err = model.DecodeOutbound([]byte(`{"metadata":{}}`))
	assert.Error(t, err, "envelope without a record is rejected")

	_, err = model.DecodeOutbound([]byte(`not json`))
	assert.Error(t, err)
}

func TestBatcherFlushThresholds(t *testing.T) {
	b := NewBatcher(3, 0, 0, nil, "bronze/gps", "SNAPPY")

	assert.False(t, b.Add(ArchiveRecord{Envelope: "{}"}))
	assert.False(t, b.Add(ArchiveRecord{Envelope: "{}"}))
	assert.True(t, b.Add(ArchiveRecord{Envelope: "{}"}), "record cap reached")
	assert.Equal(t, 3, b.Len())
}

func TestBatcherFlushByBytes(t *testing.T) {
	b := NewBatcher(0, 500, 0, nil, "bronze/gps", "SNAPPY")

	// each row accounts for payload size plus a fixed overhead of 256
	assert.False(t, b.Add(ArchiveRecord{Envelope: "{}"}))
	assert.True(t, b.Add(ArchiveRecord{Envelope: "{}"}))
}

func TestBatcherFlushByInterval(t *testing.T) {
	b := NewBatcher(100, 0, 10*time.Millisecond, nil, "bronze/gps", "SNAPPY")

	assert.False(t, b.ShouldFlushByInterval(), "empty batch never flushes")
	b.Add(ArchiveRecord{Envelope: "{}"})
	assert.False(t, b.ShouldFlushByInterval())
	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.ShouldFlushByInterval())
}
