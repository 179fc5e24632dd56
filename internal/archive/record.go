package archive

import (
	"github.com/acmgroup/gps-ingestion/internal/model"
)

// ArchiveRecord is the flattened "bronze" parquet row: key GPS columns for
// pruning plus the full envelope JSON for anything else. Optional columns
// stay optional — a fix without time sync has no gps_timestamp value.
type ArchiveRecord struct {
	EventID     string `parquet:"name=event_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	DeviceID    string `parquet:"name=device_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	FleetID     string `parquet:"name=fleet_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CollectedAt int64  `parquet:"name=collected_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`

	GpsTimestamp *int64  `parquet:"name=gps_timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=OPTIONAL"`
	Latitude     float64 `parquet:"name=latitude, type=DOUBLE"`
	Longitude    float64 `parquet:"name=longitude, type=DOUBLE"`
	Altitude     float64 `parquet:"name=altitude, type=DOUBLE"`
	Speed        float64 `parquet:"name=speed, type=DOUBLE"`
	Heading     float64 `parquet:"name=heading, type=DOUBLE"`
	Satellites  int32   `parquet:"name=satellites, type=INT32"`
	Activity    string  `parquet:"name=activity, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Odometer    *int64  `parquet:"name=odometer, type=INT64, repetitiontype=OPTIONAL"`

	EventCount  int32 `parquet:"name=event_count, type=INT32"`
	SensorCount int32 `parquet:"name=sensor_count, type=INT32"`

	Envelope string `parquet:"name=envelope, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ToArchiveRecord flattens an outbound envelope into one parquet row.
func ToArchiveRecord(env *model.OutboundEnvelope, raw []byte) ArchiveRecord {
	rec := env.Record
	row := ArchiveRecord{
		EventID:     env.Metadata.EventID,
		DeviceID:    rec.Device.Identity(),
		CollectedAt: env.Metadata.CollectedAt.UTC().UnixMilli(),

		Latitude:    rec.Gps.Latitude,
		Longitude:   rec.Gps.Longitude,
		Altitude:    rec.Gps.Altitude,
		Speed:       rec.Gps.Speed,
		Heading:     rec.Gps.Heading,
		Satellites:  int32(rec.Gps.Satellites),
		Activity:    string(rec.Gps.Activity),
		Odometer:    rec.Gps.Odometer,

		EventCount:  int32(len(rec.Events)),
		SensorCount: int32(len(rec.Sensors)),

		Envelope: string(raw),
	}
	if env.Vehicle != nil {
		row.FleetID = env.Vehicle.FleetID
	}
	if rec.Gps.Timestamp != nil {
		ms := rec.Gps.Timestamp.UTC().UnixMilli()
		row.GpsTimestamp = &ms
	}
	return row
}
