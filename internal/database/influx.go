// Package database maps decoded GPS envelopes onto InfluxDB measurements:
// one gps_fix point per record, one sensors point when readings are present
// and one events point per event.
package database

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/acmgroup/gps-ingestion/internal/config"
	"github.com/acmgroup/gps-ingestion/internal/model"
	"github.com/acmgroup/gps-ingestion/internal/telemetry"
)

type InfluxDB struct {
	Client   influxdb2.Client
	WriteAPI api.WriteAPIBlocking
}

func NewInfluxDB(cfg *config.RTLoader) *InfluxDB {
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	writeAPI := client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket)
	return &InfluxDB{Client: client, WriteAPI: writeAPI}
}

func (db *InfluxDB) Close() {
	if db != nil && db.Client != nil {
		db.Client.Close()
	}
}

func (db *InfluxDB) WriteEnvelope(ctx context.Context, env *model.OutboundEnvelope) error {
	for _, p := range BuildPoints(env) {
		if err := db.WriteAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// BuildPoints converts one envelope into its measurement points. A fix
// without time sync is stamped with the collection time instead, so the
// series never gets an epoch-zero point.
func BuildPoints(env *model.OutboundEnvelope) []*write.Point {
	rec := env.Record
	tags := buildTags(env)
	ts := eventTime(env)

	points := []*write.Point{buildFixPoint(rec.Gps, tags, ts)}

	if p := buildSensorsPoint(rec.Sensors, tags, ts); p != nil {
		points = append(points, p)
	}
	for _, ev := range rec.Events {
		points = append(points, buildEventPoint(ev, tags, ts))
	}
	return points
}

func eventTime(env *model.OutboundEnvelope) time.Time {
	if env.Record.Gps.Timestamp != nil {
		return *env.Record.Gps.Timestamp
	}
	return env.Metadata.CollectedAt
}

func buildTags(env *model.OutboundEnvelope) map[string]string {
	tags := map[string]string{
		"device": env.Record.Device.Identity(),
	}
	if env.Vehicle != nil {
		tags["fleetId"] = env.Vehicle.FleetID
		tags["vehicle"] = env.Vehicle.Label
	}
	return tags
}

func buildFixPoint(fix telemetry.Fix, tags map[string]string, ts time.Time) *write.Point {
	fields := map[string]interface{}{
		"latitude":   fix.Latitude,
		"longitude":  fix.Longitude,
		"altitude":   fix.Altitude,
		"speed":      fix.Speed,
		"heading":    fix.Heading,
		"satellites": int64(fix.Satellites),
		"activity":   string(fix.Activity),
		"time_sync":  fix.Timestamp != nil,
	}
	// absent optionals stay absent: no zero-filled columns
	if fix.Odometer != nil {
		fields["odometer"] = *fix.Odometer
	}
	if fix.TripOdo != nil {
		fields["trip_odo"] = *fix.TripOdo
	}
	if fix.Pdop != nil {
		fields["pdop"] = *fix.Pdop
	}
	if fix.Hdop != nil {
		fields["hdop"] = *fix.Hdop
	}
	if fix.Vdop != nil {
		fields["vdop"] = *fix.Vdop
	}
	if fix.Tdop != nil {
		fields["tdop"] = *fix.Tdop
	}
	return write.NewPoint("gps_fix", tags, fields, ts)
}

func buildSensorsPoint(sensors []telemetry.Sensor, tags map[string]string, ts time.Time) *write.Point {
	fields := make(map[string]interface{}, len(sensors))
	for _, s := range sensors {
		if fv, ok := fieldValue(s.Value); ok {
			fields[s.Name] = fv
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return write.NewPoint("sensors", tags, fields, ts)
}

func buildEventPoint(ev telemetry.Event, tags map[string]string, ts time.Time) *write.Point {
	evTags := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		evTags[k] = v
	}
	evTags["code"] = ev.Code

	fields := make(map[string]interface{}, len(ev.Pairs)+1)
	fields["count"] = int64(1)
	for _, p := range ev.Pairs {
		if fv, ok := fieldValue(p.Value); ok {
			fields[p.Key] = fv
		}
	}
	return write.NewPoint("events", evTags, fields, ts)
}

// fieldValue maps a telemetry value onto an influx field value. Nulls are
// skipped: an absent reading must not become a zero.
func fieldValue(v telemetry.Value) (interface{}, bool) {
	switch v.Kind {
	case telemetry.ValueString:
		return v.Str, true
	case telemetry.ValueNumber:
		return v.Num, true
	case telemetry.ValueBool:
		return v.Bool, true
	}
	return nil, false
}
