// The console subscribes to the device uplink topic and pretty-prints what
// the collector would do with each message. Meant for bench debugging, not
// production.
package main

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/fatih/color"

	"github.com/acmgroup/gps-ingestion/internal/config"
	"github.com/acmgroup/gps-ingestion/internal/mqtt"
	"github.com/acmgroup/gps-ingestion/internal/runtime"
	"github.com/acmgroup/gps-ingestion/internal/telemetry"
)

var (
	okColor      = color.New(color.FgGreen, color.Bold)
	ignoredColor = color.New(color.FgYellow)
	badColor     = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
)

func main() {
	cfg := config.LoadConsole()

	cfg.Logger.Printf("[boot] console | mqtt=%s topic=%s", cfg.MQTTBrokerURL, cfg.MQTTTopic)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runtime.SetupGracefulShutdown(cancel, cfg.Logger)

	client := mqtt.BuildClient(mqtt.Options{
		BrokerURL: cfg.MQTTBrokerURL,
		ClientID:  cfg.MQTTClientID,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
		Topic:     cfg.MQTTTopic,
		QoS:       cfg.MQTTQoS,
		Logger:    cfg.Logger,
	}, func(_ paho.Client, msg paho.Message) {
		printMessage(msg.Topic(), msg.Payload())
	})
	mqtt.ConnectWithBackoff(ctx, cfg.Logger, client, 2*time.Second, 30*time.Second)

	<-ctx.Done()
	client.Disconnect(250)
}

func printMessage(topic string, payload []byte) {
	switch telemetry.Classify(payload) {
	case telemetry.Ignored:
		ignoredColor.Printf("IGNORED   %s  %s\n", topic, config.Truncate(payload, 96))
		return
	case telemetry.Malformed:
		badColor.Printf("MALFORMED %s  %s\n", topic, config.Truncate(payload, 96))
		return
	}

	rec, err := telemetry.Decode(payload)
	if err != nil {
		badColor.Printf("REJECTED  %s  %v\n", topic, err)
		return
	}

	okColor.Printf("GPS       %s  device=%s\n", topic, rec.Device.Identity())
	fmt.Printf("  fix: lat=%.6f lon=%.6f alt=%.1f speed=%.1f heading=%.1f sats=%d activity=%s\n",
		rec.Gps.Latitude, rec.Gps.Longitude, rec.Gps.Altitude,
		rec.Gps.Speed, rec.Gps.Heading, rec.Gps.Satellites, rec.Gps.Activity)
	if rec.Gps.Timestamp != nil {
		fmt.Printf("  time: %s\n", rec.Gps.Timestamp.Format(time.RFC3339))
	} else {
		dimColor.Println("  time: (no time sync)")
	}

	for _, ev := range rec.Events {
		fmt.Printf("  event: %s", ev.Code)
		for _, p := range ev.Pairs {
			fmt.Printf(" %s=%s", p.Key, p.Value.Display())
		}
		fmt.Println()
	}
	for _, s := range rec.Sensors {
		fmt.Printf("  sensor: %s=%s\n", s.Name, s.Value.Display())
	}
	if len(rec.ObdPids) > 0 {
		fmt.Printf("  obd: %d pids\n", len(rec.ObdPids))
	}
	if len(rec.CanBus) > 0 {
		fmt.Printf("  can: %d frames\n", len(rec.CanBus))
	}
}
