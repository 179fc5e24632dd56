package main

import (
	"context"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/acmgroup/gps-ingestion/internal/broker"
	"github.com/acmgroup/gps-ingestion/internal/config"
	"github.com/acmgroup/gps-ingestion/internal/handler"
	"github.com/acmgroup/gps-ingestion/internal/metrics"
	"github.com/acmgroup/gps-ingestion/internal/mqtt"
	"github.com/acmgroup/gps-ingestion/internal/registry"
	"github.com/acmgroup/gps-ingestion/internal/runtime"
)

func main() {
	cfg, err := config.LoadCollector()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	cfg.Logger.Printf("[boot] collector | mqtt=%s topic=%s kafka=%v out=%s dlq=%s",
		cfg.MQTTBrokerURL, cfg.MQTTTopic, cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaDLQTopic)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runtime.SetupGracefulShutdown(cancel, cfg.Logger)

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			cfg.Logger.Printf("metrics server error: %v", err)
		}
	}()

	if err := broker.EnsureKafkaTopics(ctx, cfg); err != nil {
		cfg.Logger.Fatalf("kafka ensure topics error: %v", err)
	}

	kc := broker.NewKafkaClient(cfg)
	defer kc.Close()

	dispatcher := broker.NewKafkaDispatcher(kc, cfg.DispatcherCapacity, cfg.DispatcherMaxBatch,
		time.Duration(cfg.DispatcherTickMs)*time.Millisecond)
	defer dispatcher.Stop()

	var vehicles registry.VehicleRegistry
	if cfg.RedisAddr != "" {
		vehicles = registry.NewRedisRegistry(registry.Opts{
			Addr:              cfg.RedisAddr,
			Password:          cfg.RedisPassword,
			DB:                cfg.RedisDB,
			Namespace:         cfg.RedisNamespace,
			UsePubSub:         cfg.RedisUsePubSub,
			InvalidateChannel: cfg.RedisInvalidateChan,
			Timeout:           2 * time.Second,
		})
		cfg.Logger.Printf("[info] vehicle registry enabled: %s", cfg.RedisAddr)
	} else {
		cfg.Logger.Printf("[info] vehicle registry disabled (REDIS_ADDR empty)")
	}

	h := handler.New(cfg.Logger, dispatcher, kc, vehicles)

	client := mqtt.BuildClient(mqtt.Options{
		BrokerURL: cfg.MQTTBrokerURL,
		ClientID:  cfg.MQTTClientID,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
		Topic:     cfg.MQTTTopic,
		QoS:       cfg.MQTTQoS,
		Logger:    cfg.Logger,
	}, func(_ paho.Client, msg paho.Message) {
		h.Handle(context.Background(), msg)
	})
	mqtt.ConnectWithBackoff(ctx, cfg.Logger, client, 2*time.Second, 30*time.Second)

	<-ctx.Done()
	client.Disconnect(250)
	cfg.Logger.Println("collector stopped")
}
