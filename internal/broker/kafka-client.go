// Package broker wraps the kafka-go producers and consumer used by the
// pipeline: an async batching writer pair (decoded records + DLQ), a
// consumer-group reader for the loaders, and topic bootstrap.
package broker

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/acmgroup/gps-ingestion/internal/config"
)

type KafkaClient struct {
	MainProducer *kafka.Writer
	DLQProducer  *kafka.Writer
}

func NewKafkaClient(cfg *config.Collector) *KafkaClient {
	return &KafkaClient{
		MainProducer: newKafkaWriter(cfg, cfg.KafkaTopic),
		DLQProducer:  newKafkaWriter(cfg, cfg.KafkaDLQTopic),
	}
}

func newKafkaWriter(cfg *config.Collector, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},

		BatchSize:    cfg.KafkaBatchSize,
		BatchBytes:   cfg.KafkaBatchBytes,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeoutMs) * time.Millisecond,

		RequiredAcks: parseAcks(cfg.KafkaRequiredAcks),
		MaxAttempts:  cfg.KafkaMaxAttempts,
		Async:        true,
		Compression:  parseCompression(cfg.KafkaCompression),
	}
}

func (c *KafkaClient) Close() {
	_ = c.MainProducer.Close()
	_ = c.DLQProducer.Close()
}

func (c *KafkaClient) Send(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	return c.MainProducer.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Headers: headers,
	})
}

func (c *KafkaClient) SendDLQ(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	return c.DLQProducer.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Headers: headers,
	})
}

func parseCompression(s string) kafka.Compression {
	switch strings.ToLower(s) {
	case "", "none", "no", "off", "0":
		return kafka.Compression(0)
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Snappy
	}
}

func parseAcks(s string) kafka.RequiredAcks {
	switch strings.ToLower(s) {
	case "none":
		return kafka.RequireNone
	case "all":
		return kafka.RequireAll
	default:
		return kafka.RequireOne
	}
}
