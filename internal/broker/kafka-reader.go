package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaReader struct {
	Reader *kafka.Reader
}

func NewKafkaReader(brokers []string, groupID, topic string) *KafkaReader {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         groupID,
		Topic:           topic,
		StartOffset:     kafka.LastOffset,
		CommitInterval:  time.Second,
		MinBytes:        1,
		MaxBytes:        10e6,
		ReadLagInterval: -1,
	})
	return &KafkaReader{Reader: r}
}

func (kr *KafkaReader) Fetch(ctx context.Context) (kafka.Message, error) {
	return kr.Reader.FetchMessage(ctx)
}

func (kr *KafkaReader) Commit(ctx context.Context, msgs ...kafka.Message) error {
	return kr.Reader.CommitMessages(ctx, msgs...)
}

func (kr *KafkaReader) Close() error {
	return kr.Reader.Close()
}
