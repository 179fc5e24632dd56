package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaDispatcher batches decoded-record messages before handing them to the
// async writer, flushing on size or on a short tick. One background
// goroutine owns the buffer; Enqueue may be called from any number of
// delivery callbacks.
type KafkaDispatcher struct {
	client       *KafkaClient
	inputChannel chan kafka.Message
	stopChannel  chan struct{}
	maxBatch     int
	tick         time.Duration
}

func NewKafkaDispatcher(client *KafkaClient, capacity, maxBatch int, tick time.Duration) *KafkaDispatcher {
	d := &KafkaDispatcher{
		client:       client,
		inputChannel: make(chan kafka.Message, capacity),
		stopChannel:  make(chan struct{}),
		maxBatch:     maxBatch,
		tick:         tick,
	}
	go d.loop()
	return d
}

func (d *KafkaDispatcher) loop() {
	batch := make([]kafka.Message, 0, d.maxBatch)
	t := time.NewTicker(d.tick)
	defer t.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		_ = d.client.MainProducer.WriteMessages(context.Background(), batch...)
		batch = batch[:0]
	}

	for {
		select {
		case m := <-d.inputChannel:
			batch = append(batch, m)
			if len(batch) >= d.maxBatch {
				flush()
			}
		case <-t.C:
			flush()
		case <-d.stopChannel:
			flush()
			return
		}
	}
}

// Enqueue blocks briefly when the buffer is full rather than dropping:
// upstream MQTT QoS already bounds the inbound rate.
func (d *KafkaDispatcher) Enqueue(message kafka.Message) {
	select {
	case d.inputChannel <- message:
	default:
		d.inputChannel <- message
	}
}

func (d *KafkaDispatcher) Stop() { close(d.stopChannel) }
