package main

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/acmgroup/gps-ingestion/internal/broker"
	"github.com/acmgroup/gps-ingestion/internal/config"
	"github.com/acmgroup/gps-ingestion/internal/database"
	"github.com/acmgroup/gps-ingestion/internal/model"
	"github.com/acmgroup/gps-ingestion/internal/runtime"
)

func main() {
	cfg, err := config.LoadRTLoader()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	cfg.Logger.Printf("[boot] rt-loader | kafka=%v topic=%s group=%s influx=%s bucket=%s workers=%d",
		cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.InfluxURL, cfg.InfluxBucket, cfg.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runtime.SetupGracefulShutdown(cancel, cfg.Logger)

	db := database.NewInfluxDB(cfg)
	defer db.Close()

	reader := broker.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic)
	defer reader.Close()

	msgCh := make(chan kafka.Message, cfg.Workers*4)
	ackCh := make(chan kafka.Message, cfg.Workers*4)

	// fetcher: single goroutine pulling from the consumer group
	go func() {
		defer close(msgCh)
		for {
			m, err := reader.Fetch(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return
				}
				cfg.Logger.Printf("kafka fetch error: %v", err)
				continue
			}
			msgCh <- m
		}
	}()

	// workers: decode envelopes and write points
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range msgCh {
				env, err := model.DecodeOutbound(m.Value)
				if err != nil {
					// bad envelopes are acked and skipped: the DLQ lives upstream
					cfg.Logger.Printf("skip invalid envelope at offset %d: %v", m.Offset, err)
					ackCh <- m
					continue
				}
				if err := db.WriteEnvelope(ctx, env); err != nil {
					cfg.Logger.Printf("influx write error (offset %d, device %s): %v",
						m.Offset, env.Record.Device.Identity(), err)
					// not acked: the message is redelivered after rebalance
					continue
				}
				ackCh <- m
			}
		}()
	}

	go func() {
		wg.Wait()
		close(ackCh)
	}()

	// committer: batch acks so the group offset moves in chunks
	pending := make([]kafka.Message, 0, cfg.AckBatchSize)
	commit := func() {
		if len(pending) == 0 {
			return
		}
		if err := reader.Commit(context.Background(), pending...); err != nil {
			cfg.Logger.Printf("kafka commit error: %v", err)
		}
		pending = pending[:0]
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case m, ok := <-ackCh:
			if !ok {
				commit()
				cfg.Logger.Println("rt-loader stopped")
				return
			}
			pending = append(pending, m)
			if len(pending) >= cfg.AckBatchSize {
				commit()
			}
		case <-ticker.C:
			commit()
		}
	}
}
