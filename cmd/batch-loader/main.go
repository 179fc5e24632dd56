package main

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/acmgroup/gps-ingestion/internal/archive"
	"github.com/acmgroup/gps-ingestion/internal/broker"
	"github.com/acmgroup/gps-ingestion/internal/config"
	"github.com/acmgroup/gps-ingestion/internal/model"
	"github.com/acmgroup/gps-ingestion/internal/runtime"
	"github.com/acmgroup/gps-ingestion/internal/storage"
)

func main() {
	cfg, err := config.LoadBatchLoader()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	cfg.Logger.Printf("[boot] batch-loader | kafka=%v topic=%s group=%s minio=%s bucket=%s path=%s",
		cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.MinioEndpoint, cfg.MinioBucket, cfg.MinioBasePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runtime.SetupGracefulShutdown(cancel, cfg.Logger)

	s3c, err := storage.NewMinIO(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseTLS, cfg.MinioBucket)
	if err != nil {
		cfg.Logger.Fatalf("minio client error: %v", err)
	}
	if err := s3c.EnsureBucket(ctx); err != nil {
		cfg.Logger.Fatalf("minio ensure bucket error: %v", err)
	}

	reader := broker.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic)
	defer reader.Close()

	batcher := archive.NewBatcher(cfg.BatchMaxRecords, cfg.BatchMaxBytes, cfg.BatchMaxInterval,
		s3c, cfg.MinioBasePath, cfg.ParquetCodec)

	// offsets are committed only after the rows land in object storage, so a
	// crash re-reads at most one batch
	uncommitted := make([]kafka.Message, 0, cfg.BatchMaxRecords)

	flush := func() {
		n, err := batcher.Flush(context.Background())
		if err != nil {
			cfg.Logger.Printf("batch flush error (batch kept for retry): %v", err)
			return
		}
		if n == 0 {
			return
		}
		if err := reader.Commit(context.Background(), uncommitted...); err != nil {
			cfg.Logger.Printf("kafka commit error: %v", err)
		}
		uncommitted = uncommitted[:0]
		cfg.Logger.Printf("flushed %d records to %s", n, cfg.MinioBucket)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	fetchCtx, fetchCancel := context.WithCancel(ctx)
	defer fetchCancel()

	msgCh := make(chan kafka.Message)
	go func() {
		defer close(msgCh)
		for {
			m, err := reader.Fetch(fetchCtx)
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

	for {
		select {
		case m, ok := <-msgCh:
			if !ok {
				flush()
				cfg.Logger.Println("batch-loader stopped")
				return
			}
			env, err := model.DecodeOutbound(m.Value)
			if err != nil {
				cfg.Logger.Printf("skip invalid envelope at offset %d: %v", m.Offset, err)
				uncommitted = append(uncommitted, m)
				continue
			}
			uncommitted = append(uncommitted, m)
			if batcher.Add(archive.ToArchiveRecord(env, m.Value)) {
				flush()
			}
		case <-ticker.C:
			if batcher.ShouldFlushByInterval() {
				flush()
			}
		case <-ctx.Done():
			fetchCancel()
			flush()
			cfg.Logger.Println("batch-loader stopped")
			return
		}
	}
}
