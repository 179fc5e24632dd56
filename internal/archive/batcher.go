package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/acmgroup/gps-ingestion/internal/storage"
)

// Batcher accumulates archive rows and flushes them as one parquet object
// when the batch is large enough or old enough. Not safe for concurrent
// use: the batch loader owns one batcher on a single goroutine.
type Batcher struct {
	MaxRecords  int
	MaxBytes    int64
	MaxInterval time.Duration

	resetTime time.Time
	buf       []ArchiveRecord
	bytes     int64

	S3Client *storage.Client
	S3Base   string
	Compress string
}

func NewBatcher(maxRecords int, maxBytes int64, maxInterval time.Duration, s3c *storage.Client, basePath, compression string) *Batcher {
	b := &Batcher{
		MaxRecords:  maxRecords,
		MaxBytes:    maxBytes,
		MaxInterval: maxInterval,
		S3Client:    s3c,
		S3Base:      basePath,
		Compress:    compression,
		resetTime:   time.Now().UTC(),
	}
	if maxRecords > 0 {
		b.buf = make([]ArchiveRecord, 0, maxRecords)
	}
	return b
}

// Add appends a row and reports whether the batch is due for a flush.
func (b *Batcher) Add(r ArchiveRecord) (shouldFlush bool) {
	if len(b.buf) == 0 {
		b.resetTime = time.Now().UTC()
		b.bytes = 0
	}

	b.buf = append(b.buf, r)
	b.bytes += int64(len(r.Envelope)) + 256

	byRecords := b.MaxRecords > 0 && len(b.buf) >= b.MaxRecords
	byBytes := b.MaxBytes > 0 && b.bytes >= b.MaxBytes

	return byRecords || byBytes
}

func (b *Batcher) ShouldFlushByInterval() bool {
	return b.MaxInterval > 0 && len(b.buf) > 0 && time.Since(b.resetTime) >= b.MaxInterval
}

func (b *Batcher) Len() int { return len(b.buf) }

// Flush writes the buffered rows to a local parquet file, uploads it under
// the day-partitioned path and resets the buffer. On error the buffer is
// kept so the rows can be retried.
func (b *Batcher) Flush(ctx context.Context) (int, error) {
	n := len(b.buf)
	if n == 0 {
		return 0, nil
	}

	ts := time.Now().UTC()
	fn := fmt.Sprintf("part-%s-%s.parquet", ts.Format("2006-01-02T15-04-05Z"), uuid.NewString())
	tmp := filepath.Join(os.TempDir(), fn)

	pw, closeFn, err := NewLocalParquetWriter[ArchiveRecord](tmp, 4, b.Compress)
	if err != nil {
		return 0, err
	}

	for i := range b.buf {
		if err := pw.Write(b.buf[i]); err != nil {
			_ = closeFn()
			return 0, err
		}
	}

	if err := closeFn(); err != nil {
		return 0, err
	}

	f, err := os.Open(tmp)
	if err != nil {
		return 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return 0, err
	}

	objPath := storage.BuildObjectPath(b.S3Base, ts, fn)
	if err := b.S3Client.Upload(ctx, objPath, f, fi.Size(), "application/octet-stream"); err != nil {
		_ = f.Close()
		return 0, err
	}
	_ = f.Close()
	_ = os.Remove(tmp)

	b.buf = b.buf[:0]
	b.bytes = 0
	b.resetTime = time.Now().UTC()

	return n, nil
}
