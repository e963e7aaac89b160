package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/partnerhub-platform/api/internal/importer"
)

const (
	popTimeout   = 5 * time.Second
	errorBackoff = time.Second
)

// Worker consumes file and row jobs from redis with a pool of goroutines.
// A failed job is logged and dropped; the audit record carries the durable
// outcome, so there is no separate retry bookkeeping here.
type Worker struct {
	client      *redis.Client
	fetch       *importer.FetchImport
	rows        *importer.RowImport
	concurrency int
	logger      *slog.Logger
}

func NewWorker(client *redis.Client, fetch *importer.FetchImport, rows *importer.RowImport, concurrency int, logger *slog.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{client: client, fetch: fetch, rows: rows, concurrency: concurrency, logger: logger}
}

// Run blocks until ctx is canceled and every consumer goroutine has
// drained its in-flight job.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", "concurrency", w.concurrency,
		"queues", []string{fileQueueKey, rowQueueKey})

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) consume(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := w.client.BLPop(ctx, popTimeout, fileQueueKey, rowQueueKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue pop failed", "error", err)
			time.Sleep(errorBackoff)
			continue
		}
		if len(res) != 2 {
			continue
		}
		w.handle(ctx, res[0], []byte(res[1]))
	}
}

func (w *Worker) handle(ctx context.Context, queueKey string, payload []byte) {
	switch queueKey {
	case fileQueueKey:
		var job FileJob
		if err := json.Unmarshal(payload, &job); err != nil {
			w.logger.Error("discarding undecodable file job", "error", err)
			return
		}
		if err := w.fetch.Process(ctx, job.EventPayload); err != nil {
			w.logger.Error("file job failed", "error", err)
		}
	case rowQueueKey:
		var job RowJob
		if err := json.Unmarshal(payload, &job); err != nil {
			w.logger.Error("discarding undecodable row job", "error", err)
			return
		}
		if err := w.rows.Process(ctx, job.AuditID, job.Line, job.Row); err != nil {
			w.logger.Error("row job failed", "audit_id", job.AuditID, "line", job.Line, "error", err)
		}
	default:
		w.logger.Warn("job from unknown queue", "queue", queueKey)
	}
}
