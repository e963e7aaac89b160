// Package queue is the redis-backed job transport for asynchronous imports.
// Two lists carry the work: file jobs fan a stored upload out into row
// jobs, and row jobs reconcile a single CSV row each.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/partnerhub-platform/api/internal/importer"
)

const (
	fileQueueKey = "import:csv_process"
	rowQueueKey  = "import:row_import"
)

// Connect parses a redis:// URL and verifies the connection with a ping.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// FileJob triggers a fetch-and-import run for one storage event.
type FileJob struct {
	EventPayload json.RawMessage `json:"eventPayload"`
}

// RowJob is a self-contained unit of row work: everything the worker needs
// travels in the payload, so jobs survive process restarts and replays.
type RowJob struct {
	AuditID uuid.UUID         `json:"auditId"`
	Line    int               `json:"line"`
	Row     map[string]string `json:"row"`
}

// Queue pushes jobs onto the redis lists. Workers consume with BLPOP, so
// delivery is at-least-once and unordered across workers.
type Queue struct {
	client *redis.Client
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) EnqueueFile(ctx context.Context, eventPayload []byte) error {
	payload, err := json.Marshal(FileJob{EventPayload: eventPayload})
	if err != nil {
		return fmt.Errorf("encode file job: %w", err)
	}
	if err := q.client.LPush(ctx, fileQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue file job: %w", err)
	}
	return nil
}

func (q *Queue) EnqueueRow(ctx context.Context, job RowJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode row job: %w", err)
	}
	if err := q.client.LPush(ctx, rowQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue row job: %w", err)
	}
	return nil
}

// RowDispatcher adapts the queue to the orchestrator: each parsed row
// becomes one RowJob for the audit this dispatcher was built for.
type RowDispatcher struct {
	queue   *Queue
	auditID uuid.UUID
}

func NewRowDispatcher(q *Queue, auditID uuid.UUID) *RowDispatcher {
	return &RowDispatcher{queue: q, auditID: auditID}
}

func (d *RowDispatcher) Dispatch(ctx context.Context, row importer.Row, line int, result *importer.Result) error {
	raw := make(map[string]string, len(row))
	for field, value := range row {
		raw[string(field)] = value
	}
	// Total here counts dispatched rows; per-row outcomes land on the
	// audit record, not on this result.
	result.Total++
	return d.queue.EnqueueRow(ctx, RowJob{AuditID: d.auditID, Line: line, Row: raw})
}
