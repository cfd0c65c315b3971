package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/utils"
)

// Job queue over Redis lists. One list per (kind, priority) pair; dequeue is
// a single BLPOP across a worker's kinds with keys ordered high to low, so
// higher priorities drain first and delivery within a level stays FIFO.
//
// Delivery is at-least-once. The pending -> processing CAS in the database is
// the idempotency guard; a redelivered message whose job is already claimed
// is dropped by the worker.

const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

var priorityOrder = []string{PriorityHigh, PriorityNormal, PriorityLow}

func ValidPriority(p string) bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	default:
		return false
	}
}

// Message is the wire envelope. The payload is deliberately thin: workers
// load everything else from the job row.
type Message struct {
	JobID      uuid.UUID `json:"job_id"`
	Kind       string    `json:"kind"`
	Priority   string    `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type JobQueue interface {
	Enqueue(ctx context.Context, msg Message) error
	// Dequeue blocks up to timeout waiting for a message on any of the given
	// kinds. Returns ok=false on timeout.
	Dequeue(ctx context.Context, kinds []string, timeout time.Duration) (Message, bool, error)
	Depth(ctx context.Context, kind string) (int64, error)
	Close() error
}

type jobQueue struct {
	log       *logger.Logger
	rdb       *goredis.Client
	keyPrefix string
}

func NewJobQueue(log *logger.Logger) (JobQueue, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr, err := utils.RequireEnv("REDIS_ADDR")
	if err != nil {
		return nil, err
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewJobQueueWithClient(log, rdb), nil
}

// NewJobQueueWithClient wires an existing client. Tests use this with an
// in-process redis.
func NewJobQueueWithClient(log *logger.Logger, rdb *goredis.Client) JobQueue {
	return &jobQueue{
		log:       log.With("service", "RedisJobQueue"),
		rdb:       rdb,
		keyPrefix: "clipforge:queue",
	}
}

func (q *jobQueue) listKey(kind, priority string) string {
	return fmt.Sprintf("%s:%s:%s", q.keyPrefix, kind, priority)
}

func (q *jobQueue) Enqueue(ctx context.Context, msg Message) error {
	if q == nil || q.rdb == nil {
		return fmt.Errorf("job queue not initialized")
	}
	if msg.JobID == uuid.Nil {
		return fmt.Errorf("enqueue: missing job id")
	}
	if msg.Kind == "" {
		return fmt.Errorf("enqueue: missing kind")
	}
	if msg.Priority == "" {
		msg.Priority = PriorityNormal
	}
	if !ValidPriority(msg.Priority) {
		return fmt.Errorf("enqueue: invalid priority %q", msg.Priority)
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, q.listKey(msg.Kind, msg.Priority), raw).Err()
}

func (q *jobQueue) Dequeue(ctx context.Context, kinds []string, timeout time.Duration) (Message, bool, error) {
	if q == nil || q.rdb == nil {
		return Message{}, false, fmt.Errorf("job queue not initialized")
	}
	if len(kinds) == 0 {
		return Message{}, false, fmt.Errorf("dequeue: no kinds")
	}

	keys := make([]string, 0, len(kinds)*len(priorityOrder))
	for _, p := range priorityOrder {
		for _, k := range kinds {
			keys = append(keys, q.listKey(k, p))
		}
	}

	res, err := q.rdb.BLPop(ctx, timeout, keys...).Result()
	if errors.Is(err, goredis.Nil) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, err
	}
	// BLPOP returns [key, value].
	if len(res) != 2 {
		return Message{}, false, fmt.Errorf("dequeue: unexpected BLPOP reply of %d elements", len(res))
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		q.log.Warn("dropping undecodable queue message", "key", res[0], "error", err)
		return Message{}, false, nil
	}
	return msg, true, nil
}

func (q *jobQueue) Depth(ctx context.Context, kind string) (int64, error) {
	if q == nil || q.rdb == nil {
		return 0, fmt.Errorf("job queue not initialized")
	}
	var total int64
	for _, p := range priorityOrder {
		n, err := q.rdb.LLen(ctx, q.listKey(kind, p)).Result()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (q *jobQueue) Close() error {
	if q == nil || q.rdb == nil {
		return nil
	}
	return q.rdb.Close()
}
