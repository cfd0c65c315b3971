package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/clipforge-backend/internal/logger"
)

func testQueue(t *testing.T) JobQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	q := NewJobQueueWithClient(log, goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func enqueue(t *testing.T, q JobQueue, kind, priority string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := q.Enqueue(context.Background(), Message{JobID: id, Kind: kind, Priority: priority}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return id
}

func TestQueuePriorityOrdering(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	low := enqueue(t, q, "analyze", PriorityLow)
	normal := enqueue(t, q, "analyze", PriorityNormal)
	high := enqueue(t, q, "analyze", PriorityHigh)

	for _, want := range []uuid.UUID{high, normal, low} {
		msg, ok, err := q.Dequeue(ctx, []string{"analyze"}, time.Second)
		if err != nil || !ok {
			t.Fatalf("dequeue: ok=%v err=%v", ok, err)
		}
		if msg.JobID != want {
			t.Fatalf("order: want=%s got=%s", want, msg.JobID)
		}
	}
}

func TestQueueFIFOWithinPriority(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	first := enqueue(t, q, "render", PriorityNormal)
	second := enqueue(t, q, "render", PriorityNormal)

	msg, ok, _ := q.Dequeue(ctx, []string{"render"}, time.Second)
	if !ok || msg.JobID != first {
		t.Fatalf("first dequeue: want=%s got=%s", first, msg.JobID)
	}
	msg, ok, _ = q.Dequeue(ctx, []string{"render"}, time.Second)
	if !ok || msg.JobID != second {
		t.Fatalf("second dequeue: want=%s got=%s", second, msg.JobID)
	}
}

func TestQueueDequeueSpansKinds(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	id := enqueue(t, q, "render", PriorityNormal)

	msg, ok, err := q.Dequeue(ctx, []string{"analyze", "render"}, time.Second)
	if err != nil || !ok {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if msg.JobID != id || msg.Kind != "render" {
		t.Fatalf("message: got id=%s kind=%s", msg.JobID, msg.Kind)
	}
}

func TestQueueTimeoutIsNotAnError(t *testing.T) {
	q := testQueue(t)

	_, ok, err := q.Dequeue(context.Background(), []string{"analyze"}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("timeout should not error: %v", err)
	}
	if ok {
		t.Fatalf("empty queue returned a message")
	}
}

func TestQueueEnqueueValidation(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, Message{Kind: "analyze"}); err == nil {
		t.Fatalf("missing job id accepted")
	}
	if err := q.Enqueue(ctx, Message{JobID: uuid.New()}); err == nil {
		t.Fatalf("missing kind accepted")
	}
	if err := q.Enqueue(ctx, Message{JobID: uuid.New(), Kind: "analyze", Priority: "urgent"}); err == nil {
		t.Fatalf("invalid priority accepted")
	}

	// Empty priority defaults to normal.
	id := enqueue(t, q, "analyze", "")
	msg, ok, _ := q.Dequeue(ctx, []string{"analyze"}, time.Second)
	if !ok || msg.JobID != id || msg.Priority != PriorityNormal {
		t.Fatalf("default priority: got=%q", msg.Priority)
	}
}

func TestQueueDepthCountsAllPriorities(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	enqueue(t, q, "analyze", PriorityHigh)
	enqueue(t, q, "analyze", PriorityNormal)
	enqueue(t, q, "analyze", PriorityLow)
	enqueue(t, q, "render", PriorityNormal)

	n, err := q.Depth(ctx, "analyze")
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if n != 3 {
		t.Fatalf("depth: want=3 got=%d", n)
	}
}
