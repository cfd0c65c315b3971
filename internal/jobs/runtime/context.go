package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
)

// StatusStore is the slice of a repo a pipeline needs to drive its status
// row. Both the analyze store (jobs table) and the render store (renders
// table) satisfy it.
type StatusStore interface {
	ClaimPending(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	UpdateUnlessTerminal(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) (bool, error)
	GetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID) (string, error)
}

// Context is the execution contract between the job system and pipeline
// code. It wraps the status row and the only sanctioned ways to claim it,
// report progress against it, or terminate it. Pipelines never write status
// columns directly; every write here is guarded so terminal states stay
// absorbing.
type Context struct {
	Ctx  context.Context
	Log  *logger.Logger
	ID   uuid.UUID
	Kind string

	store StatusStore
}

func NewContext(ctx context.Context, log *logger.Logger, id uuid.UUID, kind string, store StatusStore) *Context {
	return &Context{
		Ctx:   ctx,
		Log:   log.With("job_id", id.String(), "kind", kind),
		ID:    id,
		Kind:  kind,
		store: store,
	}
}

// Claim performs the pending -> processing CAS. A false return means another
// worker already owns this run (or it reached a terminal state) and the
// caller must drop the message without side effects.
func (c *Context) Claim() (bool, error) {
	return c.store.ClaimPending(c.Ctx, nil, c.ID)
}

// Cancelled polls the status row. Pipelines call it at every milestone so a
// cooperative cancellation takes effect at the next checkpoint.
func (c *Context) Cancelled() (bool, error) {
	status, err := c.store.GetStatus(c.Ctx, nil, c.ID)
	if err != nil {
		return false, err
	}
	return status == domain.JobStatusCancelled, nil
}

// Progress persists a milestone. extra carries pipeline-specific columns
// (the analyze pipeline writes its step tag into logs, the render pipeline
// has none). Returns false when the row is terminal and the write was
// rejected; the pipeline should then stop.
func (c *Context) Progress(pct int, extra map[string]interface{}) bool {
	updates := map[string]interface{}{"progress": pct}
	for k, v := range extra {
		updates[k] = v
	}
	ok, err := c.store.UpdateUnlessTerminal(c.Ctx, nil, c.ID, updates)
	if err != nil {
		c.Log.Warn("progress write failed", "progress", pct, "error", err)
		return true
	}
	return ok
}

// Update applies raw field updates under the terminal guard. For the rare
// writes Progress/Fail/Succeed do not cover.
func (c *Context) Update(updates map[string]interface{}) (bool, error) {
	return c.store.UpdateUnlessTerminal(c.Ctx, nil, c.ID, updates)
}

// Fail marks the run terminally failed. Rejected silently if the row is
// already terminal (a cancellation observed late must not be overwritten).
func (c *Context) Fail(extra map[string]interface{}) {
	updates := map[string]interface{}{
		"status":     domain.JobStatusFailed,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	// Fail must not inherit the request context: it usually runs after a
	// timeout or cancellation already fired.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := c.store.UpdateUnlessTerminal(ctx, nil, c.ID, updates); err != nil {
		c.Log.Error("failed to persist job failure", "error", err)
	}
}

// Succeed marks the run completed at 100%.
func (c *Context) Succeed(extra map[string]interface{}) bool {
	updates := map[string]interface{}{
		"status":   domain.JobStatusCompleted,
		"progress": 100,
	}
	for k, v := range extra {
		updates[k] = v
	}
	ok, err := c.store.UpdateUnlessTerminal(c.Ctx, nil, c.ID, updates)
	if err != nil {
		c.Log.Error("failed to persist job completion", "error", err)
		return false
	}
	return ok
}
