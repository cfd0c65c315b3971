package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/clipforge-backend/internal/domain"
)

func newTestRender(t *testing.T, repo RenderRepo, ownerID uuid.UUID) *domain.Render {
	t.Helper()
	render, err := repo.Create(context.Background(), nil, &domain.Render{
		OwnerID: ownerID,
		Params:  domain.RenderParams{Template: domain.TemplateClean}.JSON(),
		Files:   domain.RenderFiles{}.JSON(),
	})
	if err != nil {
		t.Fatalf("create render: %v", err)
	}
	return render
}

func TestRenderCountActiveForOwner(t *testing.T) {
	db, log := testDB(t)
	repo := NewRenderRepo(db, log)
	ctx := context.Background()
	owner := uuid.New()

	r1 := newTestRender(t, repo, owner)
	newTestRender(t, repo, owner)
	newTestRender(t, repo, uuid.New()) // someone else's

	count, err := repo.CountActiveForOwner(ctx, nil, owner)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("active count: want=2 got=%d", count)
	}

	// Completed renders leave the cap.
	if _, err := repo.ClaimPending(ctx, nil, r1.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := repo.UpdateUnlessTerminal(ctx, nil, r1.ID, map[string]interface{}{
		"status": domain.JobStatusCompleted,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	count, _ = repo.CountActiveForOwner(ctx, nil, owner)
	if count != 1 {
		t.Fatalf("active count after completion: want=1 got=%d", count)
	}
}

func TestRenderClaimAndAbsorb(t *testing.T) {
	db, log := testDB(t)
	repo := NewRenderRepo(db, log)
	ctx := context.Background()

	render := newTestRender(t, repo, uuid.New())

	claimed, err := repo.ClaimPending(ctx, nil, render.ID)
	if err != nil || !claimed {
		t.Fatalf("claim: ok=%v err=%v", claimed, err)
	}
	claimed, _ = repo.ClaimPending(ctx, nil, render.ID)
	if claimed {
		t.Fatalf("second claim should lose")
	}

	ok, _ := repo.UpdateUnlessTerminal(ctx, nil, render.ID, map[string]interface{}{
		"status": domain.JobStatusFailed,
	})
	if !ok {
		t.Fatalf("fail write rejected")
	}
	ok, _ = repo.UpdateUnlessTerminal(ctx, nil, render.ID, map[string]interface{}{
		"progress": 50,
	})
	if ok {
		t.Fatalf("failed render accepted a progress write")
	}
}

func TestRenderListByOwnerStatusFilter(t *testing.T) {
	db, log := testDB(t)
	repo := NewRenderRepo(db, log)
	ctx := context.Background()
	owner := uuid.New()

	r1 := newTestRender(t, repo, owner)
	newTestRender(t, repo, owner)
	_, _ = repo.ClaimPending(ctx, nil, r1.ID)
	_, _ = repo.UpdateUnlessTerminal(ctx, nil, r1.ID, map[string]interface{}{
		"status": domain.JobStatusCompleted,
	})

	all, err := repo.ListByOwner(ctx, nil, owner, "", 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("unfiltered: want=2 got=%d", len(all))
	}

	completed, _ := repo.ListByOwner(ctx, nil, owner, domain.JobStatusCompleted, 0, 10)
	if len(completed) != 1 || completed[0].ID != r1.ID {
		t.Fatalf("completed filter: got=%d rows", len(completed))
	}
}

func TestRenderDelete(t *testing.T) {
	db, log := testDB(t)
	repo := NewRenderRepo(db, log)
	ctx := context.Background()

	render := newTestRender(t, repo, uuid.New())
	if err := repo.Delete(ctx, nil, render.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := repo.GetByID(ctx, nil, render.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Fatalf("render still present after delete")
	}
}
