package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/jobs/runtime"
	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/media"
	"github.com/yungbote/clipforge-backend/internal/repos"
)

// fakeTools runs no ffmpeg: Transcode writes a dummy output file so the
// upload path can open it. failAt makes the n-th transcode call fail, and
// afterTranscode fires after each successful call.
type fakeTools struct {
	base string

	calls          int
	failAt         int
	afterTranscode func(call int)
}

func (f *fakeTools) AssertReady(context.Context) error { return nil }

func (f *fakeTools) Probe(context.Context, string) (media.ProbeInfo, error) {
	return media.ProbeInfo{}, fmt.Errorf("not implemented")
}

func (f *fakeTools) ExtractAudio(context.Context, string, string) error { return nil }

func (f *fakeTools) ExtractFrame(context.Context, string, float64, string) error { return nil }

func (f *fakeTools) SampleFrames(context.Context, media.FrameSampleRequest, func(int, []byte) error) error {
	return nil
}

func (f *fakeTools) AudioRMSLevels(context.Context, string) ([]float64, error) { return nil, nil }

func (f *fakeTools) Transcode(_ context.Context, spec media.TranscodeSpec) error {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return fmt.Errorf("encoder exited with status 1")
	}
	if err := os.WriteFile(spec.OutputPath, []byte("mp4"), 0o644); err != nil {
		return err
	}
	if f.afterTranscode != nil {
		f.afterTranscode(f.calls)
	}
	return nil
}

func (f *fakeTools) ScratchDir(name string) (string, error) {
	dir := filepath.Join(f.base, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

type fakeBucket struct {
	uploaded []string
}

func (b *fakeBucket) UploadFile(_ context.Context, key string, _ io.Reader) error {
	b.uploaded = append(b.uploaded, key)
	return nil
}

func (b *fakeBucket) DownloadFile(context.Context, string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not implemented")
}

func (b *fakeBucket) DownloadToPath(_ context.Context, _ string, dstPath string) error {
	return os.WriteFile(dstPath, []byte("mp4"), 0o644)
}

func (b *fakeBucket) DeleteFile(context.Context, string) error           { return nil }
func (b *fakeBucket) DeletePrefix(context.Context, string) error         { return nil }
func (b *fakeBucket) ListKeys(context.Context, string) ([]string, error) { return nil, nil }
func (b *fakeBucket) SignedUploadURL(string, string, time.Duration) (string, error) {
	return "", nil
}
func (b *fakeBucket) SignedDownloadURL(string, time.Duration) (string, error) {
	return "", nil
}

type testRig struct {
	pipeline *Pipeline
	tools    *fakeTools
	bucket   *fakeBucket
	renders  repos.RenderRepo
	videos   repos.VideoRepo
	cands    repos.CandidateRepo
	trans    repos.TranscriptRepo
	log      *logger.Logger
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	schema := []string{
		`CREATE TABLE videos (
			id TEXT PRIMARY KEY, owner_id TEXT, title TEXT, source_blob_key TEXT,
			duration_seconds REAL, resolution TEXT, created_at DATETIME)`,
		`CREATE TABLE transcripts (
			id TEXT PRIMARY KEY, video_id TEXT, lang TEXT, words TEXT)`,
		`CREATE TABLE candidates (
			id TEXT PRIMARY KEY, video_id TEXT, start_s REAL, end_s REAL,
			score REAL, features TEXT, thumb_blob_key TEXT)`,
		`CREATE TABLE renders (
			id TEXT PRIMARY KEY, owner_id TEXT, params TEXT,
			status TEXT DEFAULT 'pending', progress INTEGER DEFAULT 0,
			files TEXT, created_at DATETIME, updated_at DATETIME)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}

	rig := &testRig{
		tools:   &fakeTools{base: t.TempDir()},
		bucket:  &fakeBucket{},
		renders: repos.NewRenderRepo(db, log),
		videos:  repos.NewVideoRepo(db, log),
		cands:   repos.NewCandidateRepo(db, log),
		trans:   repos.NewTranscriptRepo(db, log),
		log:     log,
	}
	rig.pipeline = NewPipeline(log, rig.renders, rig.videos, rig.cands, rig.trans, rig.tools, rig.bucket)
	return rig
}

// seedClips creates one video with a transcript and two candidates, returned
// in ascending start order.
func (r *testRig) seedClips(t *testing.T) []*domain.Candidate {
	t.Helper()
	ctx := context.Background()

	video, err := r.videos.Create(ctx, nil, &domain.Video{
		OwnerID:       uuid.New(),
		Title:         "source",
		SourceBlobKey: "uploads/x/source.mp4",
	})
	if err != nil {
		t.Fatalf("seed video: %v", err)
	}
	_, err = r.trans.Create(ctx, nil, &domain.Transcript{
		VideoID: video.ID,
		Lang:    "en",
		Words: domain.WordsJSON([]domain.Word{
			{Word: "hello", StartS: 6, EndS: 6.4, Confidence: 0.9},
			{Word: "world", StartS: 21, EndS: 21.4, Confidence: 0.9},
		}),
	})
	if err != nil {
		t.Fatalf("seed transcript: %v", err)
	}
	rows := []*domain.Candidate{
		{VideoID: video.ID, StartS: 5, EndS: 15, Score: 0.9},
		{VideoID: video.ID, StartS: 20, EndS: 30, Score: 0.7},
	}
	if _, err := r.cands.CreateBatch(ctx, nil, rows); err != nil {
		t.Fatalf("seed candidates: %v", err)
	}
	return rows
}

func (r *testRig) startClaimedRender(t *testing.T, params domain.RenderParams) (*domain.Render, *runtime.Context) {
	t.Helper()
	ctx := context.Background()

	render, err := r.renders.Create(ctx, nil, &domain.Render{
		OwnerID: uuid.New(),
		Params:  params.JSON(),
	})
	if err != nil {
		t.Fatalf("seed render: %v", err)
	}
	claimed, err := r.renders.ClaimPending(ctx, nil, render.ID)
	if err != nil || !claimed {
		t.Fatalf("claim: ok=%v err=%v", claimed, err)
	}
	jc := runtime.NewContext(ctx, r.log, render.ID, domain.JobKindRender, r.renders)
	return render, jc
}

func (r *testRig) scratchFor(renderID uuid.UUID) string {
	return filepath.Join(r.tools.base, "render-"+renderID.String())
}

func TestRenderRunCompletes(t *testing.T) {
	rig := newTestRig(t)
	cands := rig.seedClips(t)
	ctx := context.Background()

	// An unresolvable id in the submission list is dropped, not fatal.
	render, jc := rig.startClaimedRender(t, domain.RenderParams{
		CandidateIDs: []uuid.UUID{cands[0].ID, uuid.New(), cands[1].ID},
		Template:     domain.TemplateClean,
		Outputs:      []string{"9:16", "1:1"},
		Loudness:     "-14",
		Captions:     "on",
	})

	if err := rig.pipeline.Run(jc); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, _ := rig.renders.GetByID(ctx, nil, render.ID)
	if got.Status != domain.JobStatusCompleted || got.Progress != 100 {
		t.Fatalf("final row: status=%s progress=%d", got.Status, got.Progress)
	}

	files := domain.ParseRenderFiles(got.Files)
	if len(files) != 2 {
		t.Fatalf("files entries: want=2 got=%d", len(files))
	}
	for _, cand := range cands {
		byAspect := files[cand.ID.String()]
		if len(byAspect) != 2 {
			t.Fatalf("aspects for %s: want=2 got=%d", cand.ID, len(byAspect))
		}
		for _, aspect := range []string{"9:16", "1:1"} {
			want := domain.RenderBlobKey(render.ID, cand.ID, aspect)
			if byAspect[aspect] != want {
				t.Fatalf("key for %s/%s: want=%q got=%q", cand.ID, aspect, want, byAspect[aspect])
			}
		}
	}
	if len(rig.bucket.uploaded) != 4 {
		t.Fatalf("uploads: want=4 got=%d", len(rig.bucket.uploaded))
	}
	if rig.tools.calls != 4 {
		t.Fatalf("transcode calls: want=4 got=%d", rig.tools.calls)
	}
	if _, err := os.Stat(rig.scratchFor(render.ID)); !os.IsNotExist(err) {
		t.Fatalf("scratch dir not removed: %v", err)
	}
}

func TestRenderFailureKeepsUploadedOutputs(t *testing.T) {
	rig := newTestRig(t)
	cands := rig.seedClips(t)
	ctx := context.Background()

	render, jc := rig.startClaimedRender(t, domain.RenderParams{
		CandidateIDs: []uuid.UUID{cands[0].ID, cands[1].ID},
		Template:     domain.TemplateClean,
		Outputs:      []string{"9:16", "1:1"},
		Loudness:     "-14",
		Captions:     "off",
	})
	// First candidate renders both aspects, the third pair fails.
	rig.tools.failAt = 3

	if err := rig.pipeline.Run(jc); err == nil {
		t.Fatalf("run should fail")
	}

	got, _ := rig.renders.GetByID(ctx, nil, render.ID)
	if got.Status != domain.JobStatusFailed {
		t.Fatalf("status: want=failed got=%s", got.Status)
	}

	files := domain.ParseRenderFiles(got.Files)
	byAspect := files[cands[0].ID.String()]
	if len(files) != 1 || len(byAspect) != 2 {
		t.Fatalf("completed pairs preserved: files=%v", files)
	}
	if _, ok := files[cands[1].ID.String()]; ok {
		t.Fatalf("failed candidate must not appear in files: %v", files)
	}
	if len(rig.bucket.uploaded) != 2 {
		t.Fatalf("uploads: want=2 got=%d", len(rig.bucket.uploaded))
	}
	if _, err := os.Stat(rig.scratchFor(render.ID)); !os.IsNotExist(err) {
		t.Fatalf("scratch dir not removed: %v", err)
	}
}

func TestRenderStopsAtCancellationCheckpoint(t *testing.T) {
	rig := newTestRig(t)
	cands := rig.seedClips(t)
	ctx := context.Background()

	render, jc := rig.startClaimedRender(t, domain.RenderParams{
		CandidateIDs: []uuid.UUID{cands[0].ID, cands[1].ID},
		Template:     domain.TemplateClean,
		Outputs:      []string{"9:16"},
		Loudness:     "-14",
		Captions:     "off",
	})
	// Cancellation lands after the first pair; the pre-pair check on the
	// second observes it.
	rig.tools.afterTranscode = func(call int) {
		if call != 1 {
			return
		}
		ok, err := rig.renders.UpdateUnlessTerminal(ctx, nil, render.ID, map[string]interface{}{
			"status": domain.JobStatusCancelled,
		})
		if err != nil || !ok {
			t.Fatalf("cancel mid-run: ok=%v err=%v", ok, err)
		}
	}

	if err := rig.pipeline.Run(jc); err != nil {
		t.Fatalf("cancelled run must not report an error: %v", err)
	}

	status, _ := rig.renders.GetStatus(ctx, nil, render.ID)
	if status != domain.JobStatusCancelled {
		t.Fatalf("status: want=cancelled got=%s", status)
	}
	if rig.tools.calls != 1 {
		t.Fatalf("transcode calls after cancellation: want=1 got=%d", rig.tools.calls)
	}
	if len(rig.bucket.uploaded) != 1 {
		t.Fatalf("uploads after cancellation: want=1 got=%d", len(rig.bucket.uploaded))
	}
	if _, err := os.Stat(rig.scratchFor(render.ID)); !os.IsNotExist(err) {
		t.Fatalf("scratch dir not removed: %v", err)
	}
}

func TestRenderSucceedsWithNothingToDo(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	render, jc := rig.startClaimedRender(t, domain.RenderParams{
		CandidateIDs: []uuid.UUID{uuid.New()},
		Template:     domain.TemplateClean,
		Outputs:      []string{"9:16"},
		Loudness:     "-14",
		Captions:     "off",
	})

	if err := rig.pipeline.Run(jc); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, _ := rig.renders.GetByID(ctx, nil, render.ID)
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("status: want=completed got=%s", got.Status)
	}
	if len(domain.ParseRenderFiles(got.Files)) != 0 {
		t.Fatalf("files must be empty: %s", got.Files)
	}
	if rig.tools.calls != 0 {
		t.Fatalf("transcode calls: want=0 got=%d", rig.tools.calls)
	}
}
