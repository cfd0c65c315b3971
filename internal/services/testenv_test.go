package services

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/clipforge-backend/internal/clients/redis"
	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/repos"
)

// testEnv wires the service layer against in-memory SQLite with fake queue
// and bucket doubles. The schema is created by hand because sqlite rejects
// the postgres column defaults the models declare.
type testEnv struct {
	db     *gorm.DB
	log    *logger.Logger
	users  repos.UserRepo
	videos repos.VideoRepo
	jobs   repos.JobRepo
	cands  repos.CandidateRepo
	rends  repos.RenderRepo
	queue  *fakeQueue
	bucket *fakeBucket
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	schema := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY, email TEXT UNIQUE, pw_hash TEXT, created_at DATETIME)`,
		`CREATE TABLE videos (
			id TEXT PRIMARY KEY, owner_id TEXT, title TEXT, source_blob_key TEXT,
			duration_seconds REAL, resolution TEXT, created_at DATETIME)`,
		`CREATE TABLE jobs (
			id TEXT PRIMARY KEY, video_id TEXT, kind TEXT, status TEXT DEFAULT 'pending',
			progress INTEGER DEFAULT 0, logs TEXT, created_at DATETIME, updated_at DATETIME)`,
		`CREATE TABLE transcripts (
			id TEXT PRIMARY KEY, video_id TEXT, lang TEXT, words TEXT)`,
		`CREATE TABLE candidates (
			id TEXT PRIMARY KEY, video_id TEXT, start_s REAL, end_s REAL,
			score REAL, features TEXT, thumb_blob_key TEXT)`,
		`CREATE TABLE renders (
			id TEXT PRIMARY KEY, owner_id TEXT, params TEXT, status TEXT DEFAULT 'pending',
			progress INTEGER DEFAULT 0, files TEXT, created_at DATETIME, updated_at DATETIME)`,
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
	return &testEnv{
		db:     db,
		log:    log,
		users:  repos.NewUserRepo(db, log),
		videos: repos.NewVideoRepo(db, log),
		jobs:   repos.NewJobRepo(db, log),
		cands:  repos.NewCandidateRepo(db, log),
		rends:  repos.NewRenderRepo(db, log),
		queue:  &fakeQueue{},
		bucket: &fakeBucket{},
	}
}

func (e *testEnv) jobService() JobService {
	return NewJobService(e.log, e.db, e.jobs, e.videos, e.queue, domain.DefaultAnalysisConfig())
}

func (e *testEnv) renderService() RenderService {
	return NewRenderService(e.log, e.db, e.rends, e.cands, e.videos, e.bucket, e.queue)
}

func (e *testEnv) videoService() VideoService {
	return NewVideoService(e.log, e.videos, e.cands, e.bucket)
}

func (e *testEnv) seedVideo(t *testing.T, ownerID uuid.UUID) *domain.Video {
	t.Helper()
	video, err := e.videos.Create(context.Background(), nil, &domain.Video{
		OwnerID:       ownerID,
		Title:         "clip source",
		SourceBlobKey: "uploads/x/source.mp4",
	})
	if err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return video
}

func (e *testEnv) seedCandidate(t *testing.T, videoID uuid.UUID) *domain.Candidate {
	t.Helper()
	rows, err := e.cands.CreateBatch(context.Background(), nil, []*domain.Candidate{
		{VideoID: videoID, StartS: 5, EndS: 15, Score: 0.8},
	})
	if err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
	return rows[0]
}

type fakeQueue struct {
	messages []redis.Message
}

func (q *fakeQueue) Enqueue(_ context.Context, msg redis.Message) error {
	q.messages = append(q.messages, msg)
	return nil
}

func (q *fakeQueue) Dequeue(context.Context, []string, time.Duration) (redis.Message, bool, error) {
	return redis.Message{}, false, nil
}

func (q *fakeQueue) Depth(context.Context, string) (int64, error) {
	return int64(len(q.messages)), nil
}

func (q *fakeQueue) Close() error { return nil }

type fakeBucket struct {
	deletedPrefixes []string
}

func (b *fakeBucket) UploadFile(context.Context, string, io.Reader) error { return nil }

func (b *fakeBucket) DownloadFile(context.Context, string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not implemented")
}

func (b *fakeBucket) DownloadToPath(context.Context, string, string) error { return nil }

func (b *fakeBucket) DeleteFile(context.Context, string) error { return nil }

func (b *fakeBucket) DeletePrefix(_ context.Context, prefix string) error {
	b.deletedPrefixes = append(b.deletedPrefixes, prefix)
	return nil
}

func (b *fakeBucket) ListKeys(context.Context, string) ([]string, error) { return nil, nil }

func (b *fakeBucket) SignedUploadURL(key, _ string, _ time.Duration) (string, error) {
	return "https://signed.example/put/" + key, nil
}

func (b *fakeBucket) SignedDownloadURL(key string, _ time.Duration) (string, error) {
	return "https://signed.example/get/" + key, nil
}
