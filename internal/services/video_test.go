package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/clipforge-backend/internal/apperr"
)

func TestInitUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.videoService()
	ctx := context.Background()
	owner := uuid.New()

	if _, err := svc.InitUpload(ctx, owner, "", "a.mp4", "video/mp4", 0); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("zero size: want validation, got %v", err)
	}
	if _, err := svc.InitUpload(ctx, owner, "", "a.mp4", "video/mp4", (int64(2)<<30)+1); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("oversize: want validation, got %v", err)
	}
	if _, err := svc.InitUpload(ctx, owner, "", "a.avi", "video/x-msvideo", 1024); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("bad content type: want validation, got %v", err)
	}
}

func TestInitUploadCreatesVideoAndSignedURL(t *testing.T) {
	env := newTestEnv(t)
	svc := env.videoService()
	owner := uuid.New()

	init, err := svc.InitUpload(context.Background(), owner, "", "my clip.mkv", "video/x-matroska", 1024)
	if err != nil {
		t.Fatalf("init upload: %v", err)
	}
	if init.Video.Title != "my clip" {
		t.Fatalf("title from filename: got=%q", init.Video.Title)
	}
	if !strings.HasSuffix(init.Video.SourceBlobKey, ".mkv") {
		t.Fatalf("blob key extension: got=%q", init.Video.SourceBlobKey)
	}
	if !strings.HasSuffix(init.UploadURL, init.Video.SourceBlobKey) {
		t.Fatalf("upload url not signed for blob key: %q", init.UploadURL)
	}
	if init.ExpiresIn != 3600 {
		t.Fatalf("expires_in: want=3600 got=%d", init.ExpiresIn)
	}
}

func TestVideoDeleteSweepsBlobPrefixes(t *testing.T) {
	env := newTestEnv(t)
	svc := env.videoService()
	ctx := context.Background()
	owner := uuid.New()
	video := env.seedVideo(t, owner)

	if err := svc.Delete(ctx, owner, video.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(env.bucket.deletedPrefixes) != 2 {
		t.Fatalf("swept prefixes: %v", env.bucket.deletedPrefixes)
	}
	if !strings.HasPrefix(env.bucket.deletedPrefixes[0], "uploads/") ||
		!strings.HasPrefix(env.bucket.deletedPrefixes[1], "thumbnails/") {
		t.Fatalf("swept prefixes: %v", env.bucket.deletedPrefixes)
	}

	if _, err := svc.Get(ctx, owner, video.ID); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("get after delete: want not_found, got %v", err)
	}
}

func TestListCandidatesSignsThumbnails(t *testing.T) {
	env := newTestEnv(t)
	svc := env.videoService()
	ctx := context.Background()
	owner := uuid.New()
	video := env.seedVideo(t, owner)
	cand := env.seedCandidate(t, video.ID)
	cand.ThumbBlobKey = "thumbnails/x/y.jpg"
	if err := env.db.Save(cand).Error; err != nil {
		t.Fatalf("set thumb key: %v", err)
	}

	views, err := svc.ListCandidates(ctx, owner, video.ID, nil, "")
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("views: want=1 got=%d", len(views))
	}
	if !strings.HasSuffix(views[0].ThumbURL, "thumbnails/x/y.jpg") {
		t.Fatalf("thumb url: got=%q", views[0].ThumbURL)
	}

	if _, err := svc.ListCandidates(ctx, owner, video.ID, nil, "views"); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("bad sort: want validation, got %v", err)
	}
	bad := 1.5
	if _, err := svc.ListCandidates(ctx, owner, video.ID, &bad, ""); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("bad min_score: want validation, got %v", err)
	}

	if _, err := svc.ListCandidates(ctx, uuid.New(), video.ID, nil, ""); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("foreign video: want not_found, got %v", err)
	}
}
