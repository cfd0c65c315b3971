package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/clipforge-backend/internal/apperr"
	"github.com/yungbote/clipforge-backend/internal/clients/gcp"
	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/repos"
)

const (
	maxUploadBytes = int64(2) << 30 // 2 GiB
	uploadURLTTL   = time.Hour
	thumbURLTTL    = 24 * time.Hour
)

var allowedUploadTypes = map[string]string{
	"video/mp4":        ".mp4",
	"video/x-matroska": ".mkv",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
}

type UploadInit struct {
	Video     *domain.Video
	UploadURL string
	ExpiresIn int
}

// CandidateView is a Candidate joined with a short-lived signed thumbnail URL.
type CandidateView struct {
	Candidate *domain.Candidate
	ThumbURL  string
}

type VideoService interface {
	InitUpload(ctx context.Context, ownerID uuid.UUID, title, filename, contentType string, sizeBytes int64) (*UploadInit, error)
	Get(ctx context.Context, ownerID, videoID uuid.UUID) (*domain.Video, error)
	List(ctx context.Context, ownerID uuid.UUID, skip, limit int) ([]*domain.Video, error)
	Delete(ctx context.Context, ownerID, videoID uuid.UUID) error
	ListCandidates(ctx context.Context, ownerID, videoID uuid.UUID, minScore *float64, sortBy string) ([]CandidateView, error)
}

type videoService struct {
	log           *logger.Logger
	videoRepo     repos.VideoRepo
	candidateRepo repos.CandidateRepo
	bucket        gcp.BucketService
}

func NewVideoService(log *logger.Logger, videoRepo repos.VideoRepo, candidateRepo repos.CandidateRepo, bucket gcp.BucketService) VideoService {
	return &videoService{
		log:           log.With("service", "VideoService"),
		videoRepo:     videoRepo,
		candidateRepo: candidateRepo,
		bucket:        bucket,
	}
}

// InitUpload validates the declared upload, creates the video record, and
// mints a signed PUT URL the client uploads against directly.
func (s *videoService) InitUpload(ctx context.Context, ownerID uuid.UUID, title, filename, contentType string, sizeBytes int64) (*UploadInit, error) {
	if sizeBytes <= 0 {
		return nil, apperr.Validation(fmt.Errorf("filesize must be positive"))
	}
	if sizeBytes > maxUploadBytes {
		return nil, apperr.Validation(fmt.Errorf("file size exceeds maximum of 2GiB"))
	}
	ext, ok := allowedUploadTypes[contentType]
	if !ok {
		return nil, apperr.Validation(fmt.Errorf("unsupported content type %q", contentType))
	}

	videoID := uuid.New()
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	if title == "" {
		title = "Video " + videoID.String()[:8]
	}

	key := domain.SourceBlobKey(videoID, ext)
	uploadURL, err := s.bucket.SignedUploadURL(key, contentType, uploadURLTTL)
	if err != nil {
		return nil, apperr.Storage(err)
	}

	video, err := s.videoRepo.Create(ctx, nil, &domain.Video{
		ID:            videoID,
		OwnerID:       ownerID,
		Title:         title,
		SourceBlobKey: key,
	})
	if err != nil {
		return nil, apperr.Database(err)
	}

	return &UploadInit{
		Video:     video,
		UploadURL: uploadURL,
		ExpiresIn: int(uploadURLTTL.Seconds()),
	}, nil
}

// getOwned is the shared ownership gate: missing and foreign videos are both
// reported as not found so ids cannot be probed.
func (s *videoService) getOwned(ctx context.Context, ownerID, videoID uuid.UUID) (*domain.Video, error) {
	video, err := s.videoRepo.GetByID(ctx, nil, videoID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if video == nil || video.OwnerID != ownerID {
		return nil, apperr.NotFound(fmt.Errorf("video not found"))
	}
	return video, nil
}

func (s *videoService) Get(ctx context.Context, ownerID, videoID uuid.UUID) (*domain.Video, error) {
	return s.getOwned(ctx, ownerID, videoID)
}

func (s *videoService) List(ctx context.Context, ownerID uuid.UUID, skip, limit int) ([]*domain.Video, error) {
	videos, err := s.videoRepo.ListByOwner(ctx, nil, ownerID, skip, limit)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return videos, nil
}

// Delete removes the video row (jobs, transcripts, and candidates cascade in
// the database) and then sweeps the video's blob prefixes. Blob cleanup is
// best effort: a half-failed sweep leaves orphans, not broken rows.
func (s *videoService) Delete(ctx context.Context, ownerID, videoID uuid.UUID) error {
	video, err := s.getOwned(ctx, ownerID, videoID)
	if err != nil {
		return err
	}
	if err := s.videoRepo.Delete(ctx, nil, video.ID); err != nil {
		return apperr.Database(err)
	}
	if err := s.bucket.DeletePrefix(ctx, domain.UploadPrefix(video.ID)); err != nil {
		s.log.Warn("upload blob cleanup failed", "video_id", video.ID, "error", err)
	}
	if err := s.bucket.DeletePrefix(ctx, domain.ThumbnailPrefix(video.ID)); err != nil {
		s.log.Warn("thumbnail blob cleanup failed", "video_id", video.ID, "error", err)
	}
	return nil
}

func (s *videoService) ListCandidates(ctx context.Context, ownerID, videoID uuid.UUID, minScore *float64, sortBy string) ([]CandidateView, error) {
	if _, err := s.getOwned(ctx, ownerID, videoID); err != nil {
		return nil, err
	}
	switch sortBy {
	case "", repos.CandidateSortScore, repos.CandidateSortDuration, repos.CandidateSortStart:
	default:
		return nil, apperr.Validation(fmt.Errorf("invalid sort_by %q", sortBy))
	}
	if minScore != nil && (*minScore < 0 || *minScore > 1) {
		return nil, apperr.Validation(fmt.Errorf("min_score must be in [0,1]"))
	}

	candidates, err := s.candidateRepo.ListByVideo(ctx, nil, videoID, minScore, sortBy)
	if err != nil {
		return nil, apperr.Database(err)
	}

	out := make([]CandidateView, 0, len(candidates))
	for _, c := range candidates {
		view := CandidateView{Candidate: c}
		if c.ThumbBlobKey != "" {
			url, err := s.bucket.SignedDownloadURL(c.ThumbBlobKey, thumbURLTTL)
			if err != nil {
				s.log.Warn("thumbnail sign failed", "candidate_id", c.ID, "error", err)
			} else {
				view.ThumbURL = url
			}
		}
		out = append(out, view)
	}
	return out, nil
}
