package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Blob key layout. Everything a video owns lives under a prefix keyed by its
// id so cascade deletes are a single prefix sweep.

func SourceBlobKey(videoID uuid.UUID, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("uploads/%s/source%s", videoID, ext)
}

func ThumbBlobKey(videoID, candidateID uuid.UUID) string {
	return fmt.Sprintf("thumbnails/%s/%s.jpg", videoID, candidateID)
}

// RenderBlobKey names one rendered output. The aspect ratio's colon is not
// filesystem safe, so "9:16" becomes "9x16" in the key.
func RenderBlobKey(renderID, candidateID uuid.UUID, aspect string) string {
	return fmt.Sprintf("renders/%s/%s_%s.mp4", renderID, candidateID, SanitizeAspect(aspect))
}

func SanitizeAspect(aspect string) string {
	return strings.ReplaceAll(aspect, ":", "x")
}

func UploadPrefix(videoID uuid.UUID) string    { return fmt.Sprintf("uploads/%s/", videoID) }
func ThumbnailPrefix(videoID uuid.UUID) string { return fmt.Sprintf("thumbnails/%s/", videoID) }
func RenderPrefix(renderID uuid.UUID) string   { return fmt.Sprintf("renders/%s/", renderID) }
