package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
)

// Speech transcribes extracted audio into word-level timings. Input is always
// 16 kHz mono LINEAR16 WAV produced by the media toolchain.
type Speech interface {
	TranscribeWAV(ctx context.Context, audio []byte, cfg SpeechConfig) (*TranscriptResult, error)
	Close() error
}

type SpeechConfig struct {
	// Language is a BCP-47 code, or "auto" to let the recognizer pick among
	// a set of common languages.
	Language string
	// Model selects the recognition model ("latest_long", "video", ...).
	// Empty uses the API default.
	Model string
}

// TranscriptResult carries the detected language and the word sequence in
// source order. Lang is "und" when the recognizer returned nothing.
type TranscriptResult struct {
	Lang  string
	Words []domain.Word
}

// Candidate languages offered to the recognizer when the caller asks for
// auto detection. The API allows at most three alternatives.
var autoDetectAlternatives = []string{"es-ES", "ja-JP", "de-DE"}

type speechService struct {
	log        *logger.Logger
	client     *speech.Client
	maxRetries int
}

func NewSpeech(log *logger.Logger) (Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Speech")

	ctx := context.Background()
	opts := ClientOptionsFromEnv()

	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &speechService{
		log:        slog,
		client:     c,
		maxRetries: 4,
	}, nil
}

func (s *speechService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *speechService) TranscribeWAV(ctx context.Context, audio []byte, cfg SpeechConfig) (*TranscriptResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if len(audio) == 0 {
		return &TranscriptResult{Lang: "und", Words: []domain.Word{}}, nil
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: buildRecognitionConfig(cfg),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	resp, err := s.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := s.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
	}

	return parseRecognizeResponse(resp), nil
}

func buildRecognitionConfig(cfg SpeechConfig) *speechpb.RecognitionConfig {
	rc := &speechpb.RecognitionConfig{
		Encoding:              speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:       16000,
		AudioChannelCount:     1,
		Model:                 cfg.Model,
		EnableWordTimeOffsets: true,
		EnableWordConfidence:  true,
	}
	lang := strings.TrimSpace(cfg.Language)
	if lang == "" || strings.EqualFold(lang, "auto") {
		rc.LanguageCode = "en-US"
		rc.AlternativeLanguageCodes = autoDetectAlternatives
	} else {
		rc.LanguageCode = lang
	}
	return rc
}

func parseRecognizeResponse(resp *speechpb.LongRunningRecognizeResponse) *TranscriptResult {
	out := &TranscriptResult{Lang: "und", Words: []domain.Word{}}
	if resp == nil || len(resp.Results) == 0 {
		return out
	}

	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		if out.Lang == "und" && r.LanguageCode != "" {
			out.Lang = normalizeLang(r.LanguageCode)
		}
		for _, w := range r.Alternatives[0].Words {
			if w == nil || strings.TrimSpace(w.Word) == "" {
				continue
			}
			out.Words = append(out.Words, domain.Word{
				Word:       w.Word,
				StartS:     durToSec(w.StartTime),
				EndS:       durToSec(w.EndTime),
				Confidence: float64(w.Confidence),
			})
		}
	}

	if len(out.Words) == 0 {
		out.Lang = "und"
	}
	return out
}

// normalizeLang reduces a BCP-47 code to its primary subtag ("en-US" -> "en").
func normalizeLang(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.Index(code, "-"); i > 0 {
		code = code[:i]
	}
	if code == "" {
		return "und"
	}
	return code
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}

func (s *speechService) retryLR(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == s.maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}
