package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/yungbote/clipforge-backend/internal/apperr"
	"github.com/yungbote/clipforge-backend/internal/captions"
	"github.com/yungbote/clipforge-backend/internal/clients/gcp"
	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/jobs/runtime"
	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/media"
	"github.com/yungbote/clipforge-backend/internal/repos"
)

// Pipeline is the renderer: for every (candidate, aspect) pair it composes a
// filter graph, transcodes the clip, and uploads the result. Any pair
// failure fails the whole render; outputs already uploaded stay in the files
// map so nothing uploaded is orphaned.
type Pipeline struct {
	log            *logger.Logger
	renderRepo     repos.RenderRepo
	videoRepo      repos.VideoRepo
	candidateRepo  repos.CandidateRepo
	transcriptRepo repos.TranscriptRepo
	tools          media.Tools
	bucket         gcp.BucketService
}

func NewPipeline(
	log *logger.Logger,
	renderRepo repos.RenderRepo,
	videoRepo repos.VideoRepo,
	candidateRepo repos.CandidateRepo,
	transcriptRepo repos.TranscriptRepo,
	tools media.Tools,
	bucket gcp.BucketService,
) *Pipeline {
	return &Pipeline{
		log:            log.With("pipeline", "render"),
		renderRepo:     renderRepo,
		videoRepo:      videoRepo,
		candidateRepo:  candidateRepo,
		transcriptRepo: transcriptRepo,
		tools:          tools,
		bucket:         bucket,
	}
}

func (p *Pipeline) Kind() string { return domain.JobKindRender }

func (p *Pipeline) Store() runtime.StatusStore { return p.renderRepo }

var errCancelled = errors.New("render cancelled")

func (p *Pipeline) Run(jc *runtime.Context) error {
	render, err := p.renderRepo.GetByID(jc.Ctx, nil, jc.ID)
	if err != nil {
		return apperr.Database(err)
	}
	if render == nil {
		return apperr.NotFound(fmt.Errorf("render %s not found", jc.ID))
	}

	params, err := domain.ParseRenderParams(render.Params)
	if err != nil {
		perr := apperr.Validation(fmt.Errorf("bad render params: %w", err))
		jc.Fail(map[string]interface{}{})
		return perr
	}

	scratch, err := p.tools.ScratchDir("render-" + jc.ID.String())
	if err != nil {
		jc.Fail(map[string]interface{}{})
		return err
	}
	defer os.RemoveAll(scratch)

	files := domain.RenderFiles{}
	err = p.renderAll(jc, params, scratch, files)
	if errors.Is(err, errCancelled) {
		jc.Log.Info("Run stopped at cancellation checkpoint")
		return nil
	}
	if err != nil {
		// Keep the keys that made it to the object store.
		jc.Fail(map[string]interface{}{"files": files.JSON()})
		return err
	}
	return nil
}

func (p *Pipeline) renderAll(jc *runtime.Context, params domain.RenderParams, scratch string, files domain.RenderFiles) error {
	candidates, err := p.candidateRepo.GetByIDs(jc.Ctx, nil, params.CandidateIDs)
	if err != nil {
		return apperr.Database(err)
	}
	byID := make(map[uuid.UUID]*domain.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	// Preserve submission order, dropping ids that no longer resolve.
	ordered := make([]*domain.Candidate, 0, len(params.CandidateIDs))
	for _, id := range params.CandidateIDs {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	total := len(ordered) * len(params.Outputs)
	if total == 0 {
		jc.Succeed(map[string]interface{}{"files": files.JSON()})
		return nil
	}

	captionsOn := params.Captions == "on"
	// One source download per video, shared across that video's candidates.
	sources := map[uuid.UUID]string{}
	wordsByVideo := map[uuid.UUID][]domain.Word{}

	completed := 0
	for _, cand := range ordered {
		sourcePath, ok := sources[cand.VideoID]
		if !ok {
			video, err := p.videoRepo.GetByID(jc.Ctx, nil, cand.VideoID)
			if err != nil {
				return apperr.Database(err)
			}
			if video == nil {
				return apperr.NotFound(fmt.Errorf("video %s not found", cand.VideoID))
			}
			sourcePath = filepath.Join(scratch, video.ID.String()+".mp4")
			if err := p.bucket.DownloadToPath(jc.Ctx, video.SourceBlobKey, sourcePath); err != nil {
				return apperr.Storage(err)
			}
			sources[cand.VideoID] = sourcePath

			words := []domain.Word{}
			if captionsOn {
				transcript, err := p.transcriptRepo.GetByVideoID(jc.Ctx, nil, cand.VideoID)
				if err != nil {
					return apperr.Database(err)
				}
				if transcript != nil {
					if words, err = domain.ParseWords(transcript.Words); err != nil {
						return apperr.Database(fmt.Errorf("corrupt transcript for video %s: %w", cand.VideoID, err))
					}
				}
			}
			wordsByVideo[cand.VideoID] = words
		}

		for _, aspect := range params.Outputs {
			if cancelled, err := jc.Cancelled(); err != nil {
				return apperr.Database(err)
			} else if cancelled {
				return errCancelled
			}

			key, err := p.renderPair(jc, params, cand, wordsByVideo[cand.VideoID], sourcePath, scratch, aspect)
			if err != nil {
				return err
			}

			if files[cand.ID.String()] == nil {
				files[cand.ID.String()] = map[string]string{}
			}
			files[cand.ID.String()][aspect] = key

			completed++
			jc.Progress(100*completed/total, map[string]interface{}{"files": files.JSON()})
		}
	}

	jc.Succeed(map[string]interface{}{"files": files.JSON()})
	jc.Log.Info("Render completed", "outputs", completed)
	return nil
}

func (p *Pipeline) renderPair(jc *runtime.Context, params domain.RenderParams, cand *domain.Candidate, words []domain.Word, sourcePath, scratch, aspect string) (string, error) {
	spec, ok := domain.AspectSpecFor(aspect)
	if !ok {
		return "", apperr.Validation(fmt.Errorf("unknown aspect ratio %q", aspect))
	}

	overlays, err := captions.Build(words, cand.StartS, cand.EndS, params.Template, aspect, params.Captions == "on")
	if err != nil {
		return "", apperr.Validation(err)
	}

	graph := buildFilterGraph(params, spec, overlays)
	outPath := filepath.Join(scratch, fmt.Sprintf("%s_%s.mp4", cand.ID, domain.SanitizeAspect(aspect)))

	err = p.tools.Transcode(jc.Ctx, media.TranscodeSpec{
		InputPath:     sourcePath,
		OutputPath:    outPath,
		StartS:        cand.StartS,
		DurationS:     cand.EndS - cand.StartS,
		FilterComplex: graph.String(),
	})
	if err != nil {
		return "", apperr.Toolchain(err)
	}

	key := domain.RenderBlobKey(jc.ID, cand.ID, aspect)
	f, err := os.Open(outPath)
	if err != nil {
		return "", apperr.Storage(err)
	}
	uploadErr := p.bucket.UploadFile(jc.Ctx, key, f)
	_ = f.Close()
	_ = os.Remove(outPath)
	if uploadErr != nil {
		return "", apperr.Storage(uploadErr)
	}
	return key, nil
}

// buildFilterGraph composes scale/crop for the aspect canvas, the manga zoom
// ramp, the watermark, the caption overlays, and loudness-normalized 48 kHz
// audio.
func buildFilterGraph(params domain.RenderParams, spec domain.AspectSpec, overlays []captions.Overlay) media.Graph {
	video := media.Chain{
		Input:  "0:v",
		Output: "v",
		Filters: []media.Filter{
			media.Scale{W: spec.W, H: spec.H, ForceOriginalAspectIncrease: true},
			media.Crop{W: spec.W, H: spec.H},
		},
	}

	if params.Template == domain.TemplateManga {
		video.Filters = append(video.Filters, media.ZoomPan{
			ZExpr: "min(zoom+0.0005,1.05)",
			W:     spec.W,
			H:     spec.H,
		})
	}

	video.Filters = append(video.Filters, media.DrawText{
		Text:        params.Watermark,
		FontSize:    24,
		FontColor:   "white@0.6",
		XExpr:       "20",
		YExpr:       "20",
		ShadowColor: "black@0.5",
		ShadowX:     2,
		ShadowY:     2,
	})

	for _, o := range overlays {
		dt := media.DrawText{
			Text:        o.Text,
			FontFile:    o.FontFile,
			FontSize:    o.FontSize,
			FontColor:   o.Color,
			BorderW:     o.BorderW,
			BorderColor: o.BorderColor,
			XExpr:       o.XExpr,
			YExpr:       strconv.Itoa(o.Y),
			ShadowColor: o.ShadowColor,
			ShadowX:     o.ShadowX,
			ShadowY:     o.ShadowY,
		}
		if !o.Persistent {
			dt.EnableExpr = fmt.Sprintf("between(t,%s,%s)", formatSeconds(o.TOn), formatSeconds(o.TOff))
		}
		video.Filters = append(video.Filters, dt)
	}

	audio := media.Chain{
		Input:  "0:a",
		Output: "a",
		Filters: []media.Filter{
			media.Loudnorm{I: params.Loudness, TP: "-1", LRA: "11"},
			media.AFormat{SampleRate: 48000},
		},
	}

	return media.Graph{Chains: []media.Chain{video, audio}}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
