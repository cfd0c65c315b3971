package analyze

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/yungbote/clipforge-backend/internal/analysis"
	"github.com/yungbote/clipforge-backend/internal/apperr"
	"github.com/yungbote/clipforge-backend/internal/clients/gcp"
	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/jobs/runtime"
	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/media"
	"github.com/yungbote/clipforge-backend/internal/repos"
)

// Pipeline is the analyzer: download, probe, transcribe, extract signals,
// generate candidates, upload thumbnails. One run per analyze job.
type Pipeline struct {
	log            *logger.Logger
	jobRepo        repos.JobRepo
	videoRepo      repos.VideoRepo
	transcriptRepo repos.TranscriptRepo
	candidateRepo  repos.CandidateRepo
	tools          media.Tools
	bucket         gcp.BucketService
	speech         gcp.Speech
}

func NewPipeline(
	log *logger.Logger,
	jobRepo repos.JobRepo,
	videoRepo repos.VideoRepo,
	transcriptRepo repos.TranscriptRepo,
	candidateRepo repos.CandidateRepo,
	tools media.Tools,
	bucket gcp.BucketService,
	speech gcp.Speech,
) *Pipeline {
	return &Pipeline{
		log:            log.With("pipeline", "analyze"),
		jobRepo:        jobRepo,
		videoRepo:      videoRepo,
		transcriptRepo: transcriptRepo,
		candidateRepo:  candidateRepo,
		tools:          tools,
		bucket:         bucket,
		speech:         speech,
	}
}

func (p *Pipeline) Kind() string { return domain.JobKindAnalyze }

func (p *Pipeline) Store() runtime.StatusStore { return p.jobRepo }

// errCancelled aborts the run without failing the job; the cancelled status
// is already terminal and absorbing.
var errCancelled = errors.New("job cancelled")

func (p *Pipeline) Run(jc *runtime.Context) error {
	job, err := p.jobRepo.GetByID(jc.Ctx, nil, jc.ID)
	if err != nil {
		return apperr.Database(err)
	}
	if job == nil {
		return apperr.NotFound(fmt.Errorf("job %s not found", jc.ID))
	}

	logs := domain.ParseJobLogs(job.Logs)
	cfg := domain.DefaultAnalysisConfig()
	if logs.Config != nil {
		cfg = *logs.Config
	}

	video, err := p.videoRepo.GetByID(jc.Ctx, nil, job.VideoID)
	if err != nil {
		return p.fail(jc, logs, apperr.Database(err))
	}
	if video == nil {
		return p.fail(jc, logs, apperr.NotFound(fmt.Errorf("video %s not found", job.VideoID)))
	}

	scratch, err := p.tools.ScratchDir(video.ID.String())
	if err != nil {
		return p.fail(jc, logs, err)
	}
	// Scratch is removed on every exit path, success or failure.
	defer os.RemoveAll(scratch)

	err = p.analyze(jc, video, cfg, logs, scratch)
	if errors.Is(err, errCancelled) {
		jc.Log.Info("Run stopped at cancellation checkpoint")
		return nil
	}
	if err != nil {
		return p.fail(jc, logs, err)
	}
	return nil
}

func (p *Pipeline) analyze(jc *runtime.Context, video *domain.Video, cfg domain.AnalysisConfig, logs domain.JobLogs, scratch string) error {
	sourcePath := filepath.Join(scratch, "source.mp4")
	audioPath := filepath.Join(scratch, "audio.wav")

	if err := p.milestone(jc, logs, "downloading", 5); err != nil {
		return err
	}
	if err := p.bucket.DownloadToPath(jc.Ctx, video.SourceBlobKey, sourcePath); err != nil {
		return apperr.Storage(err)
	}

	if err := p.milestone(jc, logs, "analyzing_metadata", 10); err != nil {
		return err
	}
	probe, err := p.tools.Probe(jc.Ctx, sourcePath)
	if err != nil {
		return apperr.Toolchain(err)
	}
	// Partial results stay correct even if a later step fails, so this is
	// deliberately not rolled back.
	if err := p.videoRepo.SetProbeInfo(jc.Ctx, nil, video.ID, probe.DurationS, probe.Resolution()); err != nil {
		return apperr.Database(err)
	}

	if err := p.milestone(jc, logs, "transcribing", 20); err != nil {
		return err
	}
	words, err := p.transcribe(jc, video.ID, audioPath, sourcePath, cfg)
	if err != nil {
		return err
	}

	if err := p.milestone(jc, logs, "detecting_scenes", 40); err != nil {
		return err
	}
	detector := analysis.NewSceneDetector(probe.FPS)
	err = p.tools.SampleFrames(jc.Ctx, media.FrameSampleRequest{
		VideoPath: sourcePath,
		EveryNth:  analysis.SceneSampleEveryNth,
		Width:     analysis.SceneFrameW,
		Height:    analysis.SceneFrameH,
	}, func(i int, frame []byte) error {
		detector.ObserveFrame(i, frame)
		return nil
	})
	if err != nil {
		return apperr.Toolchain(err)
	}
	boundaries := detector.Boundaries(probe.DurationS)

	if err := p.milestone(jc, logs, "analyzing_motion", 55); err != nil {
		return err
	}
	motionAcc := analysis.NewMotionAccumulator(probe.FPS)
	err = p.tools.SampleFrames(jc.Ctx, media.FrameSampleRequest{
		VideoPath: sourcePath,
		EveryNth:  analysis.MotionSampleEveryNth,
		Width:     analysis.MotionFrameW,
		Height:    analysis.MotionFrameH,
		Gray:      true,
	}, func(i int, frame []byte) error {
		motionAcc.ObserveFrame(i, frame)
		return nil
	})
	if err != nil {
		return apperr.Toolchain(err)
	}
	motion := motionAcc.Scores(probe.DurationS)

	if err := p.milestone(jc, logs, "analyzing_audio", 70); err != nil {
		return err
	}
	levels, err := p.tools.AudioRMSLevels(jc.Ctx, audioPath)
	if err != nil {
		return apperr.Toolchain(err)
	}
	energy := analysis.AudioEnergyPerSecond(levels, probe.DurationS)

	if err := p.milestone(jc, logs, "generating_candidates", 80); err != nil {
		return err
	}
	scored := analysis.GenerateCandidates(analysis.GenerateInput{
		Boundaries:  boundaries,
		Motion:      motion,
		AudioEnergy: energy,
		Words:       words,
		Duration:    probe.DurationS,
		Config:      cfg,
	})

	if err := p.milestone(jc, logs, "creating_thumbnails", 90); err != nil {
		return err
	}
	rows, err := p.storeThumbnails(jc, video.ID, sourcePath, scratch, scored)
	if err != nil {
		return err
	}
	if _, err := p.candidateRepo.CreateBatch(jc.Ctx, nil, rows); err != nil {
		return apperr.Database(err)
	}

	logs.Step = ""
	logs.Candidates = len(rows)
	jc.Succeed(map[string]interface{}{"logs": logs.JSON()})
	jc.Log.Info("Analysis completed", "candidates", len(rows))
	return nil
}

// transcribe extracts 16 kHz mono audio, runs recognition, and persists the
// transcript. A silent track succeeds with an empty word list and language
// "und".
func (p *Pipeline) transcribe(jc *runtime.Context, videoID uuid.UUID, audioPath, sourcePath string, cfg domain.AnalysisConfig) ([]domain.Word, error) {
	if err := p.tools.ExtractAudio(jc.Ctx, sourcePath, audioPath); err != nil {
		return nil, apperr.Toolchain(err)
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, apperr.Transcription(err)
	}
	result, err := p.speech.TranscribeWAV(jc.Ctx, audio, gcp.SpeechConfig{
		Language: cfg.Language,
		Model:    cfg.SpeechModel,
	})
	if err != nil {
		return nil, apperr.Transcription(err)
	}

	transcript := &domain.Transcript{
		VideoID: videoID,
		Lang:    result.Lang,
		Words:   domain.WordsJSON(result.Words),
	}
	if _, err := p.transcriptRepo.Create(jc.Ctx, nil, transcript); err != nil {
		return nil, apperr.Database(err)
	}
	return result.Words, nil
}

// storeThumbnails extracts and uploads midpoint frames with bounded
// parallelism; each candidate row keeps its rank order from scoring.
func (p *Pipeline) storeThumbnails(jc *runtime.Context, videoID uuid.UUID, sourcePath, scratch string, scored []analysis.ScoredCandidate) ([]*domain.Candidate, error) {
	rows := make([]*domain.Candidate, len(scored))

	g, ctx := errgroup.WithContext(jc.Ctx)
	g.SetLimit(4)
	for i, c := range scored {
		g.Go(func() error {
			id := uuid.New()
			mid := (c.StartS + c.EndS) / 2
			thumbPath := filepath.Join(scratch, fmt.Sprintf("thumb_%d.jpg", i))

			if err := p.tools.ExtractFrame(ctx, sourcePath, mid, thumbPath); err != nil {
				return apperr.Toolchain(err)
			}
			f, err := os.Open(thumbPath)
			if err != nil {
				return apperr.Storage(err)
			}
			key := domain.ThumbBlobKey(videoID, id)
			uploadErr := p.bucket.UploadFile(ctx, key, f)
			_ = f.Close()
			if uploadErr != nil {
				return apperr.Storage(uploadErr)
			}

			features, _ := json.Marshal(c.Features)
			rows[i] = &domain.Candidate{
				ID:           id,
				VideoID:      videoID,
				StartS:       c.StartS,
				EndS:         c.EndS,
				Score:        c.Score,
				Features:     datatypes.JSON(features),
				ThumbBlobKey: key,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// milestone checks for cooperative cancellation, then persists the step tag
// and progress before the next sub-step begins.
func (p *Pipeline) milestone(jc *runtime.Context, logs domain.JobLogs, step string, pct int) error {
	cancelled, err := jc.Cancelled()
	if err != nil {
		return apperr.Database(err)
	}
	if cancelled {
		return errCancelled
	}
	logs.Step = step
	logs.Error = ""
	if !jc.Progress(pct, map[string]interface{}{"logs": logs.JSON()}) {
		return errCancelled
	}
	return nil
}

func (p *Pipeline) fail(jc *runtime.Context, logs domain.JobLogs, err error) error {
	logs.Error = err.Error()
	jc.Fail(map[string]interface{}{"logs": logs.JSON()})
	return err
}
