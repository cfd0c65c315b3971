package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/clipforge-backend/internal/logger"
)

// Tools is the glue around the external media toolchain (ffmpeg/ffprobe).
// All pixel and audio work happens out of process; this package only launches
// binaries, streams their output, and parses machine-readable results.
//
// Synchronous and deterministic. Call from worker pipelines, not request
// handlers.
type Tools interface {
	AssertReady(ctx context.Context) error

	Probe(ctx context.Context, videoPath string) (ProbeInfo, error)
	ExtractAudio(ctx context.Context, videoPath string, destPath string) error
	ExtractFrame(ctx context.Context, videoPath string, tSeconds float64, destPath string) error

	// SampleFrames decodes every req.EveryNth frame, downsampled to
	// req.Width x req.Height, and hands the raw pixel buffer to fn in decode
	// order. sampleIndex counts delivered frames (0,1,2,...); the source
	// frame index is sampleIndex * req.EveryNth. The buffer is reused
	// between calls and must not be retained.
	SampleFrames(ctx context.Context, req FrameSampleRequest, fn func(sampleIndex int, frame []byte) error) error

	// AudioRMSLevels returns the per-frame RMS level stream in dBFS. A run
	// that produces no parseable levels is an error, never an empty slice.
	AudioRMSLevels(ctx context.Context, audioPath string) ([]float64, error)

	Transcode(ctx context.Context, spec TranscodeSpec) error

	// ScratchDir creates (if needed) and returns a per-name scratch
	// directory under the work root. Callers own removal.
	ScratchDir(name string) (string, error)
}

// ErrToolchainUnavailable reports a missing binary. Distinct from ExecError,
// which reports a binary that ran and failed.
var ErrToolchainUnavailable = errors.New("media toolchain unavailable")

// ExecError carries the toolchain's stderr so failures surface the real
// reason instead of "exit status 1".
type ExecError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s failed: %v; stderr=%s", e.Tool, e.Err, truncate(e.Stderr, 2000))
}

func (e *ExecError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}

type FrameSampleRequest struct {
	VideoPath string
	EveryNth  int
	Width     int
	Height    int
	// Gray selects single-channel output; otherwise frames are RGB24.
	Gray bool
}

func (r FrameSampleRequest) bytesPerFrame() int {
	if r.Gray {
		return r.Width * r.Height
	}
	return r.Width * r.Height * 3
}

// TranscodeSpec is one clip render: seek, trim, filter, encode.
type TranscodeSpec struct {
	InputPath     string
	OutputPath    string
	StartS        float64
	DurationS     float64
	FilterComplex string
}

type tools struct {
	log *logger.Logger

	ffmpegPath  string
	ffprobePath string

	workRoot string

	defaultTimeout time.Duration
}

func New(log *logger.Logger) Tools {
	return &tools{
		log:            log.With("service", "MediaTools"),
		ffmpegPath:     "ffmpeg",
		ffprobePath:    "ffprobe",
		workRoot:       "/tmp/clipforge-media",
		defaultTimeout: 30 * time.Minute,
	}
}

func (m *tools) AssertReady(ctx context.Context) error {
	for _, bin := range []string{m.ffmpegPath, m.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: missing binary %q in PATH", ErrToolchainUnavailable, bin)
		}
	}
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return fmt.Errorf("create workRoot: %w", err)
	}
	return nil
}

func (m *tools) ScratchDir(name string) (string, error) {
	dir := filepath.Join(m.workRoot, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	return dir, nil
}

func (m *tools) Probe(ctx context.Context, videoPath string) (ProbeInfo, error) {
	if err := m.AssertReady(ctx); err != nil {
		return ProbeInfo{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return ProbeInfo{}, &ExecError{Tool: "ffprobe", Stderr: stderr.String(), Err: err}
	}
	info, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return ProbeInfo{}, &ExecError{Tool: "ffprobe", Stderr: stdout.String(), Err: err}
	}
	return info, nil
}

// ExtractAudio produces a 16 kHz mono WAV, the input contract of the
// transcript producer.
func (m *tools) ExtractAudio(ctx context.Context, videoPath string, destPath string) error {
	if err := m.AssertReady(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("mkdir dest dir: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-i", videoPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-y", destPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &ExecError{Tool: "ffmpeg", Stderr: string(out), Err: err}
	}
	if _, err := os.Stat(destPath); err != nil {
		return fmt.Errorf("audio output missing: %w", err)
	}
	return nil
}

func (m *tools) ExtractFrame(ctx context.Context, videoPath string, tSeconds float64, destPath string) error {
	if err := m.AssertReady(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("mkdir dest dir: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-ss", formatSeconds(tSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y", destPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &ExecError{Tool: "ffmpeg", Stderr: string(out), Err: err}
	}
	if _, err := os.Stat(destPath); err != nil {
		return fmt.Errorf("frame output missing: %w", err)
	}
	return nil
}

func (m *tools) SampleFrames(ctx context.Context, req FrameSampleRequest, fn func(int, []byte) error) error {
	if err := m.AssertReady(ctx); err != nil {
		return err
	}
	if req.EveryNth <= 0 {
		return fmt.Errorf("EveryNth must be positive")
	}
	if req.Width <= 0 || req.Height <= 0 {
		return fmt.Errorf("frame dimensions must be positive")
	}
	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	pixFmt := "rgb24"
	if req.Gray {
		pixFmt = "gray"
	}
	vf := fmt.Sprintf("select=not(mod(n\\,%d)),scale=%d:%d", req.EveryNth, req.Width, req.Height)

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-i", req.VideoPath,
		"-vf", vf,
		"-vsync", "0",
		"-f", "rawvideo",
		"-pix_fmt", pixFmt,
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &ExecError{Tool: "ffmpeg", Stderr: stderr.String(), Err: err}
	}

	frameSize := req.bytesPerFrame()
	buf := make([]byte, frameSize)
	idx := 0
	var cbErr error
	for {
		_, rerr := io.ReadFull(stdout, buf)
		if rerr == io.EOF {
			break
		}
		if rerr == io.ErrUnexpectedEOF {
			// Truncated tail frame; the stream ended mid-frame.
			break
		}
		if rerr != nil {
			cbErr = rerr
			break
		}
		if err := fn(idx, buf); err != nil {
			cbErr = err
			break
		}
		idx++
	}

	if cbErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return cbErr
	}
	if err := cmd.Wait(); err != nil {
		return &ExecError{Tool: "ffmpeg", Stderr: stderr.String(), Err: err}
	}
	return nil
}

const rmsMetadataKey = "lavfi.astats.Overall.RMS_level"

func (m *tools) AudioRMSLevels(ctx context.Context, audioPath string) ([]float64, error) {
	if err := m.AssertReady(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-i", audioPath,
		"-af", "astats=metadata=1:reset=1,ametadata=print:key="+rmsMetadataKey+":file=-",
		"-f", "null", "-",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &ExecError{Tool: "ffmpeg", Stderr: string(out), Err: err}
	}

	levels, err := parseRMSLevels(string(out))
	if err != nil {
		return nil, &ExecError{Tool: "ffmpeg", Stderr: string(out), Err: err}
	}
	return levels, nil
}

// parseRMSLevels pulls the metadata key/value lines out of the combined
// ffmpeg output. Zero parsed values is a parse failure, not silence: a silent
// track still emits "-inf" levels.
func parseRMSLevels(output string) ([]float64, error) {
	levels := []float64{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, rmsMetadataKey+"=") {
			continue
		}
		raw := strings.TrimPrefix(line, rmsMetadataKey+"=")
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			continue
		}
		levels = append(levels, v)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("no RMS levels parsed from toolchain output")
	}
	return levels, nil
}

func (m *tools) Transcode(ctx context.Context, spec TranscodeSpec) error {
	if err := m.AssertReady(ctx); err != nil {
		return err
	}
	if spec.InputPath == "" || spec.OutputPath == "" {
		return fmt.Errorf("transcode: input and output paths required")
	}
	if spec.DurationS <= 0 {
		return fmt.Errorf("transcode: duration must be positive")
	}
	if err := os.MkdirAll(filepath.Dir(spec.OutputPath), 0o755); err != nil {
		return fmt.Errorf("mkdir output dir: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	args := []string{
		"-ss", formatSeconds(spec.StartS),
		"-i", spec.InputPath,
		"-t", formatSeconds(spec.DurationS),
	}
	if spec.FilterComplex != "" {
		args = append(args,
			"-filter_complex", spec.FilterComplex,
			"-map", "[v]",
			"-map", "[a]",
		)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-profile:v", "high",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-c:a", "aac",
		"-b:a", "128k",
		"-y", spec.OutputPath,
	)

	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &ExecError{Tool: "ffmpeg", Stderr: string(out), Err: err}
	}
	if _, err := os.Stat(spec.OutputPath); err != nil {
		return fmt.Errorf("transcode output missing: %w", err)
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
