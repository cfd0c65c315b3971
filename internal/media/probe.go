package media

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ffprobe -print_format json output. Only the fields the analyzer consumes.

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

// ProbeInfo is the source metadata every pipeline step depends on.
type ProbeInfo struct {
	DurationS float64
	FPS       float64
	Width     int
	Height    int
}

func (p ProbeInfo) Resolution() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

func parseProbeOutput(raw []byte) (ProbeInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return ProbeInfo{}, fmt.Errorf("parse ffprobe json: %w", err)
	}

	var video *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			video = &out.Streams[i]
			break
		}
	}
	if video == nil {
		return ProbeInfo{}, fmt.Errorf("no video stream in probe output")
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil {
		return ProbeInfo{}, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}

	fps, err := parseRational(video.RFrameRate)
	if err != nil {
		return ProbeInfo{}, err
	}

	return ProbeInfo{
		DurationS: duration,
		FPS:       fps,
		Width:     video.Width,
		Height:    video.Height,
	}, nil
}

// parseRational evaluates a frame rate in the "num/den" form, e.g. "30000/1001".
func parseRational(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty frame rate")
	}
	if !strings.Contains(s, "/") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
		}
		return v, nil
	}
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	if den == 0 {
		return 0, fmt.Errorf("frame rate %q has zero denominator", s)
	}
	return num / den, nil
}
