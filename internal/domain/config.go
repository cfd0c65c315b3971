package domain

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ScoreWeights are the weights of the five candidate scoring axes.
type ScoreWeights struct {
	SpeechHook     float64 `json:"speech_hook" yaml:"speech_hook"`
	Motion         float64 `json:"motion" yaml:"motion"`
	AudioPeak      float64 `json:"audio_peak" yaml:"audio_peak"`
	KeywordMatch   float64 `json:"keyword_match" yaml:"keyword_match"`
	SceneFreshness float64 `json:"scene_freshness" yaml:"scene_freshness"`
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		SpeechHook:     0.30,
		Motion:         0.25,
		AudioPeak:      0.20,
		KeywordMatch:   0.15,
		SceneFreshness: 0.10,
	}
}

// AnalysisConfig is the full per-job analyzer configuration. It travels inside
// the job payload so a worker never needs process-global state.
type AnalysisConfig struct {
	ClipMinS            float64      `json:"clip_min_s" yaml:"clip_min_s"`
	ClipMaxS            float64      `json:"clip_max_s" yaml:"clip_max_s"`
	TargetS             float64      `json:"target_s" yaml:"target_s"`
	CandidatesPerMinute int          `json:"candidates_per_minute" yaml:"candidates_per_minute"`
	MaxCandidates       int          `json:"max_candidates" yaml:"max_candidates"`
	Keywords            []string     `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Weights             ScoreWeights `json:"weights" yaml:"weights"`
	SpeechModel         string       `json:"speech_model,omitempty" yaml:"speech_model,omitempty"`
	Language            string       `json:"language,omitempty" yaml:"language,omitempty"`
}

func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		ClipMinS:            7,
		ClipMaxS:            15,
		TargetS:             10,
		CandidatesPerMinute: 4,
		MaxCandidates:       20,
		Weights:             DefaultScoreWeights(),
		Language:            "auto",
	}
}

// RenderParams is the submission contract for a render job.
type RenderParams struct {
	CandidateIDs []uuid.UUID `json:"candidate_ids"`
	Template     string      `json:"template"`
	Outputs      []string    `json:"outputs"`
	Watermark    string      `json:"watermark"`
	Loudness     string      `json:"loudness"`
	Captions     string      `json:"captions"`
}

// JobLogs is the structured payload of the jobs.logs column. The source of
// truth is a heterogeneous map; here it is a fixed set of optional fields
// serialized as one JSON object.
type JobLogs struct {
	Step        string          `json:"step,omitempty"`
	Error       string          `json:"error,omitempty"`
	RetriedFrom *uuid.UUID      `json:"retried_from,omitempty"`
	Config      *AnalysisConfig `json:"config,omitempty"`
	Render      *RenderParams   `json:"render_params,omitempty"`
	Candidates  int             `json:"candidates_generated,omitempty"`
	CancelledBy string          `json:"cancelled_by,omitempty"`
}

func (l JobLogs) JSON() datatypes.JSON {
	b, _ := json.Marshal(l)
	return datatypes.JSON(b)
}

func ParseJobLogs(raw datatypes.JSON) JobLogs {
	var l JobLogs
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &l)
	}
	return l
}

// RenderFiles maps candidate id -> aspect -> blob key.
type RenderFiles map[string]map[string]string

func (f RenderFiles) JSON() datatypes.JSON {
	if f == nil {
		f = RenderFiles{}
	}
	b, _ := json.Marshal(f)
	return datatypes.JSON(b)
}

func ParseRenderFiles(raw datatypes.JSON) RenderFiles {
	out := RenderFiles{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

func (p RenderParams) JSON() datatypes.JSON {
	b, _ := json.Marshal(p)
	return datatypes.JSON(b)
}

func ParseRenderParams(raw datatypes.JSON) (RenderParams, error) {
	var p RenderParams
	err := json.Unmarshal(raw, &p)
	return p, err
}

func WordsJSON(words []Word) datatypes.JSON {
	if words == nil {
		words = []Word{}
	}
	b, _ := json.Marshal(words)
	return datatypes.JSON(b)
}

func ParseWords(raw datatypes.JSON) ([]Word, error) {
	var words []Word
	if len(raw) == 0 {
		return []Word{}, nil
	}
	if err := json.Unmarshal(raw, &words); err != nil {
		return nil, err
	}
	return words, nil
}
