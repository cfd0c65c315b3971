package analysis

import (
	"sort"
	"strings"

	"github.com/yungbote/clipforge-backend/internal/domain"
)

// Candidate enumeration and scoring. Deterministic: enumeration order fixes
// the freshness accumulator, and the final sort breaks score ties by earlier
// start.

// "what" sits in both sets, so it earns the hook and question bonuses at once.
var hookWords = map[string]bool{
	"wait": true, "hey": true, "no": true, "stop": true,
	"what": true, "now": true, "look": true, "watch": true,
}

var questionWords = map[string]bool{
	"who": true, "what": true, "where": true,
	"when": true, "why": true, "how": true,
}

// Features are the five scoring axes, each in [0,1].
type Features struct {
	SpeechHook     float64 `json:"speech_hook"`
	Motion         float64 `json:"motion"`
	AudioPeak      float64 `json:"audio_peak"`
	KeywordMatch   float64 `json:"keyword_match"`
	SceneFreshness float64 `json:"scene_freshness"`
}

type ScoredCandidate struct {
	StartS   float64
	EndS     float64
	Score    float64
	Features Features
}

type GenerateInput struct {
	Boundaries  []float64
	Motion      []float64
	AudioEnergy []float64
	Words       []domain.Word
	Duration    float64
	Config      domain.AnalysisConfig
}

// GenerateCandidates enumerates intervals from adjacent scene boundaries,
// scores each, and returns the top max_candidates sorted by score descending.
func GenerateCandidates(in GenerateInput) []ScoredCandidate {
	cfg := in.Config
	trials := []float64{cfg.TargetS, cfg.ClipMinS, cfg.ClipMaxS}

	candidates := []ScoredCandidate{}
	accepted := [][2]float64{}

	for i := 0; i+1 < len(in.Boundaries); i++ {
		a := in.Boundaries[i]
		sceneEnd := in.Boundaries[i+1]

		for _, trial := range trials {
			b := a + trial
			if sceneEnd < b {
				b = sceneEnd
			}
			if in.Duration < b {
				b = in.Duration
			}
			if b-a < cfg.ClipMinS {
				continue
			}

			feats := scoreInterval(a, b, in, accepted)
			score := cfg.Weights.SpeechHook*feats.SpeechHook +
				cfg.Weights.Motion*feats.Motion +
				cfg.Weights.AudioPeak*feats.AudioPeak +
				cfg.Weights.KeywordMatch*feats.KeywordMatch +
				cfg.Weights.SceneFreshness*feats.SceneFreshness

			candidates = append(candidates, ScoredCandidate{
				StartS:   a,
				EndS:     b,
				Score:    score,
				Features: feats,
			})
			accepted = append(accepted, [2]float64{a, b})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].StartS < candidates[j].StartS
	})

	maxC := cfg.MaxCandidates
	if maxC <= 0 {
		maxC = 20
	}
	if len(candidates) > maxC {
		candidates = candidates[:maxC]
	}
	return candidates
}

func scoreInterval(a, b float64, in GenerateInput, accepted [][2]float64) Features {
	return Features{
		SpeechHook:     speechHookScore(in.Words, a, b),
		Motion:         windowMean(in.Motion, a, b),
		AudioPeak:      windowMean(in.AudioEnergy, a, b),
		KeywordMatch:   keywordMatchScore(in.Words, in.Config.Keywords, a, b),
		SceneFreshness: freshnessScore(a, b, accepted),
	}
}

// speechHookScore rewards attention-grabbing speech inside the first 2.5
// seconds of the interval: +0.5 per hook word, +0.3 per question word, +0.2
// per exclamation, clamped to 1.0.
func speechHookScore(words []domain.Word, startS, endS float64) float64 {
	score := 0.0
	earlyWindow := startS + 2.5

	for _, w := range words {
		if w.StartS < startS || w.StartS > endS {
			continue
		}
		if w.StartS > earlyWindow {
			continue
		}
		normalized := strings.Trim(strings.ToLower(w.Word), ".,!?")
		if hookWords[normalized] {
			score += 0.5
		}
		if questionWords[normalized] {
			score += 0.3
		}
		if strings.HasSuffix(w.Word, "!") {
			score += 0.2
		}
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// windowMean averages signal[floor(a):floor(b)], clamped to the signal's
// bounds. Empty windows score zero.
func windowMean(signal []float64, a, b float64) float64 {
	lo := int(a)
	hi := int(b)
	if lo < 0 {
		lo = 0
	}
	if hi > len(signal) {
		hi = len(signal)
	}
	if lo >= hi {
		return 0
	}
	var sum float64
	for _, v := range signal[lo:hi] {
		sum += v
	}
	return sum / float64(hi-lo)
}

func keywordMatchScore(words []domain.Word, keywords []string, a, b float64) float64 {
	if len(keywords) == 0 {
		return 0
	}
	segment := []string{}
	for _, w := range words {
		if w.StartS >= a && w.StartS <= b {
			segment = append(segment, strings.ToLower(w.Word))
		}
	}
	joined := strings.Join(segment, " ")

	matched := 0
	for _, kw := range keywords {
		if strings.Contains(joined, strings.ToLower(kw)) {
			matched++
		}
	}
	score := float64(matched) / float64(len(keywords))
	if score > 1.0 {
		return 1.0
	}
	return score
}

// freshnessScore penalizes overlap with every previously accepted interval.
// Order-dependent on purpose: it is what makes enumeration reproducible.
func freshnessScore(a, b float64, accepted [][2]float64) float64 {
	var penalty float64
	for _, ex := range accepted {
		lo := a
		if ex[0] > lo {
			lo = ex[0]
		}
		hi := b
		if ex[1] < hi {
			hi = ex[1]
		}
		if hi > lo {
			penalty += (hi - lo) / (b - a)
		}
	}
	fresh := 1.0 - penalty
	if fresh < 0 {
		return 0
	}
	return fresh
}
