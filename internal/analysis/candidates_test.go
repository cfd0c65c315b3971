package analysis

import (
	"math"
	"reflect"
	"testing"

	"github.com/yungbote/clipforge-backend/internal/domain"
)

func testConfig() domain.AnalysisConfig {
	cfg := domain.DefaultAnalysisConfig()
	cfg.ClipMinS = 7
	cfg.ClipMaxS = 15
	cfg.TargetS = 10
	cfg.MaxCandidates = 20
	return cfg
}

func TestSpeechHookScoreCombination(t *testing.T) {
	words := []domain.Word{
		{Word: "Wait", StartS: 10.2, EndS: 10.5},
		{Word: "why", StartS: 11.0, EndS: 11.3},
	}
	got := speechHookScore(words, 10.0, 20.0)
	if math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("hook score: want=0.8 got=%v", got)
	}
}

func TestSpeechHookScoreClampedAtOne(t *testing.T) {
	words := []domain.Word{
		{Word: "Wait!", StartS: 10.1},
		{Word: "Stop!", StartS: 10.5},
		{Word: "what", StartS: 10.9},
	}
	got := speechHookScore(words, 10.0, 20.0)
	if got != 1.0 {
		t.Fatalf("hook score: want=1.0 got=%v", got)
	}
}

func TestSpeechHookScoreWordInBothSets(t *testing.T) {
	// "what" is both a hook word and a question word, so a single "what"
	// scores 0.5 + 0.3. With a trailing "?!" the exclamation bonus stacks and
	// the clamp kicks in.
	words := []domain.Word{{Word: "what", StartS: 10.2}}
	got := speechHookScore(words, 10.0, 20.0)
	if math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("hook score: want=0.8 got=%v", got)
	}

	words = []domain.Word{{Word: "what?!", StartS: 10.2}}
	if got := speechHookScore(words, 10.0, 20.0); got != 1.0 {
		t.Fatalf("hook score: want=1.0 got=%v", got)
	}
}

func TestSpeechHookScoreIgnoresLateWords(t *testing.T) {
	words := []domain.Word{
		{Word: "wait", StartS: 13.0}, // past start + 2.5
	}
	if got := speechHookScore(words, 10.0, 20.0); got != 0 {
		t.Fatalf("late hook word scored: want=0 got=%v", got)
	}
}

func TestSpeechHookScorePunctuationTrimmed(t *testing.T) {
	words := []domain.Word{{Word: "Wait!", StartS: 10.0}}
	// "wait" hook (+0.5) and trailing "!" (+0.2).
	got := speechHookScore(words, 10.0, 20.0)
	if math.Abs(got-0.7) > 1e-9 {
		t.Fatalf("hook score: want=0.7 got=%v", got)
	}
}

func TestWindowMeanClamped(t *testing.T) {
	signal := []float64{1, 2, 3, 4}
	if got := windowMean(signal, 2, 100); got != 3.5 {
		t.Fatalf("clamped mean: want=3.5 got=%v", got)
	}
	if got := windowMean(signal, 10, 20); got != 0 {
		t.Fatalf("out-of-range window: want=0 got=%v", got)
	}
	if got := windowMean(nil, 0, 5); got != 0 {
		t.Fatalf("empty signal: want=0 got=%v", got)
	}
}

func TestKeywordMatchScore(t *testing.T) {
	words := []domain.Word{
		{Word: "Gaming", StartS: 1},
		{Word: "setup", StartS: 2},
		{Word: "tour", StartS: 3},
	}
	got := keywordMatchScore(words, []string{"gaming", "keyboard"}, 0, 10)
	if got != 0.5 {
		t.Fatalf("keyword score: want=0.5 got=%v", got)
	}
	if got := keywordMatchScore(words, nil, 0, 10); got != 0 {
		t.Fatalf("no keywords: want=0 got=%v", got)
	}
}

func TestKeywordMatchSpansWordJoin(t *testing.T) {
	words := []domain.Word{
		{Word: "new", StartS: 1},
		{Word: "york", StartS: 2},
	}
	got := keywordMatchScore(words, []string{"new york"}, 0, 10)
	if got != 1.0 {
		t.Fatalf("joined phrase: want=1.0 got=%v", got)
	}
}

func TestFreshnessScoreHalfOverlap(t *testing.T) {
	accepted := [][2]float64{{0, 10}}
	got := freshnessScore(5, 15, accepted)
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("freshness: want=0.5 got=%v", got)
	}
}

func TestFreshnessScoreFloorsAtZero(t *testing.T) {
	accepted := [][2]float64{{0, 10}, {0, 10}, {0, 10}}
	if got := freshnessScore(0, 10, accepted); got != 0 {
		t.Fatalf("freshness: want=0 got=%v", got)
	}
}

func TestGenerateCandidatesRespectsMinLength(t *testing.T) {
	in := GenerateInput{
		Boundaries: []float64{0, 3, 60}, // first scene too short for any trial
		Duration:   60,
		Config:     testConfig(),
	}
	got := GenerateCandidates(in)
	for _, c := range got {
		if c.EndS-c.StartS < in.Config.ClipMinS {
			t.Fatalf("candidate below clip_min_s: [%v, %v]", c.StartS, c.EndS)
		}
	}
	for _, c := range got {
		if c.StartS == 0 && c.EndS == 3 {
			t.Fatalf("short scene produced a candidate")
		}
	}
}

func TestGenerateCandidatesSortedAndCapped(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCandidates = 3
	in := GenerateInput{
		Boundaries: []float64{0, 20, 40, 60, 80, 100},
		Motion:     ramp(100),
		Duration:   100,
		Config:     cfg,
	}
	got := GenerateCandidates(in)
	if len(got) != 3 {
		t.Fatalf("capped length: want=3 got=%d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("not sorted by score desc at %d: %v > %v", i, got[i].Score, got[i-1].Score)
		}
		if got[i].Score == got[i-1].Score && got[i].StartS < got[i-1].StartS {
			t.Fatalf("tie not broken by earlier start at %d", i)
		}
	}
}

func TestGenerateCandidatesDeterministic(t *testing.T) {
	in := GenerateInput{
		Boundaries:  []float64{0, 12, 30, 55, 90},
		Motion:      ramp(90),
		AudioEnergy: ramp(90),
		Words: []domain.Word{
			{Word: "Wait!", StartS: 0.5},
			{Word: "how", StartS: 12.8},
		},
		Duration: 90,
		Config:   testConfig(),
	}
	first := GenerateCandidates(in)
	second := GenerateCandidates(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("generation not deterministic")
	}
	if len(first) == 0 {
		t.Fatalf("expected candidates")
	}
}

func TestGenerateCandidatesEmptyTranscript(t *testing.T) {
	in := GenerateInput{
		Boundaries: []float64{0, 30},
		Duration:   30,
		Config:     testConfig(),
	}
	got := GenerateCandidates(in)
	if len(got) == 0 {
		t.Fatalf("expected candidates without transcript")
	}
	for _, c := range got {
		if c.Features.SpeechHook != 0 || c.Features.KeywordMatch != 0 {
			t.Fatalf("speech axes should be zero without words: %+v", c.Features)
		}
	}
}

func TestGenerateCandidatesClampsToSceneAndDuration(t *testing.T) {
	cfg := testConfig()
	in := GenerateInput{
		Boundaries: []float64{0, 8, 16},
		Duration:   16,
		Config:     cfg,
	}
	got := GenerateCandidates(in)
	if len(got) == 0 {
		t.Fatalf("expected candidates")
	}
	for _, c := range got {
		if c.EndS > 16 {
			t.Fatalf("candidate past duration: %v", c.EndS)
		}
		if c.StartS == 0 && c.EndS > 8 {
			t.Fatalf("candidate crosses scene boundary: [%v, %v]", c.StartS, c.EndS)
		}
	}
}

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) / float64(n)
	}
	return out
}
