package analysis

import (
	"math"
	"testing"
)

func solidFrame(r, g, b byte) []byte {
	buf := make([]byte, SceneFrameW*SceneFrameH*3)
	for i := 0; i < len(buf); i += 3 {
		buf[i] = r
		buf[i+1] = g
		buf[i+2] = b
	}
	return buf
}

func TestSceneDetectorCutTimestamp(t *testing.T) {
	d := NewSceneDetector(30)
	red := solidFrame(255, 0, 0)
	blue := solidFrame(0, 0, 255)

	d.ObserveFrame(0, red)
	d.ObserveFrame(1, red)
	d.ObserveFrame(2, blue)

	if len(d.cuts) != 1 {
		t.Fatalf("cuts: want=1 got=%d", len(d.cuts))
	}
	// Sample 2 maps to source frame 6 at 30 fps.
	want := 6.0 / 30.0
	if math.Abs(d.cuts[0]-want) > 1e-9 {
		t.Fatalf("cut timestamp: want=%v got=%v", want, d.cuts[0])
	}
}

func TestSceneDetectorNoCutOnStaticContent(t *testing.T) {
	d := NewSceneDetector(30)
	red := solidFrame(255, 0, 0)
	for i := 0; i < 10; i++ {
		d.ObserveFrame(i, red)
	}
	if len(d.cuts) != 0 {
		t.Fatalf("cuts on static content: want=0 got=%d", len(d.cuts))
	}
}

func TestBoundariesStrictlyIncreasing(t *testing.T) {
	d := NewSceneDetector(30)
	d.cuts = []float64{2.0, 2.0, 1.5, 5.0, 12.0}

	got := d.Boundaries(10.0)
	want := []float64{0.0, 2.0, 5.0, 10.0}
	if len(got) != len(want) {
		t.Fatalf("boundaries: want=%v got=%v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("boundaries[%d]: want=%v got=%v", i, want[i], got[i])
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("boundaries not strictly increasing: %v", got)
		}
	}
}

func TestBoundariesNoCuts(t *testing.T) {
	d := NewSceneDetector(30)
	got := d.Boundaries(42.5)
	if len(got) != 2 || got[0] != 0.0 || got[1] != 42.5 {
		t.Fatalf("boundaries: want=[0 42.5] got=%v", got)
	}
}

func grayFrame(v byte) []byte {
	buf := make([]byte, MotionFrameW*MotionFrameH)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestMotionScoresNormalizedPeak(t *testing.T) {
	a := NewMotionAccumulator(5)
	// Samples land at source frames 0, 5, 10 at 5 fps: seconds 0, 1, 2.
	a.ObserveFrame(0, grayFrame(0))
	a.ObserveFrame(1, grayFrame(50))  // second 1, diff 50
	a.ObserveFrame(2, grayFrame(150)) // second 2, diff 100

	got := a.Scores(3)
	if len(got) != 3 {
		t.Fatalf("scores length: want=3 got=%d", len(got))
	}
	if got[2] != 1.0 {
		t.Fatalf("peak second: want=1.0 got=%v", got[2])
	}
	if math.Abs(got[1]-0.5) > 1e-9 {
		t.Fatalf("mid second: want=0.5 got=%v", got[1])
	}
	if got[0] != 0 {
		t.Fatalf("first second has no diff sample: want=0 got=%v", got[0])
	}
}

func TestMotionScoresLengthIsFloorOfDuration(t *testing.T) {
	a := NewMotionAccumulator(30)
	if n := len(a.Scores(9.9)); n != 9 {
		t.Fatalf("length: want=9 got=%d", n)
	}
	if n := len(a.Scores(0.5)); n != 0 {
		t.Fatalf("length: want=0 got=%d", n)
	}
}

func TestAudioEnergySilenceIsZero(t *testing.T) {
	negInf := math.Inf(-1)
	got := AudioEnergyPerSecond([]float64{negInf, negInf, negInf, negInf}, 2)
	for i, v := range got {
		if v != 0 {
			t.Fatalf("silent bucket %d: want=0 got=%v", i, v)
		}
	}
}

func TestAudioEnergyNormalizedPeak(t *testing.T) {
	// -20 dB -> 0.1 linear, 0 dB -> 1.0 linear.
	got := AudioEnergyPerSecond([]float64{-20, -20, 0, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("length: want=2 got=%d", len(got))
	}
	if got[1] != 1.0 {
		t.Fatalf("peak: want=1.0 got=%v", got[1])
	}
	if math.Abs(got[0]-0.1) > 1e-9 {
		t.Fatalf("quiet second: want=0.1 got=%v", got[0])
	}
}

func TestAudioEnergyEmptyLevels(t *testing.T) {
	got := AudioEnergyPerSecond(nil, 3)
	if len(got) != 3 {
		t.Fatalf("length: want=3 got=%d", len(got))
	}
	for i, v := range got {
		if v != 0 {
			t.Fatalf("bucket %d: want=0 got=%v", i, v)
		}
	}
}

func TestMaxNormalizeAllZero(t *testing.T) {
	got := maxNormalize([]float64{0, 0, 0})
	for i, v := range got {
		if v != 0 {
			t.Fatalf("bucket %d: want=0 got=%v", i, v)
		}
	}
}
