package analysis

import "math"

// Pure signal math over frame buffers streamed out of the media toolchain.
// Nothing in this package touches a subprocess; the pipeline feeds frames in
// and reads per-second sequences out.

const (
	// SceneSampleEveryNth selects every 3rd decoded frame for scene detection.
	SceneSampleEveryNth = 3
	// SceneFrameW/H is the downsample resolution for histograms.
	SceneFrameW = 160
	SceneFrameH = 90
	// SceneThreshold is the L1 histogram distance that marks a cut.
	SceneThreshold = 0.3

	hueBins = 50
	satBins = 60

	// MotionSampleEveryNth selects every 5th frame for the motion signal.
	MotionSampleEveryNth = 5
	MotionFrameW         = 320
	MotionFrameH         = 180
)

// SceneDetector accumulates sampled RGB frames and emits cut timestamps.
// A boundary's timestamp is the sampled frame's source index over fps.
type SceneDetector struct {
	fps      float64
	everyNth int

	prevHist []float64
	cuts     []float64
}

func NewSceneDetector(fps float64) *SceneDetector {
	return &SceneDetector{fps: fps, everyNth: SceneSampleEveryNth}
}

// ObserveFrame consumes one RGB24 frame of SceneFrameW x SceneFrameH pixels.
// sampleIndex is the delivery ordinal, so the source frame index is
// sampleIndex * everyNth.
func (d *SceneDetector) ObserveFrame(sampleIndex int, rgb []byte) {
	hist := hueSatHistogram(rgb)
	if d.prevHist != nil {
		if l1Distance(hist, d.prevHist) > SceneThreshold {
			frameIndex := sampleIndex * d.everyNth
			d.cuts = append(d.cuts, float64(frameIndex)/d.fps)
		}
	}
	d.prevHist = hist
}

// Boundaries returns the ordered boundary list: 0.0, the detected cuts, and
// duration. Strictly increasing; cuts at or past the end are dropped.
func (d *SceneDetector) Boundaries(duration float64) []float64 {
	out := []float64{0.0}
	for _, t := range d.cuts {
		if t > out[len(out)-1] && t < duration {
			out = append(out, t)
		}
	}
	if duration > out[len(out)-1] {
		out = append(out, duration)
	}
	return out
}

// hueSatHistogram builds the L2-normalized 2-D hue x saturation histogram
// (hueBins x satBins) of an RGB24 buffer.
func hueSatHistogram(rgb []byte) []float64 {
	hist := make([]float64, hueBins*satBins)
	for i := 0; i+2 < len(rgb); i += 3 {
		hue, sat := rgbToHueSat(rgb[i], rgb[i+1], rgb[i+2])
		hb := int(hue * hueBins / 180.0)
		if hb >= hueBins {
			hb = hueBins - 1
		}
		sb := int(sat * satBins / 256.0)
		if sb >= satBins {
			sb = satBins - 1
		}
		hist[hb*satBins+sb]++
	}
	var norm float64
	for _, v := range hist {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range hist {
			hist[i] /= norm
		}
	}
	return hist
}

// rgbToHueSat converts one pixel to hue in [0,180) and saturation in [0,256).
func rgbToHueSat(r8, g8, b8 byte) (float64, float64) {
	r, g, b := float64(r8), float64(g8), float64(b8)
	maxc := math.Max(r, math.Max(g, b))
	minc := math.Min(r, math.Min(g, b))
	delta := maxc - minc

	var hue float64
	if delta > 0 {
		switch maxc {
		case r:
			hue = 60 * (g - b) / delta
		case g:
			hue = 60 * (2 + (b-r)/delta)
		default:
			hue = 60 * (4 + (r-g)/delta)
		}
		if hue < 0 {
			hue += 360
		}
	}
	hue /= 2 // [0,180)

	var sat float64
	if maxc > 0 {
		sat = delta / maxc * 255
	}
	return hue, sat
}

func l1Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// MotionAccumulator buckets mean-absolute-difference samples of grayscale
// frames by integer second.
type MotionAccumulator struct {
	fps      float64
	everyNth int

	prev    []byte
	sums    map[int]float64
	counts  map[int]int
	maxSeen int
}

func NewMotionAccumulator(fps float64) *MotionAccumulator {
	return &MotionAccumulator{
		fps:      fps,
		everyNth: MotionSampleEveryNth,
		sums:     map[int]float64{},
		counts:   map[int]int{},
	}
}

// ObserveFrame consumes one grayscale frame of MotionFrameW x MotionFrameH
// pixels. The frame buffer is copied; callers may reuse it.
func (a *MotionAccumulator) ObserveFrame(sampleIndex int, gray []byte) {
	if a.prev != nil {
		var sum float64
		n := len(gray)
		if len(a.prev) < n {
			n = len(a.prev)
		}
		for i := 0; i < n; i++ {
			d := int(gray[i]) - int(a.prev[i])
			if d < 0 {
				d = -d
			}
			sum += float64(d)
		}
		if n > 0 {
			frameIndex := sampleIndex * a.everyNth
			second := int(float64(frameIndex) / a.fps)
			a.sums[second] += sum / float64(n)
			a.counts[second]++
			if second > a.maxSeen {
				a.maxSeen = second
			}
		}
	}
	if a.prev == nil || len(a.prev) != len(gray) {
		a.prev = make([]byte, len(gray))
	}
	copy(a.prev, gray)
}

// Scores returns the per-second motion signal of length floor(duration),
// max-normalized to [0,1]. Seconds with no samples are zero.
func (a *MotionAccumulator) Scores(duration float64) []float64 {
	n := int(duration)
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	for sec, sum := range a.sums {
		if sec >= 0 && sec < n {
			out[sec] = sum / float64(a.counts[sec])
		}
	}
	return maxNormalize(out)
}

// AudioEnergyPerSecond converts the toolchain's per-frame RMS dB stream into
// the per-second energy signal. Levels are mapped to linear amplitude
// (10^(dB/20)) so silence contributes zero, bucketed proportionally to the
// total duration, averaged, and max-normalized.
func AudioEnergyPerSecond(levelsDB []float64, duration float64) []float64 {
	n := int(duration)
	if n <= 0 || len(levelsDB) == 0 {
		return make([]float64, max0(n))
	}

	linear := make([]float64, len(levelsDB))
	for i, db := range levelsDB {
		if math.IsInf(db, -1) || math.IsNaN(db) {
			continue
		}
		linear[i] = math.Pow(10, db/20)
	}

	perSecond := float64(len(linear)) / duration
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		lo := int(float64(i) * perSecond)
		hi := int(float64(i+1) * perSecond)
		if hi > len(linear) {
			hi = len(linear)
		}
		if lo >= hi {
			continue
		}
		var sum float64
		for _, v := range linear[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return maxNormalize(out)
}

// maxNormalize divides by the maximum in place. All-zero input stays zero,
// so a positive signal always peaks at exactly 1.0.
func maxNormalize(vals []float64) []float64 {
	var max float64
	for _, v := range vals {
		if v > max {
			max = v
		}
	}
	if max > 0 {
		for i := range vals {
			vals[i] /= max
		}
	}
	return vals
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
