package media

import (
	"fmt"
	"strconv"
	"strings"
)

// Composable filter graph for the transcode step. Each filter renders to the
// toolchain's filter syntax; chains join filters with "," and the graph joins
// chains with ";". Text is escaped in exactly one place (EscapeText) so no
// caller ever hand-quotes.

type Filter interface {
	FilterString() string
}

type Chain struct {
	Input   string
	Output  string
	Filters []Filter
}

func (c Chain) String() string {
	parts := make([]string, 0, len(c.Filters))
	for _, f := range c.Filters {
		parts = append(parts, f.FilterString())
	}
	s := strings.Join(parts, ",")
	if c.Input != "" {
		s = "[" + c.Input + "]" + s
	}
	if c.Output != "" {
		s = s + "[" + c.Output + "]"
	}
	return s
}

type Graph struct {
	Chains []Chain
}

func (g Graph) String() string {
	parts := make([]string, 0, len(g.Chains))
	for _, c := range g.Chains {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ";")
}

// EscapeText quotes a literal for use inside a filter argument. Single quotes
// and colons are the two characters the expression grammar treats specially.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, "'", "\\'")
	s = strings.ReplaceAll(s, ":", "\\:")
	return s
}

type Scale struct {
	W, H int
	// ForceOriginalAspectIncrease scales to cover the canvas; pair with Crop
	// to center-cut the overflow.
	ForceOriginalAspectIncrease bool
}

func (f Scale) FilterString() string {
	s := fmt.Sprintf("scale=%d:%d", f.W, f.H)
	if f.ForceOriginalAspectIncrease {
		s += ":force_original_aspect_ratio=increase"
	}
	return s
}

type Crop struct {
	W, H int
}

func (f Crop) FilterString() string {
	return fmt.Sprintf("crop=%d:%d", f.W, f.H)
}

// ZoomPan applies a slow centered zoom ramp.
type ZoomPan struct {
	ZExpr string
	W, H  int
}

func (f ZoomPan) FilterString() string {
	return fmt.Sprintf(
		"zoompan=z='%s':d=1:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':s=%dx%d",
		f.ZExpr, f.W, f.H,
	)
}

type DrawText struct {
	Text     string
	FontFile string
	FontSize int
	// Colors accept the toolchain's color syntax including alpha, e.g.
	// "white@0.6".
	FontColor   string
	BorderW     int
	BorderColor string
	XExpr       string
	YExpr       string
	ShadowColor string
	ShadowX     int
	ShadowY     int
	// EnableExpr time-gates the overlay, e.g. "between(t,1.2,1.8)".
	EnableExpr string
}

func (f DrawText) FilterString() string {
	var b strings.Builder
	b.WriteString("drawtext=text='")
	b.WriteString(EscapeText(f.Text))
	b.WriteString("'")
	if f.FontFile != "" {
		b.WriteString(":fontfile=")
		b.WriteString(f.FontFile)
	}
	b.WriteString(":fontsize=")
	b.WriteString(strconv.Itoa(f.FontSize))
	b.WriteString(":fontcolor=")
	b.WriteString(f.FontColor)
	if f.BorderW > 0 {
		b.WriteString(":borderw=")
		b.WriteString(strconv.Itoa(f.BorderW))
		b.WriteString(":bordercolor=")
		b.WriteString(f.BorderColor)
	}
	b.WriteString(":x=")
	b.WriteString(f.XExpr)
	b.WriteString(":y=")
	b.WriteString(f.YExpr)
	if f.ShadowColor != "" {
		b.WriteString(":shadowcolor=")
		b.WriteString(f.ShadowColor)
		b.WriteString(":shadowx=")
		b.WriteString(strconv.Itoa(f.ShadowX))
		b.WriteString(":shadowy=")
		b.WriteString(strconv.Itoa(f.ShadowY))
	}
	if f.EnableExpr != "" {
		b.WriteString(":enable='")
		b.WriteString(f.EnableExpr)
		b.WriteString("'")
	}
	return b.String()
}

// Loudnorm targets an integrated loudness with fixed true-peak and range.
type Loudnorm struct {
	I   string
	TP  string
	LRA string
}

func (f Loudnorm) FilterString() string {
	return fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s", f.I, f.TP, f.LRA)
}

type AFormat struct {
	SampleRate int
}

func (f AFormat) FilterString() string {
	return fmt.Sprintf("aformat=sample_rates=%d", f.SampleRate)
}
