package domain

// AspectSpec is one output geometry: the render canvas plus the caption
// baseline that keeps text clear of social-app UI chrome at the bottom.
type AspectSpec struct {
	W        int
	H        int
	CaptionY int
}

var aspectSpecs = map[string]AspectSpec{
	"9:16": {W: 1080, H: 1920, CaptionY: 1620},
	"1:1":  {W: 1080, H: 1080, CaptionY: 880},
	"4:5":  {W: 1080, H: 1350, CaptionY: 1100},
}

func AspectSpecFor(aspect string) (AspectSpec, bool) {
	s, ok := aspectSpecs[aspect]
	return s, ok
}

func ValidAspect(aspect string) bool {
	_, ok := aspectSpecs[aspect]
	return ok
}

const (
	TemplateClean   = "clean"
	TemplateManga   = "manga"
	TemplateImpact  = "impact"
	TemplateKaraoke = "karaoke"
)

func ValidTemplate(t string) bool {
	switch t {
	case TemplateClean, TemplateManga, TemplateImpact, TemplateKaraoke:
		return true
	default:
		return false
	}
}
