package captions

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/yungbote/clipforge-backend/internal/domain"
)

// Caption timing and style engine. Input is the transcript's word list and a
// clip window; output is a list of text overlays with times relative to the
// clip start. Rendering into toolchain filter syntax happens elsewhere, so
// overlays carry plain, unescaped text.

const fontFile = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

// Overlay is one drawn caption. TOn/TOff are seconds from clip start;
// Persistent overlays stay on screen for the whole clip.
type Overlay struct {
	Text       string
	TOn        float64
	TOff       float64
	Persistent bool

	FontFile    string
	FontSize    int
	Color       string
	BorderW     int
	BorderColor string
	XExpr       string
	Y           int
	ShadowColor string
	ShadowX     int
	ShadowY     int
}

// Build produces the overlay list for one clip. Words outside
// [startS, endS] are ignored; captions disabled returns an empty list.
func Build(words []domain.Word, startS, endS float64, template, aspect string, enabled bool) ([]Overlay, error) {
	if !enabled {
		return []Overlay{}, nil
	}
	spec, ok := domain.AspectSpecFor(aspect)
	if !ok {
		return nil, fmt.Errorf("unknown aspect ratio %q", aspect)
	}

	clipped := clipWords(words, startS, endS)
	if len(clipped) == 0 {
		return []Overlay{}, nil
	}

	switch template {
	case domain.TemplateClean:
		return buildClean(clipped, spec.CaptionY, startS), nil
	case domain.TemplateManga:
		return buildManga(clipped, spec.CaptionY, startS), nil
	case domain.TemplateImpact:
		return buildImpact(clipped, spec.CaptionY, startS), nil
	case domain.TemplateKaraoke:
		return buildKaraoke(clipped, spec.CaptionY, startS), nil
	default:
		return nil, fmt.Errorf("unknown template %q", template)
	}
}

func clipWords(words []domain.Word, startS, endS float64) []domain.Word {
	out := []domain.Word{}
	for _, w := range words {
		if w.StartS >= startS && w.StartS <= endS {
			out = append(out, w)
		}
	}
	return out
}

const centeredX = "(w-text_w)/2"

// buildClean shows one white word at a time, subtitled style.
func buildClean(words []domain.Word, y int, start float64) []Overlay {
	out := make([]Overlay, 0, len(words))
	for _, w := range words {
		out = append(out, Overlay{
			Text:        w.Word,
			TOn:         w.StartS - start,
			TOff:        w.EndS - start,
			FontFile:    fontFile,
			FontSize:    48,
			Color:       "white",
			BorderW:     3,
			BorderColor: "black",
			XExpr:       centeredX,
			Y:           y,
			ShadowColor: "black@0.5",
			ShadowX:     2,
			ShadowY:     2,
		})
	}
	return out
}

// buildManga uses larger yellow text with a heavier shadow.
func buildManga(words []domain.Word, y int, start float64) []Overlay {
	out := make([]Overlay, 0, len(words))
	for _, w := range words {
		out = append(out, Overlay{
			Text:        w.Word,
			TOn:         w.StartS - start,
			TOff:        w.EndS - start,
			FontFile:    fontFile,
			FontSize:    56,
			Color:       "yellow",
			BorderW:     4,
			BorderColor: "black",
			XExpr:       centeredX,
			Y:           y,
			ShadowColor: "black@0.8",
			ShadowX:     3,
			ShadowY:     3,
		})
	}
	return out
}

// buildImpact emphasizes capitalized tokens and nudges each successive word
// up by 10px.
func buildImpact(words []domain.Word, y int, start float64) []Overlay {
	out := make([]Overlay, 0, len(words))
	for i, w := range words {
		size, color := 50, "white"
		if isEmphasized(w.Word) {
			size, color = 60, "red"
		}
		out = append(out, Overlay{
			Text:        w.Word,
			TOn:         w.StartS - start,
			TOff:        w.EndS - start,
			FontFile:    fontFile,
			FontSize:    size,
			Color:       color,
			BorderW:     4,
			BorderColor: "black",
			XExpr:       centeredX,
			Y:           y - i*10,
			ShadowColor: "black@0.7",
			ShadowX:     3,
			ShadowY:     3,
		})
	}
	return out
}

func isEmphasized(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}

// buildKaraoke draws the whole phrase in gray for the full clip, then layers
// a yellow copy of each word over it during that word's window.
func buildKaraoke(words []domain.Word, y int, start float64) []Overlay {
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, w.Word)
	}

	out := make([]Overlay, 0, len(words)+1)
	out = append(out, Overlay{
		Text:        strings.Join(tokens, " "),
		Persistent:  true,
		FontFile:    fontFile,
		FontSize:    48,
		Color:       "gray",
		BorderW:     3,
		BorderColor: "black",
		XExpr:       centeredX,
		Y:           y,
		ShadowColor: "black@0.5",
		ShadowX:     2,
		ShadowY:     2,
	})
	for _, w := range words {
		out = append(out, Overlay{
			Text:        w.Word,
			TOn:         w.StartS - start,
			TOff:        w.EndS - start,
			FontFile:    fontFile,
			FontSize:    48,
			Color:       "yellow",
			BorderW:     3,
			BorderColor: "black",
			XExpr:       centeredX,
			Y:           y,
			ShadowColor: "black@0.5",
			ShadowX:     2,
			ShadowY:     2,
		})
	}
	return out
}
