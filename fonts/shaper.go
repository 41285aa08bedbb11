package fonts

import (
	"bytes"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

var (
	measureOnce sync.Once
	measureFace *gofont.Face
	measureErr  error
)

// previewShapingFace is Go Regular parsed for HarfBuzz shaping. The preview
// does not carry the CJK families, so all families measure with it.
func previewShapingFace() (*gofont.Face, error) {
	measureOnce.Do(func() {
		measureFace, measureErr = gofont.ParseTTF(bytes.NewReader(goregular.TTF))
	})
	return measureFace, measureErr
}

// Measure returns the approximate advance width in points of content set at
// size points with the preview face, whatever the family. It is only used
// to outline text in the preview; placement never depends on it.
func Measure(content string, size float64) (float64, error) {
	runes := []rune(content)
	if len(runes) == 0 || size <= 0 {
		return 0, nil
	}
	face, err := previewShapingFace()
	if err != nil {
		return 0, err
	}

	script := detectScript(runes)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      face,
		// 1000 units per em, normalised below
		Size:     fixed.Int26_6(1000 * 64),
		Script:   script,
		Language: language.DefaultLanguage(),
	}
	out := (&shaping.HarfbuzzShaper{}).Shape(input)

	var adv float64
	for _, g := range out.Glyphs {
		adv += float64(g.XAdvance) / 64.0
	}
	if adv < 0 {
		adv = -adv
	}
	return adv / 1000 * size, nil
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	best := language.Latin
	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > maxCount {
			maxCount = counts[script]
			best = script
		}
	}
	return best
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	}
	return language.Unknown
}
