package fonts

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownFamily = errors.New("unknown font family")

// Family is one of the fixed set of font families text can be placed with.
type Family int

const (
	NotoSansJP Family = iota
	NotoSerifJP
	MPLUSRounded1c
)

type familyInfo struct {
	file     string // font file shipped alongside the editor
	label    string
	userFont string // PostScript name once installed into the engine
	coreFont string // standard 14 fallback
}

var families = [...]familyInfo{
	NotoSansJP:     {"NotoSansJP-Regular.ttf", "Noto Sans JP", "NotoSansJP-Regular", "Helvetica"},
	NotoSerifJP:    {"NotoSerifJP-Regular.ttf", "Noto Serif JP", "NotoSerifJP-Regular", "Times-Roman"},
	MPLUSRounded1c: {"MPLUSRounded1c-Regular.ttf", "M PLUS Rounded 1c", "MPLUSRounded1c-Regular", "Helvetica"},
}

// Families lists the supported families in display order.
func Families() []Family {
	return []Family{NotoSansJP, NotoSerifJP, MPLUSRounded1c}
}

func (f Family) Valid() bool { return f >= 0 && int(f) < len(families) }

// FileName is the font file the family is loaded from, e.g.
// "NotoSansJP-Regular.ttf".
func (f Family) FileName() string {
	if !f.Valid() {
		return ""
	}
	return families[f].file
}

func (f Family) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Family(%d)", int(f))
	}
	return families[f].label
}

// PDFFont returns the font name handed to the document manipulation engine.
// With userFonts the installed font is used, otherwise a standard 14 font
// that is always available.
func (f Family) PDFFont(userFonts bool) string {
	if !f.Valid() {
		return families[NotoSansJP].coreFont
	}
	if userFonts {
		return families[f].userFont
	}
	return families[f].coreFont
}

// ParseFamily accepts a file name, a PostScript name or a display label.
func ParseFamily(s string) (Family, error) {
	s = strings.TrimSpace(s)
	for _, f := range Families() {
		info := families[f]
		if strings.EqualFold(s, info.file) || strings.EqualFold(s, info.userFont) || strings.EqualFold(s, info.label) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, s)
}
