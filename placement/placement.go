// Package placement models the in-progress description of an overlay object
// being positioned on a page: either an image or a single anchored block of
// text. Positions are PDF points with the origin at the bottom-left corner.
package placement

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wudi/pdfcompose/fonts"
)

var (
	ErrInvalidDraft = errors.New("invalid placement draft")
	ErrInvalidColor = errors.New("invalid color")
)

type Kind int

const (
	KindImage Kind = iota
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindText:
		return "text"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Font size bounds for text placements, in points.
const (
	MinFontSize = 8
	MaxFontSize = 72
)

// Scale slider bounds offered to users, in percent.
const (
	MinScalePercent  = 10
	MaxScalePercent  = 300
	ScalePercentStep = 5
)

// Default draft values.
const (
	DefaultX        = 50
	DefaultY        = 50
	DefaultFontSize = 24
	DefaultText     = "Sample text"
)

// Draft is a tagged union: exactly one of Image and Text is set, matching
// Kind. X and Y are shared by both variants.
type Draft struct {
	Kind  Kind
	X, Y  float64
	Image *Image
	Text  *Text
}

// Image is the image-specific payload. Width and Height are in points;
// NaturalWidth and NaturalHeight are the decoded pixel size.
type Image struct {
	Data          []byte
	NaturalWidth  float64
	NaturalHeight float64
	Width         float64
	Height        float64
	ScalePercent  float64
}

type Text struct {
	Content  string
	FontSize float64
	Color    Color
	Family   fonts.Family
}

// Color is an RGB color with 8-bit channels.
type Color struct{ R, G, B uint8 }

var Black = Color{}

// Hex formats c as #rrggbb.
func (c Color) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// ParseColor parses #rrggbb or rrggbb.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// ColorFromInts builds a color from integer channels, each of which must be
// in [0, 255].
func ColorFromInts(r, g, b int) (Color, error) {
	for _, c := range [3]int{r, g, b} {
		if c < 0 || c > 255 {
			return Color{}, fmt.Errorf("%w: channel %d out of [0,255]", ErrInvalidColor, c)
		}
	}
	return Color{R: uint8(r), G: uint8(g), B: uint8(b)}, nil
}

// NewImage returns an image draft at the default position with its natural
// size at 100 %.
func NewImage(data []byte, naturalWidth, naturalHeight int) (Draft, error) {
	if naturalWidth <= 0 || naturalHeight <= 0 {
		return Draft{}, fmt.Errorf("%w: natural size %dx%d", ErrInvalidDraft, naturalWidth, naturalHeight)
	}
	img := &Image{
		Data:          data,
		NaturalWidth:  float64(naturalWidth),
		NaturalHeight: float64(naturalHeight),
	}
	img.SetScale(100)
	return Draft{Kind: KindImage, X: DefaultX, Y: DefaultY, Image: img}, nil
}

// NewText returns a text draft with the default content and style.
func NewText() Draft {
	return Draft{
		Kind: KindText,
		X:    DefaultX,
		Y:    DefaultY,
		Text: &Text{
			Content:  DefaultText,
			FontSize: DefaultFontSize,
			Color:    Black,
			Family:   fonts.NotoSansJP,
		},
	}
}

// SetScale sets the scale and derives both dimensions from the natural size.
func (im *Image) SetScale(percent float64) {
	im.ScalePercent = percent
	im.Width = im.NaturalWidth * percent / 100
	im.Height = im.NaturalHeight * percent / 100
}

// SetWidth derives the scale from w alone and keeps the aspect ratio.
func (im *Image) SetWidth(w float64) {
	im.ScalePercent = w / im.NaturalWidth * 100
	im.Width = w
	im.Height = w * im.NaturalHeight / im.NaturalWidth
}

// SetHeight derives the scale from h alone and keeps the aspect ratio.
func (im *Image) SetHeight(h float64) {
	im.ScalePercent = h / im.NaturalHeight * 100
	im.Height = h
	im.Width = h * im.NaturalWidth / im.NaturalHeight
}

// ResetSize returns to the natural size at 100 %.
func (im *Image) ResetSize() { im.SetScale(100) }

// Clone returns a deep copy; image bytes are shared since they are never
// modified.
func (d Draft) Clone() Draft {
	out := d
	if d.Image != nil {
		img := *d.Image
		out.Image = &img
	}
	if d.Text != nil {
		txt := *d.Text
		out.Text = &txt
	}
	return out
}

// Validate checks the tag matches the payload and the payload is in range.
func (d Draft) Validate() error {
	if !finite(d.X) || !finite(d.Y) {
		return fmt.Errorf("%w: position (%g,%g)", ErrInvalidDraft, d.X, d.Y)
	}
	switch d.Kind {
	case KindImage:
		if d.Image == nil || d.Text != nil {
			return fmt.Errorf("%w: image draft without image payload", ErrInvalidDraft)
		}
		im := d.Image
		if len(im.Data) == 0 {
			return fmt.Errorf("%w: empty image data", ErrInvalidDraft)
		}
		if !(im.Width > 0) || !(im.Height > 0) || !finite(im.Width) || !finite(im.Height) {
			return fmt.Errorf("%w: image size %gx%g", ErrInvalidDraft, im.Width, im.Height)
		}
	case KindText:
		if d.Text == nil || d.Image != nil {
			return fmt.Errorf("%w: text draft without text payload", ErrInvalidDraft)
		}
		tx := d.Text
		if tx.FontSize < MinFontSize || tx.FontSize > MaxFontSize {
			return fmt.Errorf("%w: font size %g out of [%d,%d]", ErrInvalidDraft, tx.FontSize, MinFontSize, MaxFontSize)
		}
		if !tx.Family.Valid() {
			return fmt.Errorf("%w: %v", fonts.ErrUnknownFamily, tx.Family)
		}
	default:
		return fmt.Errorf("%w: kind %v", ErrInvalidDraft, d.Kind)
	}
	return nil
}

// ClampFontSize bounds size to [MinFontSize, MaxFontSize].
func ClampFontSize(size float64) float64 {
	if math.IsNaN(size) {
		return MinFontSize
	}
	return math.Max(MinFontSize, math.Min(MaxFontSize, size))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
