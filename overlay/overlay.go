// Package overlay computes the preview overlay for a placement draft and
// composites it onto a rasterized page.
//
// Overlay geometry is kept in PDF points with a bottom-left origin, the same
// space the draft uses. Only Composite converts to preview pixels, through
// coords.Transformer, so the overlay never needs recomputing when the
// preview box changes.
package overlay

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/fonts"
	"github.com/wudi/pdfcompose/placement"
)

var ErrNoDraft = errors.New("overlay: draft has no payload")

// LabelSize is the coordinate label font size in points.
const LabelSize = 12

var (
	// Accent is the overlay stroke and label color, #0087F7.
	Accent = color.NRGBA{R: 0x00, G: 0x87, B: 0xF7, A: 0xff}
	// AccentFill fills image boxes with Accent at 30 % opacity.
	AccentFill = color.NRGBA{R: 0x00, G: 0x87, B: 0xF7, A: 0x4d}
)

// Rect is an axis-aligned rectangle in PDF points.
type Rect struct {
	X, Y, Width, Height float64
}

// Glyphs is a run of text anchored at its baseline origin.
type Glyphs struct {
	Content string
	Anchor  coords.Point
	Size    float64
	Color   color.NRGBA
}

// Overlay is everything drawn on top of the page for one draft. Box is set
// for images, Text and Outline for text.
type Overlay struct {
	Box     *Rect
	Text    *Glyphs
	Outline *Rect
	Label   Glyphs
}

// Build derives the overlay from the draft. It is cheap and is meant to be
// called on every draft edit.
func Build(d placement.Draft) (Overlay, error) {
	switch {
	case d.Kind == placement.KindImage && d.Image != nil:
		return buildImage(d), nil
	case d.Kind == placement.KindText && d.Text != nil:
		return buildText(d)
	}
	return Overlay{}, fmt.Errorf("%w: kind %v", ErrNoDraft, d.Kind)
}

func buildImage(d placement.Draft) Overlay {
	im := d.Image
	return Overlay{
		Box: &Rect{X: d.X, Y: d.Y, Width: im.Width, Height: im.Height},
		Label: Glyphs{
			Content: coordLabel(d.X, d.Y),
			Anchor:  coords.Point{X: d.X + 5, Y: d.Y + im.Height - 5},
			Size:    LabelSize,
			Color:   Accent,
		},
	}
}

func buildText(d placement.Draft) (Overlay, error) {
	tx := d.Text
	width, err := fonts.Measure(tx.Content, tx.FontSize)
	if err != nil {
		return Overlay{}, fmt.Errorf("measure text: %w", err)
	}
	return Overlay{
		Text: &Glyphs{
			Content: tx.Content,
			Anchor:  coords.Point{X: d.X, Y: d.Y},
			Size:    tx.FontSize,
			Color:   color.NRGBA{R: tx.Color.R, G: tx.Color.G, B: tx.Color.B, A: 0xff},
		},
		// descenders reach roughly a fifth of the size below the baseline
		Outline: &Rect{X: d.X, Y: d.Y - 0.2*tx.FontSize, Width: width, Height: 1.2 * tx.FontSize},
		Label: Glyphs{
			Content: coordLabel(d.X, d.Y),
			Anchor:  coords.Point{X: d.X + 5, Y: d.Y - tx.FontSize - 5},
			Size:    LabelSize,
			Color:   Accent,
		},
	}, nil
}

func coordLabel(x, y float64) string {
	return fmt.Sprintf("(%d, %d)", int(math.Round(x)), int(math.Round(y)))
}
