package coords

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidGeometry = errors.New("invalid page geometry")

// Default preview bounding box in pixels.
const (
	DefaultMaxPreviewWidth  = 400
	DefaultMaxPreviewHeight = 500
)

// PageGeometry is the size of one page in points. It is resolved once per
// (document, page) and never changes afterwards.
type PageGeometry struct {
	Width  float64
	Height float64
}

func (g PageGeometry) Validate() error {
	if !(g.Width > 0) || !(g.Height > 0) || math.IsInf(g.Width, 0) || math.IsInf(g.Height, 0) {
		return fmt.Errorf("%w: %gx%g", ErrInvalidGeometry, g.Width, g.Height)
	}
	return nil
}

// DisplayScale is the largest scale at which the page fits inside a
// maxWidth x maxHeight box with its aspect ratio preserved.
func DisplayScale(g PageGeometry, maxWidth, maxHeight float64) float64 {
	return math.Min(maxWidth/g.Width, maxHeight/g.Height)
}

// Transformer maps between PDF space and preview space for one page at one
// display scale.
type Transformer struct {
	geom  PageGeometry
	scale float64
}

// NewTransformer returns a transformer for g at display scale s.
func NewTransformer(g PageGeometry, s float64) (Transformer, error) {
	if err := g.Validate(); err != nil {
		return Transformer{}, err
	}
	if !(s > 0) || math.IsInf(s, 0) {
		return Transformer{}, fmt.Errorf("invalid display scale %g", s)
	}
	return Transformer{geom: g, scale: s}, nil
}

// FitTransformer computes the display scale for the preview box and returns
// the matching transformer.
func FitTransformer(g PageGeometry, maxWidth, maxHeight float64) (Transformer, error) {
	if err := g.Validate(); err != nil {
		return Transformer{}, err
	}
	return NewTransformer(g, DisplayScale(g, maxWidth, maxHeight))
}

func (t Transformer) Geometry() PageGeometry { return t.geom }
func (t Transformer) Scale() float64         { return t.scale }

// PreviewSize is the pixel size of the rasterized page.
func (t Transformer) PreviewSize() (width, height float64) {
	return t.geom.Width * t.scale, t.geom.Height * t.scale
}

// ToScreen maps a PDF point into preview space.
func (t Transformer) ToScreen(p Point) Point {
	return Point{X: p.X * t.scale, Y: (t.geom.Height - p.Y) * t.scale}
}

// FromScreen is the inverse of ToScreen.
func (t Transformer) FromScreen(p Point) Point {
	return Point{X: p.X / t.scale, Y: t.geom.Height - p.Y/t.scale}
}

// ScreenMatrix is ToScreen as a matrix.
func (t Transformer) ScreenMatrix() Matrix {
	return OverlayFlip(t.geom).Multiply(Scale(t.scale, t.scale))
}

// OverlayFlip maps overlay space, which equals PDF space, onto a top-left
// origin surface of the same size: (x, y) -> (x, H-y).
func OverlayFlip(g PageGeometry) Matrix {
	return Translate(0, -g.Height).Multiply(Scale(1, -1))
}

// GlyphCounterFlip mirrors a glyph about the horizontal line through anchorY.
// Applied before OverlayFlip it makes the glyph upright again. anchorY must be
// the glyph's own final baseline y; any other anchor shifts the glyph
// vertically by twice the difference.
func GlyphCounterFlip(anchorY float64) Matrix {
	return Translate(0, -2*anchorY).Multiply(Scale(1, -1))
}

// GlyphMatrix is the full transform for a glyph drawn at baseline anchorY in
// overlay space, ending in preview pixels.
func (t Transformer) GlyphMatrix(anchorY float64) Matrix {
	return GlyphCounterFlip(anchorY).Multiply(t.ScreenMatrix())
}

// ClampImage keeps an object of size w x h fully on the page. When the object
// is larger than the page the upper bound collapses to 0.
func (t Transformer) ClampImage(x, y, w, h float64) (float64, float64) {
	return clamp(x, 0, math.Max(0, t.geom.Width-w)), clamp(y, 0, math.Max(0, t.geom.Height-h))
}

// ClampText bounds a text anchor to the page without subtracting the
// rendered text extent, so text near the upper edge can run off the page.
func (t Transformer) ClampText(x, y float64) (float64, float64) {
	return clamp(x, 0, t.geom.Width), clamp(y, 0, t.geom.Height)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
