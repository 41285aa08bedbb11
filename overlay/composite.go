package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/fonts"
)

var errMirrored = errors.New("overlay: glyph transform mirrors text")

// strokeWidth is the box stroke in points.
const strokeWidth = 2

// Render scales background to the transformer's preview size and draws o
// on top of it. The background is not modified.
func Render(background image.Image, o Overlay, t coords.Transformer) (*image.RGBA, error) {
	w, h := t.PreviewSize()
	dst := image.NewRGBA(image.Rect(0, 0, int(math.Round(w)), int(math.Round(h))))
	if background != nil {
		if background.Bounds().Size() == dst.Bounds().Size() {
			draw.Draw(dst, dst.Bounds(), background, background.Bounds().Min, draw.Src)
		} else {
			draw.ApproxBiLinear.Scale(dst, dst.Bounds(), background, background.Bounds(), draw.Src, nil)
		}
	} else {
		draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	}
	if err := Composite(dst, o, t); err != nil {
		return nil, err
	}
	return dst, nil
}

// Composite draws o onto dst, which must be in preview pixel space for t.
func Composite(dst draw.Image, o Overlay, t coords.Transformer) error {
	if o.Box != nil {
		r := screenRect(*o.Box, t)
		draw.Draw(dst, r, image.NewUniform(AccentFill), image.Point{}, draw.Over)
		stroke(dst, r, max(1, int(math.Round(strokeWidth*t.Scale()))), Accent, false)
	}
	if o.Text != nil {
		if err := drawGlyphs(dst, *o.Text, t); err != nil {
			return err
		}
	}
	if o.Outline != nil {
		stroke(dst, screenRect(*o.Outline, t), 1, Accent, true)
	}
	return drawGlyphs(dst, o.Label, t)
}

// screenRect maps a PDF rectangle to the pixel rectangle it covers.
func screenRect(r Rect, t coords.Transformer) image.Rectangle {
	m := t.ScreenMatrix()
	p0 := m.Transform(coords.Point{X: r.X, Y: r.Y})
	p1 := m.Transform(coords.Point{X: r.X + r.Width, Y: r.Y + r.Height})
	return image.Rect(
		int(math.Round(p0.X)), int(math.Round(p0.Y)),
		int(math.Round(p1.X)), int(math.Round(p1.Y)),
	).Canon()
}

func stroke(dst draw.Image, r image.Rectangle, width int, c color.Color, dashed bool) {
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	if !dashed {
		for _, edge := range []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
			image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
			image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
		} {
			draw.Draw(dst, edge.Intersect(r), src, image.Point{}, draw.Over)
		}
		return
	}
	on := func(i int) bool { return (i/4)%2 == 0 }
	for x := r.Min.X; x < r.Max.X; x++ {
		if on(x - r.Min.X) {
			dst.Set(x, r.Min.Y, c)
			dst.Set(x, r.Max.Y-1, c)
		}
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		if on(y - r.Min.Y) {
			dst.Set(r.Min.X, y, c)
			dst.Set(r.Max.X-1, y, c)
		}
	}
}

// drawGlyphs places a run with its baseline at g.Anchor. The anchor goes
// through the counter-flipped glyph matrix so the run lands upright at the
// same spot it will occupy in the PDF.
func drawGlyphs(dst draw.Image, g Glyphs, t coords.Transformer) error {
	if g.Content == "" {
		return nil
	}
	m := t.GlyphMatrix(g.Anchor.Y)
	if m.FlipsY() {
		return errMirrored
	}
	at := m.Transform(g.Anchor)

	face, err := fonts.PreviewFace(g.Size * t.Scale())
	if err != nil {
		return fmt.Errorf("overlay face: %w", err)
	}
	defer face.Close()

	d := xfont.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(g.Color),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(at.X * 64), Y: fixed.Int26_6(at.Y * 64)},
	}
	d.DrawString(g.Content)
	return nil
}
