// Package pdfcpu implements engine.Manipulator and engine.Renderer on top of
// github.com/pdfcpu/pdfcpu. Images and text are embedded as page stamps
// anchored at their bottom-left corner; merging concatenates page trees.
package pdfcpu

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // stamp decoders
	_ "image/png"
	"io"
	"math"
	"strconv"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"

	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/engine"
	"github.com/wudi/pdfcompose/observability"
)

// Config controls the pdfcpu engine. The zero value uses standard 14 fonts
// and relaxed validation without touching the pdfcpu config directory.
type Config struct {
	// UserFonts stamps text with fonts installed into the pdfcpu config
	// directory (pdfcpu fonts install) instead of the standard 14 fallbacks.
	UserFonts bool
	// StrictValidation switches pdfcpu from relaxed to strict validation.
	StrictValidation bool
	Logger           observability.Logger
	Tracer           observability.Tracer
}

// Engine is safe for sequential use; each call gets its own pdfcpu
// configuration.
type Engine struct {
	cfg  Config
	base model.Configuration
	log  observability.Logger
}

var (
	_ engine.Manipulator = (*Engine)(nil)
	_ engine.Renderer    = (*Engine)(nil)
	_ engine.PageCounter = (*Engine)(nil)
)

func New(cfg Config) *Engine {
	if !cfg.UserFonts {
		pdfapi.DisableConfigDir()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	base := model.NewDefaultConfiguration()
	base.ValidationMode = model.ValidationRelaxed
	if cfg.StrictValidation {
		base.ValidationMode = model.ValidationStrict
	}
	return &Engine{cfg: cfg, base: *base, log: observability.OrNop(cfg.Logger)}
}

func (e *Engine) conf() *model.Configuration {
	c := e.base
	return &c
}

// PageCount reports the number of pages in pdf.
func (e *Engine) PageCount(ctx context.Context, pdf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := pdfapi.PageCount(bytes.NewReader(pdf), e.conf())
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}

func (e *Engine) checkPage(ctx context.Context, pdf []byte, pageIndex int) error {
	n, err := e.PageCount(ctx, pdf)
	if err != nil {
		return err
	}
	if pageIndex < 0 || pageIndex >= n {
		return fmt.Errorf("%w: %d of %d", engine.ErrPageOutOfRange, pageIndex, n)
	}
	return nil
}

// EmbedImage stamps img onto the page with its lower-left corner at
// (at.X, at.Y). pdfcpu scales stamps uniformly, so the scale comes from
// at.Width; callers keep Height on the same aspect ratio.
func (e *Engine) EmbedImage(ctx context.Context, pdf, img []byte, pageIndex int, at engine.Rect) (out []byte, err error) {
	ctx, span := e.cfg.Tracer.StartSpan(ctx, observability.SpanEmbedImage)
	defer func() { finish(span, err) }()

	if err := e.checkPage(ctx, pdf, pageIndex); err != nil {
		return nil, fmt.Errorf("%w: embed image: %w", engine.ErrAssemblyFailure, err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %w", engine.ErrAssemblyFailure, err)
	}
	if cfg.Width <= 0 || !(at.Width > 0) || !(at.Height > 0) {
		return nil, fmt.Errorf("%w: empty image placement", engine.ErrAssemblyFailure)
	}
	scale := at.Width / float64(cfg.Width)
	if hs := at.Height / float64(cfg.Height); math.Abs(hs-scale) > 1e-3*scale {
		e.log.Warn("image aspect ratio not preserved, using width scale",
			observability.Float("width_scale", scale), observability.Float("height_scale", hs))
	}

	desc := fmt.Sprintf("pos:bl, off:%s %s, rot:0, scale:%s abs, opacity:1",
		num(at.X), num(at.Y), num(scale))
	wm, err := pdfapi.ImageWatermarkForReader(bytes.NewReader(img), desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("%w: image stamp: %w", engine.ErrAssemblyFailure, err)
	}
	out, err = e.stamp(ctx, pdf, pageIndex, wm)
	if err != nil {
		return nil, err
	}
	e.log.Debug("image embedded",
		observability.Int("page", pageIndex),
		observability.Float("x", at.X), observability.Float("y", at.Y),
		observability.Float("scale", scale))
	return out, nil
}

// EmbedText stamps text as a single block whose lower-left corner is at
// (x, y).
func (e *Engine) EmbedText(ctx context.Context, pdf []byte, text string, pageIndex int, x, y float64, style engine.TextStyle) (out []byte, err error) {
	ctx, span := e.cfg.Tracer.StartSpan(ctx, observability.SpanEmbedText)
	defer func() { finish(span, err) }()

	if err := e.checkPage(ctx, pdf, pageIndex); err != nil {
		return nil, fmt.Errorf("%w: embed text: %w", engine.ErrAssemblyFailure, err)
	}
	desc := fmt.Sprintf("fontname:%s, points:%s, fillcolor:%s, pos:bl, off:%s %s, rot:0, scale:1 abs, opacity:1",
		style.Family.PDFFont(e.cfg.UserFonts), num(style.FontSize), style.Color.Hex(), num(x), num(y))
	wm, err := pdfapi.TextWatermark(text, desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("%w: text stamp: %w", engine.ErrAssemblyFailure, err)
	}
	out, err = e.stamp(ctx, pdf, pageIndex, wm)
	if err != nil {
		return nil, err
	}
	e.log.Debug("text embedded",
		observability.Int("page", pageIndex),
		observability.Float("x", x), observability.Float("y", y),
		observability.String("font", style.Family.PDFFont(e.cfg.UserFonts)))
	return out, nil
}

func (e *Engine) stamp(ctx context.Context, pdf []byte, pageIndex int, wm *model.Watermark) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	pages := []string{strconv.Itoa(pageIndex + 1)}
	if err := pdfapi.AddWatermarks(bytes.NewReader(pdf), &buf, pages, wm, e.conf()); err != nil {
		return nil, fmt.Errorf("%w: add stamp: %w", engine.ErrAssemblyFailure, err)
	}
	return buf.Bytes(), nil
}

// Merge concatenates the page trees of pdfs in order into a new document.
func (e *Engine) Merge(ctx context.Context, pdfs [][]byte) (out []byte, err error) {
	ctx, span := e.cfg.Tracer.StartSpan(ctx, observability.SpanMerge)
	defer func() { finish(span, err) }()
	span.SetTag("documents", len(pdfs))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	readers := make([]io.ReadSeeker, len(pdfs))
	for i, p := range pdfs {
		readers[i] = bytes.NewReader(p)
	}
	var buf bytes.Buffer
	if err := pdfapi.MergeRaw(readers, &buf, false, e.conf()); err != nil {
		return nil, fmt.Errorf("%w: merge: %w", engine.ErrAssemblyFailure, err)
	}
	e.log.Debug("documents merged", observability.Int("documents", len(pdfs)), observability.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// Geometry reads the page size from the page tree.
func (e *Engine) Geometry(ctx context.Context, pdf []byte, pageIndex int) (coords.PageGeometry, error) {
	if err := ctx.Err(); err != nil {
		return coords.PageGeometry{}, err
	}
	dims, err := pdfapi.PageDims(bytes.NewReader(pdf), e.conf())
	if err != nil {
		return coords.PageGeometry{}, fmt.Errorf("%w: page dims: %w", engine.ErrRenderFailure, err)
	}
	if pageIndex < 0 || pageIndex >= len(dims) {
		return coords.PageGeometry{}, fmt.Errorf("%w: %w: %d of %d", engine.ErrRenderFailure, engine.ErrPageOutOfRange, pageIndex, len(dims))
	}
	g := coords.PageGeometry{Width: dims[pageIndex].Width, Height: dims[pageIndex].Height}
	if err := g.Validate(); err != nil {
		return coords.PageGeometry{}, fmt.Errorf("%w: %w", engine.ErrRenderFailure, err)
	}
	return g, nil
}

// Render produces a blank page raster of the right size with a hairline
// border. pdfcpu does not rasterize content; build with the mupdf tag and use
// engine/mupdf for a full preview.
func (e *Engine) Render(ctx context.Context, pdf []byte, pageIndex int, scale float64) (r engine.Rendering, err error) {
	ctx, span := e.cfg.Tracer.StartSpan(ctx, observability.SpanRender)
	defer func() { finish(span, err) }()

	g, err := e.Geometry(ctx, pdf, pageIndex)
	if err != nil {
		return engine.Rendering{}, err
	}
	if !(scale > 0) {
		return engine.Rendering{}, fmt.Errorf("%w: scale %g", engine.ErrRenderFailure, scale)
	}
	return engine.Rendering{Geometry: g, Raster: BlankPage(g, scale)}, nil
}

var borderColor = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}

// BlankPage returns a white raster of the page at scale with a light border.
func BlankPage(g coords.PageGeometry, scale float64) *image.RGBA {
	w := max(1, int(math.Ceil(g.Width*scale)))
	h := max(1, int(math.Ceil(g.Height*scale)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	edge := image.NewUniform(borderColor)
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, w, 1), image.Rect(0, h-1, w, h),
		image.Rect(0, 0, 1, h), image.Rect(w-1, 0, w, h),
	} {
		draw.Draw(img, r, edge, image.Point{}, draw.Src)
	}
	return img
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func finish(span observability.Span, err error) {
	if err != nil {
		span.SetError(err)
	}
	span.Finish()
}
