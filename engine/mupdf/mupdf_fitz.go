//go:build mupdf && cgo

package mupdf

import (
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/engine"
	"github.com/wudi/pdfcompose/observability"
)

// Renderer rasterizes pages with MuPDF. Each call opens the document anew so
// calls stay independent.
type Renderer struct {
	tracer   observability.Tracer
	geometry engine.Geometer
}

var _ engine.Renderer = (*Renderer)(nil)

func New(tracer observability.Tracer, opts ...Option) (*Renderer, error) {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Renderer{tracer: tracer, geometry: o.geometry}, nil
}

func (r *Renderer) open(pdf []byte, pageIndex int) (*fitz.Document, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", engine.ErrRenderFailure, err)
	}
	if pageIndex < 0 || pageIndex >= doc.NumPage() {
		n := doc.NumPage()
		doc.Close()
		return nil, fmt.Errorf("%w: %w: %d of %d", engine.ErrRenderFailure, engine.ErrPageOutOfRange, pageIndex, n)
	}
	return doc, nil
}

func (r *Renderer) Geometry(ctx context.Context, pdf []byte, pageIndex int) (coords.PageGeometry, error) {
	if err := ctx.Err(); err != nil {
		return coords.PageGeometry{}, err
	}
	if r.geometry != nil {
		g, err := r.geometry.Geometry(ctx, pdf, pageIndex)
		if err != nil && !errors.Is(err, engine.ErrRenderFailure) {
			err = fmt.Errorf("%w: %w", engine.ErrRenderFailure, err)
		}
		return g, err
	}
	doc, err := r.open(pdf, pageIndex)
	if err != nil {
		return coords.PageGeometry{}, err
	}
	defer doc.Close()
	// Bound is reported at 72 dpi in whole points.
	b, err := doc.Bound(pageIndex)
	if err != nil {
		return coords.PageGeometry{}, fmt.Errorf("%w: bound: %w", engine.ErrRenderFailure, err)
	}
	g := coords.PageGeometry{Width: float64(b.Dx()), Height: float64(b.Dy())}
	if err := g.Validate(); err != nil {
		return coords.PageGeometry{}, fmt.Errorf("%w: %w", engine.ErrRenderFailure, err)
	}
	return g, nil
}

func (r *Renderer) Render(ctx context.Context, pdf []byte, pageIndex int, scale float64) (out engine.Rendering, err error) {
	ctx, span := r.tracer.StartSpan(ctx, observability.SpanRender)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()

	g, err := r.Geometry(ctx, pdf, pageIndex)
	if err != nil {
		return engine.Rendering{}, err
	}
	doc, err := r.open(pdf, pageIndex)
	if err != nil {
		return engine.Rendering{}, err
	}
	defer doc.Close()
	img, err := doc.ImageDPI(pageIndex, 72*scale)
	if err != nil {
		return engine.Rendering{}, fmt.Errorf("%w: rasterize: %w", engine.ErrRenderFailure, err)
	}
	return engine.Rendering{Geometry: g, Raster: img}, nil
}
