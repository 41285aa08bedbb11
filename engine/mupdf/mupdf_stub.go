//go:build !mupdf || !cgo

package mupdf

import (
	"context"

	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/engine"
	"github.com/wudi/pdfcompose/observability"
)

// Renderer is unavailable in this build.
type Renderer struct{}

func New(observability.Tracer, ...Option) (*Renderer, error) { return nil, ErrNotAvailable }

func (*Renderer) Geometry(context.Context, []byte, int) (coords.PageGeometry, error) {
	return coords.PageGeometry{}, ErrNotAvailable
}

func (*Renderer) Render(context.Context, []byte, int, float64) (engine.Rendering, error) {
	return engine.Rendering{}, ErrNotAvailable
}
