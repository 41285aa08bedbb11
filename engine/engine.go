// Package engine declares the external collaborators the composer relies on:
// a rendering engine that rasterizes one page for preview, and a document
// manipulation engine that embeds images and text and concatenates
// documents. Both take and return complete byte buffers.
//
// Implementations live in sub-packages (engine/pdfcpu, engine/mupdf) so the
// core never depends on a particular PDF library.
package engine

import (
	"context"
	"errors"
	"image"

	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/fonts"
	"github.com/wudi/pdfcompose/placement"
)

var (
	// ErrRenderFailure marks any failure of the rendering engine.
	ErrRenderFailure = errors.New("render failure")
	// ErrAssemblyFailure marks any failure of the document manipulation engine.
	ErrAssemblyFailure = errors.New("assembly failure")
	// ErrPageOutOfRange is wrapped by engines for a bad page index.
	ErrPageOutOfRange = errors.New("page index out of range")
)

// Rendering is one rasterized page.
type Rendering struct {
	Geometry coords.PageGeometry
	Raster   image.Image
}

// Geometer resolves the size of a page in points without rasterizing.
type Geometer interface {
	Geometry(ctx context.Context, pdf []byte, pageIndex int) (coords.PageGeometry, error)
}

// Renderer rasterizes PDF pages. Calls are independent and repeatable for
// the same (document, page).
type Renderer interface {
	Geometer
	// Render rasterizes the page at scale pixels per point.
	Render(ctx context.Context, pdf []byte, pageIndex int, scale float64) (Rendering, error)
}

// Rect is a placement rectangle in PDF points, origin bottom-left.
type Rect struct {
	X, Y, Width, Height float64
}

// TextStyle carries the text payload handed to the manipulation engine.
type TextStyle struct {
	FontSize float64
	Color    placement.Color
	Family   fonts.Family
}

// Manipulator produces new PDF byte buffers; it never modifies its inputs.
type Manipulator interface {
	EmbedImage(ctx context.Context, pdf, img []byte, pageIndex int, at Rect) ([]byte, error)
	EmbedText(ctx context.Context, pdf []byte, text string, pageIndex int, x, y float64, style TextStyle) ([]byte, error)
	Merge(ctx context.Context, pdfs [][]byte) ([]byte, error)
}

// PageCounter is implemented by engines that can report a page count.
type PageCounter interface {
	PageCount(ctx context.Context, pdf []byte) (int, error)
}
