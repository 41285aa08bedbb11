// Package mupdf provides a full-content engine.Renderer backed by MuPDF
// through github.com/gen2brain/go-fitz. Build with -tags mupdf and cgo
// enabled; otherwise New returns ErrNotAvailable.
package mupdf

import (
	"errors"

	"github.com/wudi/pdfcompose/engine"
)

var ErrNotAvailable = errors.New("mupdf: not available (build with -tags mupdf)")

type options struct {
	geometry engine.Geometer
}

type Option func(*options)

// WithGeometry resolves page sizes with g instead of MuPDF, whose page
// bounds are whole points. The raster still comes from MuPDF.
func WithGeometry(g engine.Geometer) Option {
	return func(o *options) { o.geometry = g }
}
