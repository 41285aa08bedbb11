//go:build mupdf && cgo

package mupdf

import (
	"context"
	"errors"
	"testing"

	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/engine"
	"github.com/wudi/pdfcompose/engine/enginetest"
)

type fixedGeometry struct {
	g   coords.PageGeometry
	err error
}

func (f fixedGeometry) Geometry(context.Context, []byte, int) (coords.PageGeometry, error) {
	return f.g, f.err
}

var a4 = coords.PageGeometry{Width: 595.28, Height: 841.89}

func TestGeometryFromOption(t *testing.T) {
	r, err := New(nil, WithGeometry(fixedGeometry{g: a4}))
	if err != nil {
		t.Fatal(err)
	}
	doc := enginetest.MinimalPDF(a4)
	ctx := context.Background()
	g, err := r.Geometry(ctx, doc, 0)
	if err != nil || g != a4 {
		t.Fatalf("geometry %+v, %v; want %+v", g, err, a4)
	}
	out, err := r.Render(ctx, doc, 0, 1)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Geometry != a4 {
		t.Fatalf("rendering geometry %+v, want %+v", out.Geometry, a4)
	}
	if b := out.Raster.Bounds(); b.Dx() < 595 || b.Dy() < 841 {
		t.Fatalf("raster %v too small", b)
	}
}

func TestGeometryOptionErrorIsRenderFailure(t *testing.T) {
	r, err := New(nil, WithGeometry(fixedGeometry{err: errors.New("broken xref")}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Geometry(context.Background(), enginetest.MinimalPDF(a4), 0); !errors.Is(err, engine.ErrRenderFailure) {
		t.Fatalf("expected ErrRenderFailure, got %v", err)
	}
}

func TestGeometryWholePointsWithoutOption(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	g, err := r.Geometry(context.Background(), enginetest.MinimalPDF(coords.PageGeometry{Width: 612, Height: 792}), 0)
	if err != nil {
		t.Fatal(err)
	}
	if g.Width != 612 || g.Height != 792 {
		t.Fatalf("geometry %+v", g)
	}
}
