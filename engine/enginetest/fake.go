// Package enginetest provides in-memory engines and fixtures for tests.
//
// The fake engines work on a small line-oriented document format instead of
// real PDF so tests can inspect exactly which pages and stamps a document
// carries:
//
//	%FAKEPDF
//	page A.p1 612 792
//	stamp 0 text x=50 y=50 size=24 color=#000000 font=Helvetica "Hello"
package enginetest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"sync"

	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/engine"
)

const magic = "%FAKEPDF"

type Page struct {
	Label    string
	Geometry coords.PageGeometry
}

type Stamp struct {
	Page int
	Desc string
}

type Doc struct {
	Pages  []Page
	Stamps []Stamp
}

// NewDoc encodes a fake document with the given pages.
func NewDoc(pages ...Page) []byte {
	return Doc{Pages: pages}.Bytes()
}

// Letter is a US Letter page with the given label.
func Letter(label string) Page {
	return Page{Label: label, Geometry: coords.PageGeometry{Width: 612, Height: 792}}
}

func (d Doc) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(magic + "\n")
	for _, p := range d.Pages {
		fmt.Fprintf(&buf, "page %s %g %g\n", p.Label, p.Geometry.Width, p.Geometry.Height)
	}
	for _, s := range d.Stamps {
		fmt.Fprintf(&buf, "stamp %d %s\n", s.Page, s.Desc)
	}
	return buf.Bytes()
}

// Labels lists page labels in order.
func (d Doc) Labels() []string {
	out := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		out[i] = p.Label
	}
	return out
}

var ErrNotFake = errors.New("not a fake document")

func Parse(b []byte) (Doc, error) {
	sc := bufio.NewScanner(bytes.NewReader(b))
	if !sc.Scan() || sc.Text() != magic {
		return Doc{}, ErrNotFake
	}
	var d Doc
	for sc.Scan() {
		line := sc.Text()
		kind, rest, _ := strings.Cut(line, " ")
		switch kind {
		case "page":
			f := strings.Fields(rest)
			if len(f) != 3 {
				return Doc{}, fmt.Errorf("bad page line %q", line)
			}
			w, err1 := strconv.ParseFloat(f[1], 64)
			h, err2 := strconv.ParseFloat(f[2], 64)
			if err1 != nil || err2 != nil {
				return Doc{}, fmt.Errorf("bad page size %q", line)
			}
			d.Pages = append(d.Pages, Page{Label: f[0], Geometry: coords.PageGeometry{Width: w, Height: h}})
		case "stamp":
			idx, desc, _ := strings.Cut(rest, " ")
			n, err := strconv.Atoi(idx)
			if err != nil {
				return Doc{}, fmt.Errorf("bad stamp line %q", line)
			}
			d.Stamps = append(d.Stamps, Stamp{Page: n, Desc: desc})
		default:
			return Doc{}, fmt.Errorf("unknown line %q", line)
		}
	}
	return d, sc.Err()
}

// Call records one manipulator invocation.
type Call struct {
	Op    string
	Input []byte
	Page  int
}

// Engine is a fake Manipulator and Renderer. The zero value is ready to use.
type Engine struct {
	mu sync.Mutex
	// FailEmbed and FailMerge make the next calls fail with the given error.
	FailEmbed  error
	FailMerge  error
	FailRender error
	// Gate, when set, blocks embed calls until it receives or is closed.
	Gate chan struct{}
	// RenderGate does the same for Render. RenderCalls already counts a
	// render that is waiting on it.
	RenderGate chan struct{}

	calls       []Call
	renderCalls int
}

var (
	_ engine.Manipulator = (*Engine)(nil)
	_ engine.Renderer    = (*Engine)(nil)
	_ engine.PageCounter = (*Engine)(nil)
)

func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

func (e *Engine) RenderCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderCalls
}

func (e *Engine) record(op string, in []byte, page int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: op, Input: append([]byte(nil), in...), Page: page})
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) embed(ctx context.Context, op string, pdf []byte, pageIndex int, desc string) ([]byte, error) {
	e.record(op, pdf, pageIndex)
	if err := wait(ctx, e.Gate); err != nil {
		return nil, err
	}
	e.mu.Lock()
	fail := e.FailEmbed
	e.mu.Unlock()
	if fail != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrAssemblyFailure, fail)
	}
	d, err := Parse(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrAssemblyFailure, err)
	}
	if pageIndex < 0 || pageIndex >= len(d.Pages) {
		return nil, fmt.Errorf("%w: %w: %d", engine.ErrAssemblyFailure, engine.ErrPageOutOfRange, pageIndex)
	}
	d.Stamps = append(d.Stamps, Stamp{Page: pageIndex, Desc: desc})
	return d.Bytes(), nil
}

func (e *Engine) EmbedImage(ctx context.Context, pdf, img []byte, pageIndex int, at engine.Rect) ([]byte, error) {
	desc := fmt.Sprintf("image x=%g y=%g w=%g h=%g bytes=%d", at.X, at.Y, at.Width, at.Height, len(img))
	return e.embed(ctx, "image", pdf, pageIndex, desc)
}

func (e *Engine) EmbedText(ctx context.Context, pdf []byte, text string, pageIndex int, x, y float64, style engine.TextStyle) ([]byte, error) {
	desc := fmt.Sprintf("text x=%g y=%g size=%g color=%s font=%s %q",
		x, y, style.FontSize, style.Color.Hex(), style.Family.PDFFont(false), text)
	return e.embed(ctx, "text", pdf, pageIndex, desc)
}

func (e *Engine) Merge(ctx context.Context, pdfs [][]byte) ([]byte, error) {
	e.record("merge", nil, -1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	fail := e.FailMerge
	e.mu.Unlock()
	if fail != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrAssemblyFailure, fail)
	}
	var out Doc
	for _, p := range pdfs {
		d, err := Parse(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", engine.ErrAssemblyFailure, err)
		}
		offset := len(out.Pages)
		out.Pages = append(out.Pages, d.Pages...)
		for _, s := range d.Stamps {
			out.Stamps = append(out.Stamps, Stamp{Page: s.Page + offset, Desc: s.Desc})
		}
	}
	return out.Bytes(), nil
}

func (e *Engine) PageCount(_ context.Context, pdf []byte) (int, error) {
	d, err := Parse(pdf)
	if err != nil {
		return 0, err
	}
	return len(d.Pages), nil
}

func (e *Engine) Geometry(ctx context.Context, pdf []byte, pageIndex int) (coords.PageGeometry, error) {
	if err := ctx.Err(); err != nil {
		return coords.PageGeometry{}, err
	}
	d, err := Parse(pdf)
	if err != nil {
		return coords.PageGeometry{}, fmt.Errorf("%w: %w", engine.ErrRenderFailure, err)
	}
	if pageIndex < 0 || pageIndex >= len(d.Pages) {
		return coords.PageGeometry{}, fmt.Errorf("%w: %w: %d", engine.ErrRenderFailure, engine.ErrPageOutOfRange, pageIndex)
	}
	return d.Pages[pageIndex].Geometry, nil
}

func (e *Engine) Render(ctx context.Context, pdf []byte, pageIndex int, scale float64) (engine.Rendering, error) {
	e.mu.Lock()
	e.renderCalls++
	fail := e.FailRender
	e.mu.Unlock()
	if err := wait(ctx, e.RenderGate); err != nil {
		return engine.Rendering{}, fmt.Errorf("%w: %w", engine.ErrRenderFailure, err)
	}
	if fail != nil {
		return engine.Rendering{}, fmt.Errorf("%w: %w", engine.ErrRenderFailure, fail)
	}
	g, err := e.Geometry(ctx, pdf, pageIndex)
	if err != nil {
		return engine.Rendering{}, err
	}
	w, h := int(g.Width*scale+0.5), int(g.Height*scale+0.5)
	img := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return engine.Rendering{Geometry: g, Raster: img}, nil
}

func encodePNG(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
