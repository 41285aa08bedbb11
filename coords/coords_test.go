package coords

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(1e-9, 1e-9)

var testMatrices = []Matrix{
	Identity(),
	{2, 3, 4, 5, 6, 7},
	Translate(-0.5, 0.5),
	Scale(2, -1),
	OverlayFlip(PageGeometry{Width: 612, Height: 792}),
	GlyphCounterFlip(120),
}

func TestMatrixInverse(t *testing.T) {
	for i, A := range testMatrices {
		t.Run(fmt.Sprintf("mat%d", i), func(t *testing.T) {
			Ainv, err := A.Inverse()
			if err != nil {
				t.Fatalf("inverse: %v", err)
			}
			if d := cmp.Diff(Identity(), A.Multiply(Ainv), approx); d != "" {
				t.Error(d)
			}
			if d := cmp.Diff(Identity(), Ainv.Multiply(A), approx); d != "" {
				t.Error(d)
			}
		})
	}
}

func TestMatrixSingular(t *testing.T) {
	if _, err := Scale(0, 1).Inverse(); !errors.Is(err, ErrSingular) {
		t.Fatalf("expected ErrSingular, got %v", err)
	}
}

func TestMultiplyOrder(t *testing.T) {
	// translate first, then scale
	m := Translate(10, 0).Multiply(Scale(2, 2))
	got := m.Transform(Point{X: 1, Y: 1})
	if d := cmp.Diff(Point{X: 22, Y: 2}, got, approx); d != "" {
		t.Fatal(d)
	}
}

func TestDisplayScale(t *testing.T) {
	tests := []struct {
		name string
		geom PageGeometry
		want float64
	}{
		{"letter", PageGeometry{612, 792}, 500.0 / 792},
		{"landscape", PageGeometry{842, 595}, 400.0 / 842},
		{"tall strip", PageGeometry{100, 1000}, 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DisplayScale(tc.geom, DefaultMaxPreviewWidth, DefaultMaxPreviewHeight)
			if d := cmp.Diff(tc.want, got, approx); d != "" {
				t.Fatal(d)
			}
			tr, err := NewTransformer(tc.geom, got)
			if err != nil {
				t.Fatal(err)
			}
			w, h := tr.PreviewSize()
			if w > DefaultMaxPreviewWidth+1e-9 || h > DefaultMaxPreviewHeight+1e-9 {
				t.Fatalf("preview %gx%g exceeds box", w, h)
			}
		})
	}
}

func TestToScreenFlipsY(t *testing.T) {
	tr, err := NewTransformer(PageGeometry{Width: 200, Height: 100}, 2)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct{ in, want Point }{
		{Point{0, 0}, Point{0, 200}},
		{Point{0, 100}, Point{0, 0}},
		{Point{50, 25}, Point{100, 150}},
	}
	for _, tc := range tests {
		got := tr.ToScreen(tc.in)
		if d := cmp.Diff(tc.want, got, approx); d != "" {
			t.Errorf("ToScreen(%v): %s", tc.in, d)
		}
		if d := cmp.Diff(got, tr.ScreenMatrix().Transform(tc.in), approx); d != "" {
			t.Errorf("ScreenMatrix(%v): %s", tc.in, d)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		g := PageGeometry{Width: 1 + rng.Float64()*2000, Height: 1 + rng.Float64()*2000}
		s := 0.01 + rng.Float64()*5
		tr, err := NewTransformer(g, s)
		if err != nil {
			t.Fatal(err)
		}
		p := Point{X: (rng.Float64() - 0.25) * g.Width, Y: (rng.Float64() - 0.25) * g.Height}
		got := tr.FromScreen(tr.ToScreen(p))
		if d := cmp.Diff(p, got, cmpopts.EquateApprox(1e-9, 1e-6)); d != "" {
			t.Fatalf("round trip %v at %v scale %g: %s", p, g, s, d)
		}
	}
}

func TestGlyphMatrixKeepsAnchorAndIsUpright(t *testing.T) {
	tr, err := NewTransformer(PageGeometry{Width: 612, Height: 792}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	anchor := Point{X: 50, Y: 300}
	m := tr.GlyphMatrix(anchor.Y)
	if d := cmp.Diff(tr.ToScreen(anchor), m.Transform(anchor), approx); d != "" {
		t.Fatalf("anchor moved: %s", d)
	}
	if m.FlipsY() {
		t.Fatalf("glyph transform should not mirror")
	}
	// glyph coordinates grow downwards; an ascender 10 units up must land
	// above the baseline on screen
	asc := m.Transform(Point{X: anchor.X, Y: anchor.Y - 10})
	if asc.Y >= tr.ToScreen(anchor).Y {
		t.Fatalf("glyph rendered upside down: ascender at %g, baseline at %g", asc.Y, tr.ToScreen(anchor).Y)
	}
}

func TestGlyphCounterFlipWrongAnchorDisplaces(t *testing.T) {
	tr, _ := NewTransformer(PageGeometry{Width: 612, Height: 792}, 1)
	final := 300.0
	right := tr.GlyphMatrix(final).Transform(Point{X: 0, Y: final})
	wrong := tr.GlyphMatrix(final - 40).Transform(Point{X: 0, Y: final})
	if diff := wrong.Y - right.Y; diff != 80 {
		t.Fatalf("expected 2x anchor error displacement (80), got %g", diff)
	}
}

func TestClamp(t *testing.T) {
	tr, _ := NewTransformer(PageGeometry{Width: 600, Height: 800}, 1)
	tests := []struct {
		name         string
		text         bool
		x, y, w, h   float64
		wantX, wantY float64
	}{
		{"image inside", false, 50, 50, 100, 100, 50, 50},
		{"image past right and top", false, 580, 790, 100, 100, 500, 700},
		{"image negative", false, -5, -1, 10, 10, 0, 0},
		{"image larger than page", false, 30, 30, 700, 900, 0, 0},
		{"text at top edge", true, 600, 800, 0, 0, 600, 800},
		{"text past page", true, 650, 900, 0, 0, 600, 800},
		{"text negative", true, -1, -1, 0, 0, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var x, y float64
			if tc.text {
				x, y = tr.ClampText(tc.x, tc.y)
			} else {
				x, y = tr.ClampImage(tc.x, tc.y, tc.w, tc.h)
			}
			if x != tc.wantX || y != tc.wantY {
				t.Fatalf("got (%g,%g), want (%g,%g)", x, y, tc.wantX, tc.wantY)
			}
		})
	}
}

func TestInvalidGeometry(t *testing.T) {
	for _, g := range []PageGeometry{{0, 10}, {10, -1}} {
		if _, err := FitTransformer(g, 400, 500); !errors.Is(err, ErrInvalidGeometry) {
			t.Fatalf("%v: expected ErrInvalidGeometry, got %v", g, err)
		}
	}
	if _, err := NewTransformer(PageGeometry{10, 10}, 0); err == nil {
		t.Fatalf("expected error for zero scale")
	}
}
