package fonts

import (
	"errors"
	"testing"
)

func TestParseFamily(t *testing.T) {
	tests := []struct {
		in   string
		want Family
	}{
		{"NotoSansJP-Regular.ttf", NotoSansJP},
		{"notoserifjp-regular", NotoSerifJP},
		{"M PLUS Rounded 1c", MPLUSRounded1c},
		{"  NotoSansJP-Regular.ttf ", NotoSansJP},
	}
	for _, tc := range tests {
		got, err := ParseFamily(tc.in)
		if err != nil {
			t.Fatalf("ParseFamily(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseFamily(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseFamily("Comic Sans"); !errors.Is(err, ErrUnknownFamily) {
		t.Fatalf("expected ErrUnknownFamily, got %v", err)
	}
}

func TestPDFFont(t *testing.T) {
	if got := NotoSerifJP.PDFFont(false); got != "Times-Roman" {
		t.Fatalf("core font = %q", got)
	}
	if got := NotoSerifJP.PDFFont(true); got != "NotoSerifJP-Regular" {
		t.Fatalf("user font = %q", got)
	}
	if got := Family(42).PDFFont(true); got != "Helvetica" {
		t.Fatalf("invalid family should fall back, got %q", got)
	}
	if Family(42).Valid() || Family(-1).Valid() {
		t.Fatalf("out of range family reported valid")
	}
}

func TestMeasure(t *testing.T) {
	short, err := Measure("Hi", 24)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	long, err := Measure("Hello, World", 24)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if short <= 0 || long <= short {
		t.Fatalf("unexpected advances short=%g long=%g", short, long)
	}
	double, _ := Measure("Hello, World", 48)
	if diff := double - 2*long; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("advance should scale linearly with size: %g vs %g", double, 2*long)
	}
	if w, _ := Measure("", 24); w != 0 {
		t.Fatalf("empty content width %g", w)
	}
}

func TestPreviewFace(t *testing.T) {
	face, err := PreviewFace(12)
	if err != nil {
		t.Fatalf("preview face: %v", err)
	}
	defer face.Close()
	if face.Metrics().Height <= 0 {
		t.Fatalf("face has no height")
	}
}
