package intake

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name, mime string
		want       bool
	}{
		{"a.pdf", "", true},
		{"A.PDF", "", true},
		{"blob", "application/pdf", true},
		{"blob", "application/pdf; charset=binary", true},
		{"a.txt", "text/plain", false},
		{"a.png", "image/png", false},
	}
	for _, tc := range tests {
		if got := IsPDF(tc.name, tc.mime); got != tc.want {
			t.Errorf("IsPDF(%q, %q) = %v", tc.name, tc.mime, got)
		}
	}
}

func TestAcceptPDF(t *testing.T) {
	in := New(Limits{MaxPDFBytes: 8})
	up, err := in.AcceptPDF("a.pdf", "", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if up.Name != "a.pdf" || len(up.Fingerprint) != 64 {
		t.Fatalf("unexpected upload %+v", up)
	}
	if _, err := in.AcceptPDF("a.docx", "application/msword", []byte("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := in.AcceptPDF("a.pdf", "", nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := in.AcceptPDF("a.pdf", "", []byte("%PDF-1.7 too long")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestAcceptImage(t *testing.T) {
	var in *Intake // nil intake uses default limits
	img, err := in.AcceptImage("logo.png", "image/png", pngBytes(t, 200, 100))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if img.NaturalWidth != 200 || img.NaturalHeight != 100 || img.Format != "png" {
		t.Fatalf("unexpected image %+v", img)
	}

	var jbuf bytes.Buffer
	if err := jpeg.Encode(&jbuf, image.NewGray(image.Rect(0, 0, 30, 40)), nil); err != nil {
		t.Fatal(err)
	}
	jimg, err := in.AcceptImage("photo.jpg", "", jbuf.Bytes())
	if err != nil {
		t.Fatalf("accept jpeg: %v", err)
	}
	if jimg.NaturalWidth != 30 || jimg.NaturalHeight != 40 || jimg.Format != "jpeg" {
		t.Fatalf("unexpected jpeg %+v", jimg)
	}

	if _, err := in.AcceptImage("anim.gif", "image/gif", []byte("GIF89a")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType for gif, got %v", err)
	}
	if _, err := in.AcceptImage("fake.png", "image/png", []byte("not an image")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType for garbage, got %v", err)
	}
}

func TestImageBounds(t *testing.T) {
	in := New(Limits{MaxImageDimension: 64, MaxImagePixels: 1000})
	if _, err := in.AcceptImage("wide.png", "", pngBytes(t, 65, 1)); !errors.Is(err, ErrImageBounds) {
		t.Fatalf("expected dimension error, got %v", err)
	}
	if _, err := in.AcceptImage("big.png", "", pngBytes(t, 40, 40)); !errors.Is(err, ErrImageBounds) {
		t.Fatalf("expected pixel error, got %v", err)
	}
	if _, err := in.AcceptImage("ok.png", "", pngBytes(t, 20, 20)); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint([]byte("same"))
	if a != Fingerprint([]byte("same")) || a == Fingerprint([]byte("other")) {
		t.Fatalf("fingerprint not content-derived")
	}
}
