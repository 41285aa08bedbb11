//go:build !mupdf || !cgo

package mupdf

import (
	"errors"
	"testing"

	"github.com/wudi/pdfcompose/engine/enginetest"
)

func TestStubUnavailable(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
	if _, err := New(nil, WithGeometry(&enginetest.Engine{})); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable with options, got %v", err)
	}
}
