package assembler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfcompose/engine"
	"github.com/wudi/pdfcompose/engine/enginetest"
	"github.com/wudi/pdfcompose/fileset"
)

func doc(name string, labels ...string) *fileset.Document {
	pages := make([]enginetest.Page, len(labels))
	for i, l := range labels {
		pages[i] = enginetest.Letter(l)
	}
	return fileset.NewDocument(name, enginetest.NewDoc(pages...), "")
}

func TestMergeNeedsTwo(t *testing.T) {
	eng := &enginetest.Engine{}
	a := New(eng)
	for _, docs := range [][]*fileset.Document{nil, {doc("a.pdf", "A.p1")}} {
		if _, err := a.Merge(context.Background(), docs); !errors.Is(err, ErrInvalidInputCount) {
			t.Fatalf("%d docs: expected ErrInvalidInputCount, got %v", len(docs), err)
		}
	}
	if len(eng.Calls()) != 0 {
		t.Fatalf("engine called for an invalid merge")
	}
}

func TestMergeOrder(t *testing.T) {
	a := New(&enginetest.Engine{})
	out, err := a.Merge(context.Background(), []*fileset.Document{
		doc("a.pdf", "A.p1", "A.p2"),
		doc("b.pdf", "B.p1"),
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	merged, err := enginetest.Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A.p1", "A.p2", "B.p1"}, merged.Labels()); diff != "" {
		t.Fatalf("page order mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeFailure(t *testing.T) {
	a := New(&enginetest.Engine{FailMerge: errors.New("broken xref")})
	_, err := a.Merge(context.Background(), []*fileset.Document{doc("a.pdf", "A.p1"), doc("b.pdf", "B.p1")})
	if !errors.Is(err, engine.ErrAssemblyFailure) {
		t.Fatalf("expected ErrAssemblyFailure, got %v", err)
	}
}
