package editchain

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfcompose/engine"
	"github.com/wudi/pdfcompose/engine/enginetest"
	"github.com/wudi/pdfcompose/fileset"
	"github.com/wudi/pdfcompose/placement"
)

func source(labels ...string) *fileset.Document {
	pages := make([]enginetest.Page, len(labels))
	for i, l := range labels {
		pages[i] = enginetest.Letter(l)
	}
	return fileset.NewDocument("src.pdf", enginetest.NewDoc(pages...), "")
}

func textDraft(t *testing.T, content string, x, y float64) placement.Draft {
	t.Helper()
	d := placement.NewText()
	d.X, d.Y = x, y
	d.Text.Content = content
	return d
}

func imageDraft(t *testing.T) placement.Draft {
	t.Helper()
	d, err := placement.NewImage(enginetest.PNG(200, 200), 200, 200)
	if err != nil {
		t.Fatal(err)
	}
	d.Image.SetScale(50)
	return d
}

func TestExportWithoutWorking(t *testing.T) {
	c := New(&enginetest.Engine{})
	if _, err := c.Export(); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
	if _, err := c.SetSource(source("A.p1")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Export(); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport with only a source, got %v", err)
	}
}

func TestApplyWithoutSource(t *testing.T) {
	c := New(&enginetest.Engine{})
	if err := c.ApplyPlacement(context.Background(), textDraft(t, "x", 0, 0), 0); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
}

func TestChainIsLinear(t *testing.T) {
	eng := &enginetest.Engine{}
	c := New(eng)
	src := source("A.p1")
	if _, err := c.SetSource(src); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := c.ApplyPlacement(ctx, imageDraft(t), 0); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	first, err := c.Export()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyPlacement(ctx, textDraft(t, "second", 80, 50), 0); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	calls := eng.Calls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if !bytes.Equal(calls[0].Input, src.Bytes()) {
		t.Fatalf("first placement did not start from the source")
	}
	if !bytes.Equal(calls[1].Input, first) {
		t.Fatalf("second placement did not start from the first output")
	}
}

func TestTextPlacementsCompose(t *testing.T) {
	c := New(&enginetest.Engine{})
	if _, err := c.SetSource(source("A.p1")); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := c.ApplyPlacement(ctx, textDraft(t, "Hello", 50, 50), 0); err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyPlacement(ctx, textDraft(t, "World", 80, 50), 0); err != nil {
		t.Fatal(err)
	}
	out, err := c.Export()
	if err != nil {
		t.Fatal(err)
	}
	doc, err := enginetest.Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	want := []enginetest.Stamp{
		{Page: 0, Desc: `text x=50 y=50 size=24 color=#000000 font=Helvetica "Hello"`},
		{Page: 0, Desc: `text x=80 y=50 size=24 color=#000000 font=Helvetica "World"`},
	}
	if diff := cmp.Diff(want, doc.Stamps); diff != "" {
		t.Fatalf("stamps mismatch (-want +got):\n%s", diff)
	}
}

func TestResetRestoresSource(t *testing.T) {
	c := New(&enginetest.Engine{})
	src := source("A.p1", "A.p2")
	if _, err := c.SetSource(src); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := c.ApplyPlacement(ctx, textDraft(t, "t", 10, 10), i%2); err != nil {
			t.Fatal(err)
		}
	}
	rev := c.Revision()
	if err := c.Reset(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(c.Current(), src.Bytes()) {
		t.Fatalf("current artifact is not the source after reset")
	}
	if c.HasWorking() || c.Revision() <= rev {
		t.Fatalf("reset did not clear working or bump revision")
	}
	if _, err := c.Export(); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport after reset, got %v", err)
	}
}

func TestFailureKeepsWorking(t *testing.T) {
	eng := &enginetest.Engine{}
	c := New(eng)
	if _, err := c.SetSource(source("A.p1")); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := c.ApplyPlacement(ctx, textDraft(t, "ok", 10, 10), 0); err != nil {
		t.Fatal(err)
	}
	before, _ := c.Export()
	rev := c.Revision()

	eng.FailEmbed = errors.New("stamp rejected")
	err := c.ApplyPlacement(ctx, textDraft(t, "bad", 10, 10), 0)
	if !errors.Is(err, engine.ErrAssemblyFailure) {
		t.Fatalf("expected ErrAssemblyFailure, got %v", err)
	}
	after, _ := c.Export()
	if !bytes.Equal(before, after) || c.Revision() != rev {
		t.Fatalf("failed apply changed the working artifact")
	}

	eng.FailEmbed = nil
	if err := c.ApplyPlacement(ctx, textDraft(t, "late", 10, 10), 3); !errors.Is(err, engine.ErrAssemblyFailure) {
		t.Fatalf("expected ErrAssemblyFailure for missing page, got %v", err)
	}
}

func TestInvalidDraftRejected(t *testing.T) {
	eng := &enginetest.Engine{}
	c := New(eng)
	if _, err := c.SetSource(source("A.p1")); err != nil {
		t.Fatal(err)
	}
	d := textDraft(t, "x", 0, 0)
	d.Text.FontSize = 200
	if err := c.ApplyPlacement(context.Background(), d, 0); !errors.Is(err, placement.ErrInvalidDraft) {
		t.Fatalf("expected ErrInvalidDraft, got %v", err)
	}
	if len(eng.Calls()) != 0 {
		t.Fatalf("invalid draft reached the engine")
	}
}

func TestSetSource(t *testing.T) {
	c := New(&enginetest.Engine{})
	a, b := source("A.p1"), source("A.p1")
	if changed, _ := c.SetSource(a); !changed {
		t.Fatalf("first source should change")
	}
	if err := c.ApplyPlacement(context.Background(), textDraft(t, "x", 0, 0), 0); err != nil {
		t.Fatal(err)
	}
	if changed, _ := c.SetSource(a); changed || !c.HasWorking() {
		t.Fatalf("same document must keep the working artifact")
	}
	if changed, _ := c.SetSource(b); !changed || c.HasWorking() {
		t.Fatalf("equal-content but distinct document must clear the working artifact")
	}
	if c.Source() != b {
		t.Fatalf("source not swapped")
	}
}

func TestExportReturnsCopy(t *testing.T) {
	c := New(&enginetest.Engine{})
	if _, err := c.SetSource(source("A.p1")); err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyPlacement(context.Background(), textDraft(t, "x", 0, 0), 0); err != nil {
		t.Fatal(err)
	}
	out, _ := c.Export()
	out[0] = 'X'
	again, _ := c.Export()
	if again[0] == 'X' {
		t.Fatalf("export exposed the working artifact")
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	src := source("A.p1")
	c := New(&enginetest.Engine{})
	if _, err := c.SetSource(src); err != nil {
		t.Fatal(err)
	}
	want := bytes.Clone(src.Bytes())

	cur := c.Current()
	cur[0] = 'X'
	if !bytes.Equal(src.Bytes(), want) || !bytes.Equal(c.Current(), want) {
		t.Fatalf("Current exposed the source bytes")
	}

	if err := c.ApplyPlacement(context.Background(), textDraft(t, "x", 0, 0), 0); err != nil {
		t.Fatal(err)
	}
	working := c.Current()
	working[0] = 'X'
	out, err := c.Export()
	if err != nil {
		t.Fatal(err)
	}
	if out[0] == 'X' {
		t.Fatalf("Current exposed the working artifact")
	}
}

func TestBusy(t *testing.T) {
	eng := &enginetest.Engine{Gate: make(chan struct{})}
	c := New(eng)
	if _, err := c.SetSource(source("A.p1")); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.ApplyPlacement(ctx, textDraft(t, "slow", 0, 0), 0) }()

	deadline := time.Now().Add(5 * time.Second)
	for !c.Busy() {
		if time.Now().After(deadline) {
			t.Fatalf("apply never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.ApplyPlacement(ctx, textDraft(t, "racer", 0, 0), 0); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := c.Reset(); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from reset, got %v", err)
	}
	if _, err := c.SetSource(source("B.p1")); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from set source, got %v", err)
	}

	close(eng.Gate)
	if err := <-done; err != nil {
		t.Fatalf("slow apply: %v", err)
	}
	if c.Busy() || !c.HasWorking() {
		t.Fatalf("chain not settled after apply")
	}
}
