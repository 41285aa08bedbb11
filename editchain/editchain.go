// Package editchain owns the working artifact: the result of applying
// confirmed placements, one after another, to the selected source document.
//
// The chain is strictly linear. Each placement is applied to the current
// artifact (the working artifact if there is one, otherwise the source) and
// its output replaces the working artifact wholesale. There is no undo beyond
// Reset, which discards every placement at once.
package editchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wudi/pdfcompose/engine"
	"github.com/wudi/pdfcompose/fileset"
	"github.com/wudi/pdfcompose/observability"
	"github.com/wudi/pdfcompose/placement"
)

var (
	ErrNothingToExport = errors.New("nothing to export")
	ErrNoSource        = errors.New("no source document")
	// ErrBusy is returned when a mutation is requested while another one is
	// still waiting on the manipulation engine.
	ErrBusy = errors.New("edit chain busy")
)

type Option func(*Chain)

func WithLogger(l observability.Logger) Option {
	return func(c *Chain) { c.log = observability.OrNop(l) }
}

type Chain struct {
	m   engine.Manipulator
	log observability.Logger

	mu       sync.Mutex
	source   *fileset.Document
	working  []byte
	revision uint64
	busy     bool
}

func New(m engine.Manipulator, opts ...Option) *Chain {
	c := &Chain{m: m, log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSource points the chain at doc. Switching to a different document
// discards the working artifact; setting the same pointer again is a no-op.
func (c *Chain) SetSource(doc *fileset.Document) (changed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false, ErrBusy
	}
	if doc == c.source {
		return false, nil
	}
	c.source = doc
	c.working = nil
	c.revision++
	name := ""
	if doc != nil {
		name = doc.Name()
	}
	c.log.Debug("source changed", observability.String("doc", name))
	return true, nil
}

func (c *Chain) Source() *fileset.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Current returns a copy of the artifact previews and new sessions work
// against: the working artifact if present, else the source bytes, else nil.
func (c *Chain) Current() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.currentLocked())
}

func (c *Chain) currentLocked() []byte {
	if c.working != nil {
		return c.working
	}
	if c.source != nil {
		return c.source.Bytes()
	}
	return nil
}

func (c *Chain) HasWorking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.working != nil
}

// Revision increases every time the current artifact changes.
func (c *Chain) Revision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision
}

func (c *Chain) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// ApplyPlacement embeds draft on pageIndex of the current artifact. On
// success the output becomes the working artifact. On failure the working
// artifact is left exactly as it was and the error wraps
// engine.ErrAssemblyFailure.
func (c *Chain) ApplyPlacement(ctx context.Context, draft placement.Draft, pageIndex int) error {
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("apply placement: %w", err)
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	current := c.currentLocked()
	if current == nil {
		c.mu.Unlock()
		return ErrNoSource
	}
	rev := c.revision
	c.busy = true
	c.mu.Unlock()

	out, err := c.apply(ctx, current, draft, pageIndex)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		c.log.Error("apply placement failed",
			observability.String("kind", draft.Kind.String()),
			observability.Int("page", pageIndex),
			observability.Error("err", err))
		if !errors.Is(err, engine.ErrAssemblyFailure) {
			err = fmt.Errorf("%w: %w", engine.ErrAssemblyFailure, err)
		}
		return fmt.Errorf("apply %s placement: %w", draft.Kind, err)
	}
	// busy blocks every other mutation, so nothing can have moved the chain
	if c.revision != rev {
		return fmt.Errorf("apply %s placement: %w: chain changed during apply", draft.Kind, engine.ErrAssemblyFailure)
	}
	c.working = out
	c.revision++
	c.log.Info("placement applied",
		observability.String("kind", draft.Kind.String()),
		observability.Int("page", pageIndex),
		observability.Float("x", draft.X),
		observability.Float("y", draft.Y),
		observability.Int("bytes", len(out)))
	return nil
}

func (c *Chain) apply(ctx context.Context, current []byte, d placement.Draft, pageIndex int) ([]byte, error) {
	switch d.Kind {
	case placement.KindImage:
		im := d.Image
		return c.m.EmbedImage(ctx, current, im.Data, pageIndex, engine.Rect{
			X: d.X, Y: d.Y, Width: im.Width, Height: im.Height,
		})
	case placement.KindText:
		tx := d.Text
		return c.m.EmbedText(ctx, current, tx.Content, pageIndex, d.X, d.Y, engine.TextStyle{
			FontSize: tx.FontSize,
			Color:    tx.Color,
			Family:   tx.Family,
		})
	}
	return nil, fmt.Errorf("%w: kind %v", placement.ErrInvalidDraft, d.Kind)
}

// Reset discards the working artifact so the current artifact is the
// untouched source again.
func (c *Chain) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if c.working == nil {
		return nil
	}
	c.working = nil
	c.revision++
	c.log.Info("working artifact reset")
	return nil
}

// Export returns a copy of the working artifact. It never changes the chain.
func (c *Chain) Export() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.working == nil {
		return nil, ErrNothingToExport
	}
	return bytes.Clone(c.working), nil
}
