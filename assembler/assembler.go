// Package assembler concatenates whole source documents into a new one.
package assembler

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfcompose/engine"
	"github.com/wudi/pdfcompose/fileset"
	"github.com/wudi/pdfcompose/observability"
)

// ErrInvalidInputCount is returned when fewer than two documents are given.
var ErrInvalidInputCount = errors.New("merge needs at least two documents")

type Option func(*Assembler)

func WithLogger(l observability.Logger) Option {
	return func(a *Assembler) { a.log = observability.OrNop(l) }
}

type Assembler struct {
	m   engine.Manipulator
	log observability.Logger
}

func New(m engine.Manipulator, opts ...Option) *Assembler {
	a := &Assembler{m: m, log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Merge returns a new document holding every page of docs, document by
// document and page by page, in list order. The inputs and any working
// artifact are left alone.
func (a *Assembler) Merge(ctx context.Context, docs []*fileset.Document) ([]byte, error) {
	if len(docs) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInputCount, len(docs))
	}
	in := make([][]byte, len(docs))
	total := 0
	for i, d := range docs {
		in[i] = d.Bytes()
		total += d.Size()
	}
	out, err := a.m.Merge(ctx, in)
	if err != nil {
		a.log.Error("merge failed", observability.Int("docs", len(docs)), observability.Error("err", err))
		if !errors.Is(err, engine.ErrAssemblyFailure) {
			err = fmt.Errorf("%w: %w", engine.ErrAssemblyFailure, err)
		}
		return nil, fmt.Errorf("merge %d documents: %w", len(docs), err)
	}
	a.log.Info("documents merged",
		observability.Int("docs", len(docs)),
		observability.Int("in_bytes", total),
		observability.Int("out_bytes", len(out)))
	return out, nil
}
