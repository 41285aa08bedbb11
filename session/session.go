// Package session implements the modal positioning interaction used to
// place one image or text draft on one page.
//
// A session renders the target page exactly once when it opens. Every edit
// afterwards only recomputes the overlay, never the raster. A session never
// touches the edit chain: Confirm hands the finished draft back to the
// caller, Cancel throws it away.
//
// Sessions are not safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/engine"
	"github.com/wudi/pdfcompose/fonts"
	"github.com/wudi/pdfcompose/observability"
	"github.com/wudi/pdfcompose/overlay"
	"github.com/wudi/pdfcompose/placement"
)

var (
	// ErrStale is returned by Confirm when the artifact the session was
	// opened against has since changed.
	ErrStale     = errors.New("session is stale")
	ErrNotReady  = errors.New("session not ready")
	ErrWrongKind = errors.New("edit does not apply to this draft kind")
)

type State int

const (
	Loading State = iota
	Ready
	Confirmed
	Cancelled
	// Aborted means the page could not be rendered. The session cannot be
	// retried; open a new one.
	Aborted
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Confirmed:
		return "confirmed"
	case Cancelled:
		return "cancelled"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ScaleRange is the scale slider offered to users, in percent.
func ScaleRange() (lo, hi, step float64) {
	return placement.MinScalePercent, placement.MaxScalePercent, placement.ScalePercentStep
}

type options struct {
	maxWidth, maxHeight float64
	revision            uint64
	log                 observability.Logger
}

type Option func(*options)

// WithPreviewBox sets the box the page preview is fitted into, in pixels.
func WithPreviewBox(width, height float64) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.maxWidth, o.maxHeight = width, height
		}
	}
}

// WithRevision records the edit chain revision the target was read at.
func WithRevision(rev uint64) Option {
	return func(o *options) { o.revision = rev }
}

func WithLogger(l observability.Logger) Option {
	return func(o *options) { o.log = observability.OrNop(l) }
}

type Session struct {
	state    State
	stale    bool
	draft    placement.Draft
	page     int
	revision uint64
	// anchor is where the user last put the draft. Resizing bounds the
	// draft's position against it without overwriting it.
	anchor coords.Point

	tf         coords.Transformer
	background image.Image
	overlay    overlay.Overlay
	log        observability.Logger
}

// Open starts a session for draft on pageIndex of target. It resolves the
// page geometry, fits it into the preview box and renders the page once.
//
// When rendering fails the returned session is in the Aborted state and the
// error wraps engine.ErrRenderFailure. An invalid draft returns a nil
// session.
func Open(ctx context.Context, r engine.Renderer, target []byte, pageIndex int, draft placement.Draft, opts ...Option) (*Session, error) {
	o := options{
		maxWidth:  coords.DefaultMaxPreviewWidth,
		maxHeight: coords.DefaultMaxPreviewHeight,
		log:       observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		state:    Loading,
		draft:    draft.Clone(),
		page:     pageIndex,
		revision: o.revision,
		log: o.log.With(
			observability.String("kind", draft.Kind.String()),
			observability.Int("page", pageIndex)),
	}

	g, err := r.Geometry(ctx, target, pageIndex)
	if err != nil {
		return s, s.abort(err)
	}
	tf, err := coords.FitTransformer(g, o.maxWidth, o.maxHeight)
	if err != nil {
		return s, s.abort(err)
	}
	rendering, err := r.Render(ctx, target, pageIndex, tf.Scale())
	if err != nil {
		return s, s.abort(err)
	}

	s.tf = tf
	s.background = rendering.Raster
	s.state = Ready
	s.anchor = coords.Point{X: s.draft.X, Y: s.draft.Y}
	s.clamp()
	if err := s.rebuild(); err != nil {
		return s, s.abort(err)
	}
	s.log.Debug("session ready",
		observability.Float("width", g.Width),
		observability.Float("height", g.Height),
		observability.Float("scale", tf.Scale()))
	return s, nil
}

func (s *Session) abort(err error) error {
	s.state = Aborted
	if !errors.Is(err, engine.ErrRenderFailure) {
		err = fmt.Errorf("%w: %w", engine.ErrRenderFailure, err)
	}
	s.log.Error("session aborted", observability.Error("err", err))
	return fmt.Errorf("open session: %w", err)
}

func (s *Session) State() State                    { return s.state }
func (s *Session) PageIndex() int                  { return s.page }
func (s *Session) Revision() uint64                { return s.revision }
func (s *Session) Transformer() coords.Transformer { return s.tf }
func (s *Session) Overlay() overlay.Overlay        { return s.overlay }

// Draft returns a copy of the draft being edited.
func (s *Session) Draft() placement.Draft { return s.draft.Clone() }

func (s *Session) ready() error {
	if s.state != Ready {
		return fmt.Errorf("%w: %s", ErrNotReady, s.state)
	}
	return nil
}

func (s *Session) image() (*placement.Image, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.draft.Kind != placement.KindImage {
		return nil, fmt.Errorf("%w: %s", ErrWrongKind, s.draft.Kind)
	}
	return s.draft.Image, nil
}

func (s *Session) text() (*placement.Text, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.draft.Kind != placement.KindText {
		return nil, fmt.Errorf("%w: %s", ErrWrongKind, s.draft.Kind)
	}
	return s.draft.Text, nil
}

// clamp positions the draft at the anchor, bounded to the page. Images stay
// fully inside it; text only bounds its anchor.
func (s *Session) clamp() {
	x, y := s.anchor.X, s.anchor.Y
	if s.draft.Kind == placement.KindImage {
		im := s.draft.Image
		s.draft.X, s.draft.Y = s.tf.ClampImage(x, y, im.Width, im.Height)
		return
	}
	s.draft.X, s.draft.Y = s.tf.ClampText(x, y)
}

func (s *Session) rebuild() error {
	o, err := overlay.Build(s.draft)
	if err != nil {
		return err
	}
	s.overlay = o
	return nil
}

// Move sets the anchor in PDF points, clamped to the page at the current
// size. Later size changes keep the anchor and only bound the position.
func (s *Session) Move(x, y float64) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.anchor = coords.Point{X: x, Y: y}
	s.clamp()
	s.anchor = coords.Point{X: s.draft.X, Y: s.draft.Y}
	return s.rebuild()
}

// MoveScreen moves the anchor to a point given in preview pixels.
func (s *Session) MoveScreen(p coords.Point) error {
	if err := s.ready(); err != nil {
		return err
	}
	q := s.tf.FromScreen(p)
	return s.Move(q.X, q.Y)
}

func positive(v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %g must be positive", placement.ErrInvalidDraft, v)
	}
	return nil
}

// SetScale sets the image scale in percent; both dimensions follow.
func (s *Session) SetScale(percent float64) error {
	im, err := s.image()
	if err != nil {
		return err
	}
	if err := positive(percent); err != nil {
		return err
	}
	im.SetScale(percent)
	s.clamp()
	return s.rebuild()
}

func (s *Session) SetWidth(w float64) error {
	im, err := s.image()
	if err != nil {
		return err
	}
	if err := positive(w); err != nil {
		return err
	}
	im.SetWidth(w)
	s.clamp()
	return s.rebuild()
}

func (s *Session) SetHeight(h float64) error {
	im, err := s.image()
	if err != nil {
		return err
	}
	if err := positive(h); err != nil {
		return err
	}
	im.SetHeight(h)
	s.clamp()
	return s.rebuild()
}

func (s *Session) ResetSize() error {
	im, err := s.image()
	if err != nil {
		return err
	}
	im.ResetSize()
	s.clamp()
	return s.rebuild()
}

func (s *Session) SetText(content string) error {
	tx, err := s.text()
	if err != nil {
		return err
	}
	tx.Content = content
	return s.rebuild()
}

// SetFontSize sets the size in points, bounded to [8, 72].
func (s *Session) SetFontSize(size float64) error {
	tx, err := s.text()
	if err != nil {
		return err
	}
	tx.FontSize = placement.ClampFontSize(size)
	return s.rebuild()
}

func (s *Session) SetColor(c placement.Color) error {
	tx, err := s.text()
	if err != nil {
		return err
	}
	tx.Color = c
	return s.rebuild()
}

func (s *Session) SetFamily(f fonts.Family) error {
	tx, err := s.text()
	if err != nil {
		return err
	}
	if !f.Valid() {
		return fmt.Errorf("%w: %v", fonts.ErrUnknownFamily, f)
	}
	tx.Family = f
	return s.rebuild()
}

// Preview composites the page raster and the current overlay.
func (s *Session) Preview() (*image.RGBA, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return overlay.Render(s.background, s.overlay, s.tf)
}

// Confirm ends the session and returns the finished draft.
func (s *Session) Confirm() (placement.Draft, error) {
	if s.stale {
		return placement.Draft{}, ErrStale
	}
	if err := s.ready(); err != nil {
		return placement.Draft{}, err
	}
	if err := s.draft.Validate(); err != nil {
		return placement.Draft{}, err
	}
	s.state = Confirmed
	s.log.Info("session confirmed",
		observability.Float("x", s.draft.X),
		observability.Float("y", s.draft.Y))
	return s.draft.Clone(), nil
}

// Cancel discards the draft. It is safe in every state.
func (s *Session) Cancel() {
	if s.state == Loading || s.state == Ready {
		s.state = Cancelled
		s.log.Debug("session cancelled")
	}
}

// Invalidate cancels the session because its target went away, for example
// after a reset or a change of the selected document.
func (s *Session) Invalidate() {
	if s.state == Confirmed {
		return
	}
	s.stale = true
	s.Cancel()
}

func (s *Session) Stale() bool { return s.stale }
