// Package workspace is the top-level composer controller. It owns the
// uploaded files, the edit chain for the selected file and at most one
// open positioning session, and enforces the ordering rules between them:
//
//   - the selected document feeds the edit chain's source;
//   - sessions open against the chain's current artifact and are
//     invalidated when that artifact goes away;
//   - confirming a session applies its draft to the chain;
//   - while a merge or placement is waiting on the engine every other
//     mutating action fails with editchain.ErrBusy.
//
// A Workspace is safe for concurrent use. The sessions it hands out are not
// and belong to the caller that opened them.
package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wudi/pdfcompose/assembler"
	"github.com/wudi/pdfcompose/editchain"
	"github.com/wudi/pdfcompose/engine"
	"github.com/wudi/pdfcompose/fileset"
	"github.com/wudi/pdfcompose/intake"
	"github.com/wudi/pdfcompose/observability"
	"github.com/wudi/pdfcompose/placement"
	"github.com/wudi/pdfcompose/session"
)

var (
	ErrMissingActiveDocument = errors.New("no active document")
	ErrSessionOpen           = errors.New("a positioning session is already open")
	ErrNoSession             = errors.New("no positioning session open")
	// ErrOpenCancelled is returned by the session openers when Cancel, or a
	// change of the active document, arrived while the page was rendering.
	ErrOpenCancelled = errors.New("positioning session cancelled while opening")
)

// Download names.
const (
	MergedName = "merged.pdf"
	EditedName = "edited.pdf"
)

// Download is a finished artifact ready to be saved under Name.
type Download struct {
	Name string
	Data []byte
}

// Actions reports which user triggers are currently enabled.
type Actions struct {
	Merge    bool
	AddImage bool
	AddText  bool
	Export   bool
	Reset    bool
}

type Option func(*Workspace)

func WithLogger(l observability.Logger) Option {
	return func(w *Workspace) { w.log = observability.OrNop(l) }
}

func WithIntake(in *intake.Intake) Option {
	return func(w *Workspace) { w.intake = in }
}

// WithPreviewBox sets the box session previews are fitted into.
func WithPreviewBox(width, height float64) Option {
	return func(w *Workspace) { w.previewW, w.previewH = width, height }
}

type Workspace struct {
	renderer engine.Renderer
	manip    engine.Manipulator
	intake   *intake.Intake
	log      observability.Logger

	previewW, previewH float64

	mu    sync.Mutex
	files fileset.Set
	chain *editchain.Chain
	asm   *assembler.Assembler
	page  int
	sess  *session.Session
	busy  bool

	// opening is set while a session renders its page outside the lock.
	// openGen changes whenever that pending open is abandoned.
	opening bool
	openGen uint64
}

func New(r engine.Renderer, m engine.Manipulator, opts ...Option) *Workspace {
	w := &Workspace{
		renderer: r,
		manip:    m,
		log:      observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.intake == nil {
		w.intake = intake.New(intake.DefaultLimits())
	}
	w.chain = editchain.New(m, editchain.WithLogger(w.log))
	w.asm = assembler.New(m, assembler.WithLogger(w.log))
	return w
}

// Upload accepts a PDF and appends it to the file list. The first upload
// into an empty selection becomes the active document.
func (w *Workspace) Upload(name, mimeType string, data []byte) (*fileset.Document, error) {
	up, err := w.intake.AcceptPDF(name, mimeType, data)
	if err != nil {
		w.log.Warn("upload rejected", observability.String("doc", name), observability.Error("err", err))
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.idle(); err != nil {
		return nil, err
	}
	for _, d := range w.files.Documents() {
		if d.Fingerprint() == up.Fingerprint {
			w.log.Warn("duplicate upload", observability.String("doc", name), observability.String("same_as", d.Name()))
			break
		}
	}
	doc := fileset.NewDocument(up.Name, bytes.Clone(up.Data), up.Fingerprint)
	if w.files.Add(doc) {
		if err := w.activate(doc); err != nil {
			return nil, err
		}
	}
	w.log.Info("document uploaded",
		observability.String("doc", name),
		observability.Int("bytes", len(data)),
		observability.Int("files", w.files.Len()))
	return doc, nil
}

// Remove deletes the document at i. Removing the active document clears the
// working artifact and invalidates an open session.
func (w *Workspace) Remove(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.idle(); err != nil {
		return err
	}
	removed, changed, err := w.files.Remove(i)
	if err != nil {
		return err
	}
	w.log.Info("document removed", observability.String("doc", removed.Name()), observability.Bool("was_active", changed))
	if changed {
		return w.activate(w.files.Selected())
	}
	return nil
}

// Select makes the document at i active. Switching documents discards the
// working artifact of the previous one.
func (w *Workspace) Select(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.idle(); err != nil {
		return err
	}
	changed, err := w.files.Select(i)
	if err != nil {
		return err
	}
	if changed {
		return w.activate(w.files.Selected())
	}
	return nil
}

// activate points the chain at doc and resets everything tied to the old
// current artifact.
func (w *Workspace) activate(doc *fileset.Document) error {
	if _, err := w.chain.SetSource(doc); err != nil {
		return err
	}
	w.invalidateSession()
	w.page = 0
	return nil
}

func (w *Workspace) invalidateSession() {
	w.abandonOpen()
	if w.sess != nil {
		w.sess.Invalidate()
		w.sess = nil
	}
}

// abandonOpen makes a session that is still rendering get discarded when
// it returns. Callers hold w.mu.
func (w *Workspace) abandonOpen() {
	if w.opening {
		w.opening = false
		w.openGen++
	}
}

// idle fails while a merge or placement is in flight. Callers hold w.mu.
func (w *Workspace) idle() error {
	if w.busy {
		return editchain.ErrBusy
	}
	return nil
}

// SetPage selects the page new sessions open on. The page count is read
// without holding the workspace lock; if the active artifact changes in the
// meantime SetPage fails with session.ErrStale.
func (w *Workspace) SetPage(i int) error {
	w.mu.Lock()
	current := w.chain.Current()
	rev := w.chain.Revision()
	w.mu.Unlock()
	if current == nil {
		return ErrMissingActiveDocument
	}
	if i < 0 {
		return fmt.Errorf("%w: %d", engine.ErrPageOutOfRange, i)
	}
	if pc, ok := w.manip.(engine.PageCounter); ok {
		n, err := pc.PageCount(context.Background(), current)
		if err != nil {
			return fmt.Errorf("count pages: %w", err)
		}
		if i >= n {
			return fmt.Errorf("%w: %d of %d", engine.ErrPageOutOfRange, i, n)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.chain.Revision() != rev {
		return fmt.Errorf("set page: document changed: %w", session.ErrStale)
	}
	w.page = i
	return nil
}

func (w *Workspace) Page() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.page
}

// Current returns a copy of the artifact the preview shows: the working
// artifact if there is one, else the active source document.
func (w *Workspace) Current() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b := w.chain.Current(); b != nil {
		return b, nil
	}
	return nil, ErrMissingActiveDocument
}

func (w *Workspace) Documents() []*fileset.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files.Documents()
}

func (w *Workspace) Selected() *fileset.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files.Selected()
}

// OpenImageSession accepts an overlay image and opens a positioning session
// for it on the current page.
func (w *Workspace) OpenImageSession(ctx context.Context, name, mimeType string, data []byte) (*session.Session, error) {
	img, err := w.intake.AcceptImage(name, mimeType, data)
	if err != nil {
		return nil, err
	}
	draft, err := placement.NewImage(img.Data, img.NaturalWidth, img.NaturalHeight)
	if err != nil {
		return nil, err
	}
	return w.openSession(ctx, draft)
}

// OpenTextSession opens a positioning session for a default text draft.
func (w *Workspace) OpenTextSession(ctx context.Context) (*session.Session, error) {
	return w.openSession(ctx, placement.NewText())
}

// openSession renders the page without holding the lock. The new session is
// only installed if nothing cancelled it and the artifact it rendered is
// still current.
func (w *Workspace) openSession(ctx context.Context, draft placement.Draft) (*session.Session, error) {
	w.mu.Lock()
	if err := w.idle(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	target := w.chain.Current()
	if target == nil {
		w.mu.Unlock()
		return nil, ErrMissingActiveDocument
	}
	if w.opening || (w.sess != nil && w.sess.State() == session.Ready) {
		w.mu.Unlock()
		return nil, ErrSessionOpen
	}
	rev := w.chain.Revision()
	page := w.page
	w.sess = nil
	w.opening = true
	gen := w.openGen
	w.mu.Unlock()

	opts := []session.Option{
		session.WithRevision(rev),
		session.WithLogger(w.log),
	}
	if w.previewW > 0 && w.previewH > 0 {
		opts = append(opts, session.WithPreviewBox(w.previewW, w.previewH))
	}
	s, err := session.Open(ctx, w.renderer, target, page, draft, opts...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.openGen != gen {
		if s != nil {
			s.Invalidate()
		}
		w.log.Debug("discarded session opened after cancel", observability.Int("page", page))
		return nil, ErrOpenCancelled
	}
	w.opening = false
	if err != nil {
		return nil, err
	}
	if w.chain.Revision() != rev {
		s.Invalidate()
		return nil, session.ErrStale
	}
	w.sess = s
	return s, nil
}

// Session returns the open session, or nil.
func (w *Workspace) Session() *session.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sess
}

// Confirm finishes the open session and applies its draft to the edit
// chain. A session whose target changed since it opened fails with
// session.ErrStale and nothing is applied.
func (w *Workspace) Confirm(ctx context.Context) error {
	w.mu.Lock()
	if err := w.idle(); err != nil {
		w.mu.Unlock()
		return err
	}
	s := w.sess
	if s == nil {
		w.mu.Unlock()
		return ErrNoSession
	}
	if s.Revision() != w.chain.Revision() {
		s.Invalidate()
	}
	draft, err := s.Confirm()
	if err != nil {
		if s.State() != session.Ready {
			w.sess = nil
		}
		w.mu.Unlock()
		return err
	}
	w.sess = nil
	w.busy = true
	w.mu.Unlock()

	err = w.chain.ApplyPlacement(ctx, draft, s.PageIndex())

	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
	return err
}

// Cancel discards the open session, if any. A session that is still
// rendering is discarded as soon as its render returns.
func (w *Workspace) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.abandonOpen()
	if w.sess != nil {
		w.sess.Cancel()
		w.sess = nil
	}
}

// Merge concatenates every uploaded document in upload order. The working
// artifact is not affected.
func (w *Workspace) Merge(ctx context.Context) (Download, error) {
	w.mu.Lock()
	if err := w.idle(); err != nil {
		w.mu.Unlock()
		return Download{}, err
	}
	docs := w.files.Documents()
	if len(docs) < 2 {
		w.mu.Unlock()
		return Download{}, fmt.Errorf("%w: got %d", assembler.ErrInvalidInputCount, len(docs))
	}
	w.busy = true
	w.mu.Unlock()

	out, err := w.asm.Merge(ctx, docs)

	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
	if err != nil {
		return Download{}, err
	}
	return Download{Name: MergedName, Data: out}, nil
}

// Export returns the working artifact as a download.
func (w *Workspace) Export() (Download, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.idle(); err != nil {
		return Download{}, err
	}
	out, err := w.chain.Export()
	if err != nil {
		return Download{}, err
	}
	return Download{Name: EditedName, Data: out}, nil
}

// Reset discards every placement, invalidates an open session and returns
// to the first page.
func (w *Workspace) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.idle(); err != nil {
		return err
	}
	if err := w.chain.Reset(); err != nil {
		return err
	}
	w.invalidateSession()
	w.page = 0
	return nil
}

func (w *Workspace) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

func (w *Workspace) Actions() Actions {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return Actions{}
	}
	active := w.files.Selected() != nil
	noSession := !w.opening && (w.sess == nil || w.sess.State() != session.Ready)
	working := w.chain.HasWorking()
	return Actions{
		Merge:    w.files.Len() >= 2,
		AddImage: active && noSession,
		AddText:  active && noSession,
		Export:   working,
		Reset:    working,
	}
}

// Save writes d into dir under its download name and returns the path.
func Save(d Download, dir string) (string, error) {
	if d.Name == "" {
		return "", errors.New("save: download has no name")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("save %s: %w", d.Name, err)
	}
	path := filepath.Join(dir, d.Name)
	tmp, err := os.CreateTemp(dir, "."+d.Name+".*")
	if err != nil {
		return "", fmt.Errorf("save %s: %w", d.Name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(d.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("save %s: %w", d.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("save %s: %w", d.Name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("save %s: %w", d.Name, err)
	}
	return path, nil
}
