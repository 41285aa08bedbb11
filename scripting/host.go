package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wudi/pdfcompose/fonts"
	"github.com/wudi/pdfcompose/observability"
	"github.com/wudi/pdfcompose/placement"
	"github.com/wudi/pdfcompose/session"
	"github.com/wudi/pdfcompose/workspace"
)

// WorkspaceHost runs script calls against a workspace. Relative paths are
// resolved against Dir; downloads without an explicit path land in OutDir.
type WorkspaceHost struct {
	WS     *workspace.Workspace
	Dir    string
	OutDir string
	Logger observability.Logger
}

var _ Host = (*WorkspaceHost)(nil)

func (h *WorkspaceHost) path(p string) string {
	if p == "" || filepath.IsAbs(p) || h.Dir == "" {
		return p
	}
	return filepath.Join(h.Dir, p)
}

func (h *WorkspaceHost) Upload(path string) error {
	data, err := os.ReadFile(h.path(path))
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	_, err = h.WS.Upload(filepath.Base(path), "", data)
	return err
}

func (h *WorkspaceHost) Select(index int) error  { return h.WS.Select(index) }
func (h *WorkspaceHost) Remove(index int) error  { return h.WS.Remove(index) }
func (h *WorkspaceHost) SetPage(index int) error { return h.WS.SetPage(index) }
func (h *WorkspaceHost) Reset() error            { return h.WS.Reset() }

func (h *WorkspaceHost) PlaceImage(ctx context.Context, path string, opts ImageOptions) error {
	data, err := os.ReadFile(h.path(path))
	if err != nil {
		return fmt.Errorf("place image: %w", err)
	}
	s, err := h.WS.OpenImageSession(ctx, filepath.Base(path), "", data)
	if err != nil {
		return err
	}
	return h.finish(ctx, func() error {
		switch {
		case opts.Scale != nil:
			if err := s.SetScale(*opts.Scale); err != nil {
				return err
			}
		case opts.Width != nil:
			if err := s.SetWidth(*opts.Width); err != nil {
				return err
			}
		case opts.Height != nil:
			if err := s.SetHeight(*opts.Height); err != nil {
				return err
			}
		}
		return move(s, opts.X, opts.Y)
	})
}

func (h *WorkspaceHost) PlaceText(ctx context.Context, text string, opts TextOptions) error {
	s, err := h.WS.OpenTextSession(ctx)
	if err != nil {
		return err
	}
	return h.finish(ctx, func() error {
		if err := s.SetText(text); err != nil {
			return err
		}
		if opts.Size != nil {
			if err := s.SetFontSize(*opts.Size); err != nil {
				return err
			}
		}
		if opts.Color != "" {
			c, err := placement.ParseColor(opts.Color)
			if err != nil {
				return err
			}
			if err := s.SetColor(c); err != nil {
				return err
			}
		}
		if opts.Font != "" {
			f, err := fonts.ParseFamily(opts.Font)
			if err != nil {
				return err
			}
			if err := s.SetFamily(f); err != nil {
				return err
			}
		}
		return move(s, opts.X, opts.Y)
	})
}

// finish applies edit to an open session and confirms it, cancelling the
// session when the edit fails.
func (h *WorkspaceHost) finish(ctx context.Context, edit func() error) error {
	if err := edit(); err != nil {
		h.WS.Cancel()
		return err
	}
	return h.WS.Confirm(ctx)
}

func move(s *session.Session, x, y *float64) error {
	if x == nil && y == nil {
		return nil
	}
	d := s.Draft()
	if x != nil {
		d.X = *x
	}
	if y != nil {
		d.Y = *y
	}
	return s.Move(d.X, d.Y)
}

func (h *WorkspaceHost) Merge(ctx context.Context, out string) (string, error) {
	dl, err := h.WS.Merge(ctx)
	if err != nil {
		return "", err
	}
	return h.save(dl, out)
}

func (h *WorkspaceHost) Export(out string) (string, error) {
	dl, err := h.WS.Export()
	if err != nil {
		return "", err
	}
	return h.save(dl, out)
}

func (h *WorkspaceHost) save(dl workspace.Download, out string) (string, error) {
	dir := h.OutDir
	if dir == "" {
		dir = h.Dir
	}
	if out != "" {
		out = h.path(out)
		dir, dl.Name = filepath.Dir(out), filepath.Base(out)
	}
	if dir == "" {
		dir = "."
	}
	path, err := workspace.Save(dl, dir)
	if err != nil {
		return "", err
	}
	observability.OrNop(h.Logger).Info("download written", observability.String("path", path))
	return path, nil
}

func (h *WorkspaceHost) Log(message string) {
	observability.OrNop(h.Logger).Info(message, observability.String("source", "script"))
}

// RunFile executes the compose script at path with a WorkspaceHost rooted
// at the script's directory.
func RunFile(ctx context.Context, ws *workspace.Workspace, path, outDir string, log observability.Logger) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	if ws == nil {
		return errors.New("run script: nil workspace")
	}
	e := NewEngine()
	host := &WorkspaceHost{WS: ws, Dir: filepath.Dir(path), OutDir: outDir, Logger: log}
	if err := e.RegisterHost(host); err != nil {
		return err
	}
	if _, err := e.Execute(ctx, string(src)); err != nil {
		return fmt.Errorf("run %s: %w", filepath.Base(path), err)
	}
	return nil
}
