package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/wudi/pdfcompose/config"
	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/engine"
	"github.com/wudi/pdfcompose/engine/mupdf"
	"github.com/wudi/pdfcompose/engine/pdfcpu"
	"github.com/wudi/pdfcompose/intake"
	"github.com/wudi/pdfcompose/observability"
	"github.com/wudi/pdfcompose/overlay"
	"github.com/wudi/pdfcompose/scripting"
	"github.com/wudi/pdfcompose/workspace"
)

const usage = `Usage: pdfcompose <command> [flags] <args>

Commands:
  merge   -o out.pdf a.pdf b.pdf ...           concatenate documents
  image   [flags] in.pdf image.png             stamp an image onto a page
  text    [flags] in.pdf "text"                stamp text onto a page
  preview -page N -o out.png in.pdf            render a page preview
  run     [-out dir] script.js                 run a compose script

Run "pdfcompose <command> -h" for command flags.
`

// common flags shared by every command.
type common struct {
	configPath string
	engine     string
	logLevel   string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "JSON config file")
	fs.StringVar(&c.engine, "engine", "", "Page renderer: pdfcpu or mupdf (overrides config)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

func (c *common) load() (config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if c.engine != "" {
		cfg.Engine = c.engine
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

type app struct {
	cfg      config.Config
	log      observability.Logger
	renderer engine.Renderer
	ws       *workspace.Workspace
}

func newApp(cfg config.Config) (*app, error) {
	log := observability.NewTextLogger(os.Stderr, cfg.LogLevel)
	manip := pdfcpu.New(pdfcpu.Config{
		UserFonts:        cfg.UserFonts,
		StrictValidation: cfg.StrictValidation,
		Logger:           log,
	})
	var renderer engine.Renderer = manip
	if cfg.Engine == config.EngineMuPDF {
		r, err := mupdf.New(nil, mupdf.WithGeometry(manip))
		if err != nil {
			return nil, err
		}
		renderer = r
	}
	ws := workspace.New(renderer, manip,
		workspace.WithLogger(log),
		workspace.WithIntake(intake.New(cfg.Limits)),
		workspace.WithPreviewBox(cfg.PreviewWidth, cfg.PreviewHeight),
	)
	return &app{cfg: cfg, log: log, renderer: renderer, ws: ws}, nil
}

func (a *app) host() *scripting.WorkspaceHost {
	return &scripting.WorkspaceHost{WS: a.ws, OutDir: a.cfg.OutputDir, Logger: a.log}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "merge":
		err = runMerge(ctx, args)
	case "image":
		err = runImage(ctx, args)
	case "text":
		err = runText(ctx, args)
	case "preview":
		err = runPreview(ctx, args)
	case "run":
		err = runScript(ctx, args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "pdfcompose: unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "pdfcompose: %v\n", err)
		os.Exit(1)
	}
}

func parse(fs *flag.FlagSet, args []string, c *common, nargs int, argUsage string) (*app, error) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfcompose %s [flags] %s\n", fs.Name(), argUsage)
		fs.PrintDefaults()
	}
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if (nargs > 0 && fs.NArg() != nargs) || (nargs < 0 && fs.NArg() < -nargs) {
		fs.Usage()
		return nil, fmt.Errorf("%s: expected %s", fs.Name(), argUsage)
	}
	cfg, err := c.load()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

// setFlags reports which flags were given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func optional(set map[string]bool, name string, v float64) *float64 {
	if !set[name] {
		return nil
	}
	return &v
}

func runMerge(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	var c common
	out := fs.String("o", "", "Output path (default <output_dir>/merged.pdf)")
	a, err := parse(fs, args, &c, -2, "a.pdf b.pdf ...")
	if err != nil {
		return err
	}
	h := a.host()
	for _, p := range fs.Args() {
		if err := h.Upload(p); err != nil {
			return err
		}
	}
	path, err := h.Merge(ctx, *out)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runImage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("image", flag.ContinueOnError)
	var c common
	page := fs.Int("page", 0, "Page index (0-based)")
	x := fs.Float64("x", 0, "Left edge in points from the page's left edge")
	y := fs.Float64("y", 0, "Bottom edge in points from the page's bottom edge")
	scale := fs.Float64("scale", 100, "Scale in percent of the natural size")
	width := fs.Float64("width", 0, "Width in points; height follows the aspect ratio")
	height := fs.Float64("height", 0, "Height in points; width follows the aspect ratio")
	out := fs.String("o", "", "Output path (default <output_dir>/edited.pdf)")
	a, err := parse(fs, args, &c, 2, "in.pdf image")
	if err != nil {
		return err
	}
	set := setFlags(fs)
	h := a.host()
	if err := h.Upload(fs.Arg(0)); err != nil {
		return err
	}
	if err := h.SetPage(*page); err != nil {
		return err
	}
	opts := scripting.ImageOptions{
		X:      optional(set, "x", *x),
		Y:      optional(set, "y", *y),
		Scale:  optional(set, "scale", *scale),
		Width:  optional(set, "width", *width),
		Height: optional(set, "height", *height),
	}
	if err := h.PlaceImage(ctx, fs.Arg(1), opts); err != nil {
		return err
	}
	path, err := h.Export(*out)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runText(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("text", flag.ContinueOnError)
	var c common
	page := fs.Int("page", 0, "Page index (0-based)")
	x := fs.Float64("x", 0, "Baseline start x in points")
	y := fs.Float64("y", 0, "Baseline y in points from the page's bottom edge")
	size := fs.Float64("size", 24, "Font size in points (8-72)")
	color := fs.String("color", "", "Fill color as #rrggbb")
	font := fs.String("font", "", "Font family: NotoSansJP-Regular.ttf, NotoSerifJP-Regular.ttf or MPLUSRounded1c-Regular.ttf")
	out := fs.String("o", "", "Output path (default <output_dir>/edited.pdf)")
	a, err := parse(fs, args, &c, 2, `in.pdf "text"`)
	if err != nil {
		return err
	}
	set := setFlags(fs)
	h := a.host()
	if err := h.Upload(fs.Arg(0)); err != nil {
		return err
	}
	if err := h.SetPage(*page); err != nil {
		return err
	}
	opts := scripting.TextOptions{
		X:     optional(set, "x", *x),
		Y:     optional(set, "y", *y),
		Size:  optional(set, "size", *size),
		Color: *color,
		Font:  *font,
	}
	if err := h.PlaceText(ctx, fs.Arg(1), opts); err != nil {
		return err
	}
	path, err := h.Export(*out)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runPreview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	var c common
	page := fs.Int("page", 0, "Page index (0-based)")
	out := fs.String("o", "preview.png", "Output PNG path")
	a, err := parse(fs, args, &c, 1, "in.pdf")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}
	g, err := a.renderer.Geometry(ctx, data, *page)
	if err != nil {
		return err
	}
	tf, err := coords.FitTransformer(g, a.cfg.PreviewWidth, a.cfg.PreviewHeight)
	if err != nil {
		return err
	}
	r, err := a.renderer.Render(ctx, data, *page, tf.Scale())
	if err != nil {
		return err
	}
	img, err := overlay.Render(r.Raster, overlay.Overlay{}, tf)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode preview: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.log.Info("preview written",
		observability.String("path", *out),
		observability.Float("page_width", g.Width),
		observability.Float("page_height", g.Height))
	fmt.Println(*out)
	return nil
}

func runScript(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var c common
	outDir := fs.String("out", "", "Directory for downloads without an explicit path (default: config output_dir)")
	a, err := parse(fs, args, &c, 1, "script.js")
	if err != nil {
		return err
	}
	dir := *outDir
	if dir == "" {
		dir = a.cfg.OutputDir
	}
	return scripting.RunFile(ctx, a.ws, fs.Arg(0), dir, a.log)
}
