// Package config holds the composer settings shared by the CLI and compose
// scripts. Zero values mean "use the default".
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/intake"
)

var ErrInvalidConfig = errors.New("invalid config")

// Rendering engines.
const (
	EnginePDFCPU = "pdfcpu"
	EngineMuPDF  = "mupdf"
)

type Config struct {
	// Preview box the page raster is fitted into, in pixels.
	PreviewWidth  float64 `json:"preview_width"`
	PreviewHeight float64 `json:"preview_height"`

	// Engine selects the page renderer: "pdfcpu" (geometry only, blank
	// raster) or "mupdf" (requires a build with the mupdf tag).
	Engine string `json:"engine"`
	// UserFonts stamps text with fonts installed into pdfcpu instead of the
	// standard 14 fallbacks.
	UserFonts        bool `json:"user_fonts"`
	StrictValidation bool `json:"strict_validation"`

	Limits intake.Limits `json:"limits"`

	// OutputDir is where downloads are written when no path is given.
	OutputDir string `json:"output_dir"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`
}

func Default() Config {
	return Config{
		PreviewWidth:  coords.DefaultMaxPreviewWidth,
		PreviewHeight: coords.DefaultMaxPreviewHeight,
		Engine:        EnginePDFCPU,
		Limits:        intake.DefaultLimits(),
		OutputDir:     ".",
		LogLevel:      "info",
	}
}

// WithDefaults fills every zero field from Default.
func (c Config) WithDefaults() Config {
	d := Default()
	if c.PreviewWidth <= 0 {
		c.PreviewWidth = d.PreviewWidth
	}
	if c.PreviewHeight <= 0 {
		c.PreviewHeight = d.PreviewHeight
	}
	if c.Engine == "" {
		c.Engine = d.Engine
	}
	c.Engine = strings.ToLower(c.Engine)
	dl := d.Limits
	if c.Limits.MaxPDFBytes <= 0 {
		c.Limits.MaxPDFBytes = dl.MaxPDFBytes
	}
	if c.Limits.MaxImageBytes <= 0 {
		c.Limits.MaxImageBytes = dl.MaxImageBytes
	}
	if c.Limits.MaxImageDimension <= 0 {
		c.Limits.MaxImageDimension = dl.MaxImageDimension
	}
	if c.Limits.MaxImagePixels <= 0 {
		c.Limits.MaxImagePixels = dl.MaxImagePixels
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	return c
}

func (c Config) Validate() error {
	switch c.Engine {
	case EnginePDFCPU, EngineMuPDF:
	default:
		return fmt.Errorf("%w: unknown engine %q", ErrInvalidConfig, c.Engine)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// Load reads a JSON config file. Missing fields take their defaults.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
