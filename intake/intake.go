// Package intake accepts uploaded PDF documents and overlay images before
// they enter the composer.
package intake

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register decoders
	_ "image/png"
	"mime"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmpty           = errors.New("empty input")
	ErrTooLarge        = errors.New("input exceeds size limit")
	ErrImageBounds     = errors.New("image bounds rejected")
)

const (
	MIMEPDF  = "application/pdf"
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

// Limits bounds what intake accepts.
type Limits struct {
	// Maximum PDF upload size in bytes. Default: 200 MB.
	MaxPDFBytes int64 `json:"max_pdf_bytes"`
	// Maximum image upload size in bytes. Default: 50 MB.
	MaxImageBytes int64 `json:"max_image_bytes"`
	// Maximum width or height of a decoded image. Default: 32768.
	MaxImageDimension int `json:"max_image_dimension"`
	// Maximum decoded pixel count (roughly 64MP). Default: 64 << 20.
	MaxImagePixels int64 `json:"max_image_pixels"`
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxPDFBytes:       200 * 1024 * 1024,
		MaxImageBytes:     50 * 1024 * 1024,
		MaxImageDimension: 32768,
		MaxImagePixels:    64 * 1024 * 1024,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxPDFBytes <= 0 {
		l.MaxPDFBytes = d.MaxPDFBytes
	}
	if l.MaxImageBytes <= 0 {
		l.MaxImageBytes = d.MaxImageBytes
	}
	if l.MaxImageDimension <= 0 {
		l.MaxImageDimension = d.MaxImageDimension
	}
	if l.MaxImagePixels <= 0 {
		l.MaxImagePixels = d.MaxImagePixels
	}
	return l
}

// Upload is an accepted PDF.
type Upload struct {
	Name        string
	Data        []byte
	Fingerprint string
}

// Image is an accepted, fully decoded overlay image.
type Image struct {
	Name          string
	Data          []byte
	Format        string // "png" or "jpeg"
	NaturalWidth  int
	NaturalHeight int
	Fingerprint   string
}

// Intake validates inputs against its limits. The zero value uses
// DefaultLimits.
type Intake struct {
	limits Limits
}

func New(limits Limits) *Intake { return &Intake{limits: limits.withDefaults()} }

func (in *Intake) lim() Limits {
	if in == nil {
		return DefaultLimits()
	}
	return in.limits.withDefaults()
}

// IsPDF reports whether the declared type or the file name mark a PDF.
func IsPDF(name, mimeType string) bool {
	if mediaType(mimeType) == MIMEPDF {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// AcceptPDF accepts a PDF recognised by MIME type or extension.
func (in *Intake) AcceptPDF(name, mimeType string, data []byte) (Upload, error) {
	if !IsPDF(name, mimeType) {
		return Upload{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, name, mimeType)
	}
	if len(data) == 0 {
		return Upload{}, fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	if max := in.lim().MaxPDFBytes; int64(len(data)) > max {
		return Upload{}, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, name, len(data), max)
	}
	return Upload{Name: name, Data: data, Fingerprint: Fingerprint(data)}, nil
}

// AcceptImage accepts a PNG or JPEG and decodes it fully to learn its
// natural pixel size.
func (in *Intake) AcceptImage(name, mimeType string, data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	lim := in.lim()
	if int64(len(data)) > lim.MaxImageBytes {
		return Image{}, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, name, len(data), lim.MaxImageBytes)
	}
	if declared := imageFormat(name, mimeType); declared == "" {
		return Image{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, name, mimeType)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %s: %w", ErrUnsupportedType, name, err)
	}
	if format != "png" && format != "jpeg" {
		return Image{}, fmt.Errorf("%w: %s decodes as %s", ErrUnsupportedType, name, format)
	}
	if err := validateBounds(cfg.Width, cfg.Height, lim); err != nil {
		return Image{}, fmt.Errorf("%s: %w", name, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %s: %w", ErrUnsupportedType, name, err)
	}
	b := img.Bounds()
	return Image{
		Name:          name,
		Data:          data,
		Format:        format,
		NaturalWidth:  b.Dx(),
		NaturalHeight: b.Dy(),
		Fingerprint:   Fingerprint(data),
	}, nil
}

func validateBounds(width, height int, lim Limits) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid (%d x %d)", ErrImageBounds, width, height)
	}
	if width > lim.MaxImageDimension || height > lim.MaxImageDimension {
		return fmt.Errorf("%w: dimension exceeds limit (%d x %d)", ErrImageBounds, width, height)
	}
	if pixels := int64(width) * int64(height); pixels > lim.MaxImagePixels {
		return fmt.Errorf("%w: pixel count %d exceeds limit %d", ErrImageBounds, pixels, lim.MaxImagePixels)
	}
	return nil
}

// imageFormat returns "png" or "jpeg" from the declared type or extension,
// or "" when neither names a supported image.
func imageFormat(name, mimeType string) string {
	switch mediaType(mimeType) {
	case MIMEPNG:
		return "png"
	case MIMEJPEG:
		return "jpeg"
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	}
	return ""
}

func mediaType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

// Fingerprint is the hex BLAKE2b-256 digest of data, used to correlate
// uploads in logs.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
