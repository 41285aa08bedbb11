package scripting

import (
	"context"
)

// Engine runs compose scripts (JavaScript) against a Host.
type Engine interface {
	// Execute runs script. Cancelling ctx interrupts it.
	Execute(ctx context.Context, script string) (interface{}, error)

	// RegisterHost exposes the compose functions backed by host.
	RegisterHost(host Host) error
}

// Host is what a compose script drives. Paths are resolved by the host.
type Host interface {
	Upload(path string) error
	Select(index int) error
	Remove(index int) error
	SetPage(index int) error
	PlaceImage(ctx context.Context, path string, opts ImageOptions) error
	PlaceText(ctx context.Context, text string, opts TextOptions) error
	// Merge and Export write their download and return the path written.
	Merge(ctx context.Context, out string) (string, error)
	Export(out string) (string, error)
	Reset() error
	Log(message string)
}

// ImageOptions are the optional fields of placeImage. At most one of Scale,
// Width and Height is applied, in that order of preference.
type ImageOptions struct {
	X, Y                 *float64
	Scale, Width, Height *float64
}

// TextOptions are the optional fields of placeText.
type TextOptions struct {
	X, Y  *float64
	Size  *float64
	Color string
	Font  string
}
