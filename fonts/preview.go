package fonts

import (
	"fmt"
	"sync"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	previewOnce sync.Once
	previewFont *opentype.Font
	previewErr  error
)

// PreviewFace returns a face for drawing text onto a preview raster at size
// pixels. Callers must Close the face.
func PreviewFace(size float64) (xfont.Face, error) {
	previewOnce.Do(func() {
		previewFont, previewErr = opentype.Parse(goregular.TTF)
	})
	if previewErr != nil {
		return nil, fmt.Errorf("parse preview font: %w", previewErr)
	}
	if size < 1 {
		size = 1
	}
	return opentype.NewFace(previewFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: xfont.HintingNone,
	})
}
