//go:build !cgo

package composite

import (
	"fmt"
	"image"
)

// webpEncoder without CGo cannot encode (gen2brain/webp in this module
// version only provides decode); a build without CGO_ENABLED=1 and
// libwebp installed can still serve png/jpeg and decode webp tiles
// produced elsewhere, it just can't produce new webp output itself.
type webpEncoder struct{ Quality int }

func (e *webpEncoder) Encode(img image.Image) ([]byte, error) {
	return nil, fmt.Errorf("composite: webp encoding requires CGO_ENABLED=1 and libwebp (install libwebp-dev)")
}

func (e *webpEncoder) Format() string        { return "webp" }
func (e *webpEncoder) FileExtension() string { return "webp" }
