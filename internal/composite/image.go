// Package composite implements image-level tile operations: uniform-tile
// detection, meta-tile mosaic assembly/splitting, and bbox-to-bbox
// transform (crop/resize/reproject) between a source image and a
// requested tile or map image.
package composite

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/pspoerri/tilecached/internal/cachefs"
)

// Image wraps a decoded image.Image plus the encoder used to serialize it,
// implementing cachefs.ImageSource so it can be handed straight to
// FileCache.Store by way of AsBuffer.
type Image struct {
	Img     image.Image
	Encoder Encoder
}

var _ cachefs.ImageSource = (*Image)(nil)

// NewImage wraps img for encoding with enc.
func NewImage(img image.Image, enc Encoder) *Image {
	return &Image{Img: img, Encoder: enc}
}

// AsBuffer encodes the wrapped image with its encoder.
func (im *Image) AsBuffer() ([]byte, error) {
	return im.Encoder.Encode(im.Img)
}

// DecodeImage decodes encoded tile bytes into an *Image using the named
// format's decoder.
func DecodeImage(data []byte, format string) (*Image, error) {
	enc, err := NewEncoder(format, 0)
	if err != nil {
		return nil, err
	}
	img, err := decodeImage(data, format)
	if err != nil {
		return nil, err
	}
	return &Image{Img: img, Encoder: enc}, nil
}

// decodeImage dispatches to the registered decoder for format.
func decodeImage(data []byte, format string) (image.Image, error) {
	dec, ok := decoders[format]
	if !ok {
		return nil, fmt.Errorf("composite: unsupported decode format %q", format)
	}
	return dec(bytes.NewReader(data))
}

// detectUniform checks whether every pixel in img shares the same RGBA
// value: a sequential scan over the Pix slice that short-circuits on the
// first mismatch, so non-uniform images (the overwhelming majority) bail
// out almost immediately.
func detectUniform(img *image.RGBA) (color.RGBA, bool) {
	pix := img.Pix
	if len(pix) < 4 {
		return color.RGBA{}, false
	}
	r, g, b, a := pix[0], pix[1], pix[2], pix[3]
	for i := 4; i < len(pix); i += 4 {
		if pix[i] != r || pix[i+1] != g || pix[i+2] != b || pix[i+3] != a {
			return color.RGBA{}, false
		}
	}
	return color.RGBA{R: r, G: g, B: b, A: a}, true
}

// SingleColorKey returns a cache dedup key for im if every pixel shares one
// color, and ok=false otherwise. The key is fed to FileCache.Store's
// colorKey parameter, which symlinks same-colored tiles to a single shared
// file on disk.
func SingleColorKey(im *Image) (key string, ok bool) {
	rgba := toRGBA(im.Img)
	c, uniform := detectUniform(rgba)
	if !uniform {
		return "", false
	}
	return fmt.Sprintf("%02x%02x%02x%02x", c.R, c.G, c.B, c.A), true
}

// toRGBA returns img as *image.RGBA, converting if necessary.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}
