package composite

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/gen2brain/webp"
)

// Encoder encodes an image into tile bytes for one wire format: png, jpeg,
// or webp.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
	Format() string
	FileExtension() string
}

// NewEncoder constructs an encoder for format ("png", "jpeg"/"jpg", or
// "webp") at the given quality (1-100, ignored by PNG).
func NewEncoder(format string, quality int) (Encoder, error) {
	switch format {
	case "png":
		return &pngEncoder{}, nil
	case "jpeg", "jpg":
		return &jpegEncoder{Quality: quality}, nil
	case "webp":
		return &webpEncoder{Quality: quality}, nil
	default:
		return nil, fmt.Errorf("composite: unsupported tile format %q (supported: png, jpeg, webp)", format)
	}
}

type pngEncoder struct{}

func (e *pngEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
func (e *pngEncoder) Format() string        { return "png" }
func (e *pngEncoder) FileExtension() string { return "png" }

type jpegEncoder struct{ Quality int }

func (e *jpegEncoder) Encode(img image.Image) ([]byte, error) {
	q := e.Quality
	if q <= 0 {
		q = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
func (e *jpegEncoder) Format() string        { return "jpeg" }
func (e *jpegEncoder) FileExtension() string { return "jpg" }

// decoders maps a format name to its decode function.
var decoders = map[string]func(io.Reader) (image.Image, error){
	"png":  png.Decode,
	"jpeg": jpeg.Decode,
	"jpg":  jpeg.Decode,
	"webp": webp.Decode,
}
