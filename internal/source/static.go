package source

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/pspoerri/tilecached/internal/composite"
	"github.com/pspoerri/tilecached/internal/grid"
)

// StaticSource is a fixture Source that synthesizes a deterministic tile
// image from the requested bbox instead of making a real upstream request.
// It exists so the manager/maplayer pipeline and the demo command have
// something to exercise end-to-end without a live WMS or TMS server.
type StaticSource struct {
	Encoder     composite.Encoder
	Transparent bool
}

// NewStaticSource builds a StaticSource that encodes its synthesized
// imagery in format ("png", "jpeg", or "webp").
func NewStaticSource(format string) (*StaticSource, error) {
	enc, err := composite.NewEncoder(format, 0)
	if err != nil {
		return nil, err
	}
	return &StaticSource{Encoder: enc}, nil
}

func (s *StaticSource) Get(ctx context.Context, query MapQuery) (*composite.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, query.Size.W, query.Size.H))
	c := bboxColor(query.BBox)
	if s.Transparent {
		c.A = 128
	}
	for y := 0; y < query.Size.H; y++ {
		for x := 0; x < query.Size.W; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return composite.NewImage(img, s.Encoder), nil
}

func (s *StaticSource) SupportsMetaTiles() bool { return true }

// bboxColor derives a stable, visually distinct color from a bbox's
// southwest corner, so adjacent tiles from the same demo grid render as a
// visible mosaic rather than a single flat color.
func bboxColor(b grid.BBox) color.RGBA {
	h := func(v float64) uint8 {
		f := math.Mod(math.Abs(v)*97.0, 256.0)
		return uint8(f)
	}
	return color.RGBA{R: h(b.MinX), G: h(b.MinY), B: h(b.MinX + b.MinY), A: 255}
}
