package composite

import (
	"image"
	"image/color"

	"github.com/pspoerri/tilecached/internal/grid"
)

// Transform resamples src (covering srcBBox in srcSRS) onto a dstSize image
// covering dstBBox in dstSRS, via backward mapping: for every destination
// pixel, compute the corresponding source pixel and sample it. When the two
// SRSes differ, each destination pixel is round-tripped through WGS84
// (dst → WGS84 → src); when they match, it's a pure affine crop/resize.
func Transform(src image.Image, srcBBox grid.BBox, srcSRS grid.SRS, dstBBox grid.BBox, dstSRS grid.SRS, dstSize grid.Size, mode Resampling) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, dstSize.W, dstSize.H))
	if dstSize.W == 0 || dstSize.H == 0 {
		return out
	}

	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	sameProjection := srcSRS == nil || dstSRS == nil || srcSRS.Code() == dstSRS.Code()

	dstResX := dstBBox.Width() / float64(dstSize.W)
	dstResY := dstBBox.Height() / float64(dstSize.H)

	for dy := 0; dy < dstSize.H; dy++ {
		// dst row 0 is the top of the image; bbox.MaxY is the top edge.
		mapY := dstBBox.MaxY - (float64(dy)+0.5)*dstResY
		for dx := 0; dx < dstSize.W; dx++ {
			mapX := dstBBox.MinX + (float64(dx)+0.5)*dstResX

			srcX, srcY := mapX, mapY
			if !sameProjection {
				lon, lat := dstSRS.InversePoint(mapX, mapY)
				srcX, srcY = srcSRS.ForwardPoint(lon, lat)
			}
			if srcX < srcBBox.MinX || srcX > srcBBox.MaxX || srcY < srcBBox.MinY || srcY > srcBBox.MaxY {
				continue // leaves this pixel transparent/zero — outside source coverage
			}

			// fraction across the source bbox, flipped on Y (image row 0 = top
			// = bbox.MaxY) to match TileGrid's bottom-left bbox convention.
			fx := (srcX - srcBBox.MinX) / srcBBox.Width()
			fy := (srcBBox.MaxY - srcY) / srcBBox.Height()

			var c color.RGBA
			switch mode {
			case ResamplingBilinear:
				c = sampleBilinear(src, fx, fy, srcW, srcH)
			default:
				c = sampleNearest(src, fx, fy, srcW, srcH)
			}
			out.SetRGBA(dx, dy, c)
		}
	}
	return out
}

// Resampling selects the pixel interpolation strategy used by Transform.
type Resampling int

const (
	ResamplingNearest Resampling = iota
	ResamplingBilinear
)

func sampleNearest(src image.Image, fx, fy float64, w, h int) color.RGBA {
	px := clampInt(int(fx*float64(w)), 0, w-1)
	py := clampInt(int(fy*float64(h)), 0, h-1)
	return toRGBAColor(src.At(src.Bounds().Min.X+px, src.Bounds().Min.Y+py))
}

func sampleBilinear(src image.Image, fx, fy float64, w, h int) color.RGBA {
	x := fx*float64(w) - 0.5
	y := fy*float64(h) - 0.5
	x0, y0 := int(x), int(y)
	tx, ty := x-float64(x0), y-float64(y0)

	at := func(px, py int) color.RGBA {
		px = clampInt(px, 0, w-1)
		py = clampInt(py, 0, h-1)
		return toRGBAColor(src.At(src.Bounds().Min.X+px, src.Bounds().Min.Y+py))
	}
	c00, c10 := at(x0, y0), at(x0+1, y0)
	c01, c11 := at(x0, y0+1), at(x0+1, y0+1)

	lerp := func(a, b uint8, t float64) float64 { return float64(a) + (float64(b)-float64(a))*t }
	mix := func(g00, g10, g01, g11 uint8) uint8 {
		top := lerp(g00, g10, tx)
		bot := lerp(g01, g11, tx)
		return uint8(clampFloat(lerp0(top, bot, ty), 0, 255))
	}
	return color.RGBA{
		R: mix(c00.R, c10.R, c01.R, c11.R),
		G: mix(c00.G, c10.G, c01.G, c11.G),
		B: mix(c00.B, c10.B, c01.B, c11.B),
		A: mix(c00.A, c10.A, c01.A, c11.A),
	}
}

func lerp0(a, b, t float64) float64 { return a + (b-a)*t }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toRGBAColor(c color.Color) color.RGBA {
	if rgba, ok := c.(color.RGBA); ok {
		return rgba
	}
	r, g, b, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}
