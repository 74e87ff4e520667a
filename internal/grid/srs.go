package grid

import (
	"fmt"
	"math"
)

// BBox is a projected bounding box (minx, miny, maxx, maxy) in some SRS.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b BBox) Width() float64  { return b.MaxX - b.MinX }
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// Contains reports whether b fully contains o.
func (b BBox) Contains(o BBox) bool {
	return o.MinX >= b.MinX && o.MinY >= b.MinY && o.MaxX <= b.MaxX && o.MaxY <= b.MaxY
}

// Intersects reports whether b and o overlap.
func (b BBox) Intersects(o BBox) bool {
	return b.MinX < o.MaxX && o.MinX < b.MaxX && b.MinY < o.MaxY && o.MinY < b.MaxY
}

// Size is an image/grid pixel size (w, h).
type Size struct{ W, H int }

// SRS is the spatial-reference-system contract consumed by the core. A
// concrete SRS wraps forward/inverse WGS84 conversion functions;
// TransformBBoxTo is derived generically from that pair, by projecting the
// box corners and edge midpoints through WGS84 as an interchange format.
type SRS interface {
	// Code is the stable identifier (e.g. "EPSG:3857").
	Code() string
	// IsLatLong is true for geographic (degree-based) reference systems.
	IsLatLong() bool
	// TransformBBoxTo reprojects bbox (in this SRS) into dst.
	TransformBBoxTo(dst SRS, bbox BBox) (BBox, error)
	// ForwardPoint projects a WGS84 lon/lat into this SRS.
	ForwardPoint(lon, lat float64) (x, y float64)
	// InversePoint converts a point in this SRS back to WGS84 lon/lat.
	InversePoint(x, y float64) (lon, lat float64)
}

// projectedSRS is the common SRS implementation: every concrete SRS in this
// package is a thin wrapper around a pair of forward/inverse WGS84
// conversion functions plus an EPSG-independent Code and IsLatLong flag.
type projectedSRS struct {
	code      string
	isLatLong bool
	toWGS84   func(x, y float64) (lon, lat float64)
	fromWGS84 func(lon, lat float64) (x, y float64)
}

func (s *projectedSRS) Code() string      { return s.code }
func (s *projectedSRS) IsLatLong() bool   { return s.isLatLong }
func (s *projectedSRS) ForwardPoint(lon, lat float64) (x, y float64) {
	return s.fromWGS84(lon, lat)
}
func (s *projectedSRS) InversePoint(x, y float64) (lon, lat float64) {
	return s.toWGS84(x, y)
}

// TransformBBoxTo reprojects by round-tripping the four corners plus the
// edge midpoints through WGS84, then taking the enclosing box in dst. The
// midpoints catch SRS pairs whose transform bends straight lines (e.g.
// geographic→polar projections).
func (s *projectedSRS) TransformBBoxTo(dst SRS, bbox BBox) (BBox, error) {
	if dst.Code() == s.code {
		return bbox, nil
	}
	xs := []float64{bbox.MinX, bbox.MaxX, bbox.MinX, bbox.MaxX, (bbox.MinX + bbox.MaxX) / 2, (bbox.MinX + bbox.MaxX) / 2, bbox.MinX, bbox.MaxX}
	ys := []float64{bbox.MinY, bbox.MinY, bbox.MaxY, bbox.MaxY, bbox.MinY, bbox.MaxY, (bbox.MinY + bbox.MaxY) / 2, (bbox.MinY + bbox.MaxY) / 2}

	out := BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for i := range xs {
		lon, lat := s.InversePoint(xs[i], ys[i])
		x, y := dst.ForwardPoint(lon, lat)
		if x < out.MinX {
			out.MinX = x
		}
		if y < out.MinY {
			out.MinY = y
		}
		if x > out.MaxX {
			out.MaxX = x
		}
		if y > out.MaxY {
			out.MaxY = y
		}
	}
	return out, nil
}

// Registered SRS codes: plain WGS84 lon/lat, Web Mercator, and the Swiss
// LV95 grid (via a polynomial approximation, not exact datum transform).
const (
	EPSG4326 = "EPSG:4326"
	EPSG3857 = "EPSG:3857"
	EPSG2056 = "EPSG:2056"
)

// earthCircumference is the equatorial circumference in meters, used to
// derive the Web Mercator origin shift.
const earthCircumference = 40075016.685578488
const originShift = earthCircumference / 2.0

var wgs84 = &projectedSRS{
	code:      EPSG4326,
	isLatLong: true,
	toWGS84:   func(x, y float64) (float64, float64) { return x, y },
	fromWGS84: func(lon, lat float64) (float64, float64) { return lon, lat },
}

var webMercator = &projectedSRS{
	code:      EPSG3857,
	isLatLong: false,
	toWGS84: func(x, y float64) (lon, lat float64) {
		lon = (x / originShift) * 180.0
		lat = (y / originShift) * 180.0
		lat = 180.0 / math.Pi * (2.0*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2.0)
		return
	},
	fromWGS84: func(lon, lat float64) (x, y float64) {
		x = lon * originShift / 180.0
		y = math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
		y = y * originShift / 180.0
		return
	},
}

var swissLV95 = &projectedSRS{
	code:      EPSG2056,
	isLatLong: false,
	toWGS84: func(easting, northing float64) (lon, lat float64) {
		y := (easting - 2_600_000) / 1_000_000
		x := (northing - 1_200_000) / 1_000_000
		lonSec := 2.6779094 + 4.728982*y + 0.791484*y*x + 0.1306*y*x*x - 0.0436*y*y*y
		latSec := 16.9023892 + 3.238272*x - 0.270978*y*y - 0.002528*x*x - 0.0447*y*y*x - 0.0140*x*x*x
		lon = lonSec * 100.0 / 36.0
		lat = latSec * 100.0 / 36.0
		return
	},
	fromWGS84: func(lon, lat float64) (easting, northing float64) {
		phiSec := lat * 3600
		lambdaSec := lon * 3600
		phiAux := (phiSec - 169028.66) / 10000
		lambdaAux := (lambdaSec - 26782.5) / 10000
		easting = 2_600_072.37 + 211_455.93*lambdaAux - 10_938.51*lambdaAux*phiAux -
			0.36*lambdaAux*phiAux*phiAux - 44.54*lambdaAux*lambdaAux*lambdaAux
		northing = 1_200_147.07 + 308_807.95*phiAux + 3_745.25*lambdaAux*lambdaAux +
			76.63*phiAux*phiAux - 194.56*lambdaAux*lambdaAux*phiAux + 119.79*phiAux*phiAux*phiAux
		return
	},
}

var registry = map[string]SRS{
	EPSG4326: wgs84,
	EPSG3857: webMercator,
	EPSG2056: swissLV95,
}

// ForCode returns the SRS for a known code, or nil if unsupported.
func ForCode(code string) SRS {
	return registry[code]
}

// RegisterSRS adds (or replaces) a custom SRS implementation, for front-ends
// that support reference systems beyond the three built in here.
func RegisterSRS(s SRS) {
	registry[s.Code()] = s
}

// MustSRS is a test/demo helper; panics if code is unknown.
func MustSRS(code string) SRS {
	s := ForCode(code)
	if s == nil {
		panic(fmt.Sprintf("grid: unknown SRS %q", code))
	}
	return s
}
