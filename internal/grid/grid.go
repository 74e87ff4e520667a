package grid

import (
	"math"
)

// Level describes one pyramid level: the ground resolution (SRS units per
// pixel) and the number of tile columns/rows that level's full world bbox
// spans.
type Level struct {
	Res        float64
	Cols, Rows int
}

// TileGrid is the immutable, configuration-derived pyramid definition: the
// resolution list, tile size, world bbox, and SRS are all supplied by the
// caller rather than fixed, so arbitrary (non-power-of-two, non-Mercator)
// pyramids are representable.
type TileGrid struct {
	SRS       SRS
	TileSize  Size
	WorldBBox BBox
	Levels    []Level
}

// NewTileGrid constructs a grid from its arguments without validating them.
// Levels must be supplied in order; callers typically build them with levels of decreasing resolution
// (each doubling cols/rows), but this is not enforced — arbitrary level
// lists (e.g. non-power-of-two pyramids) are valid.
func NewTileGrid(srs SRS, tileSize Size, world BBox, levels []Level) *TileGrid {
	return &TileGrid{SRS: srs, TileSize: tileSize, WorldBBox: world, Levels: append([]Level(nil), levels...)}
}

// levelBBox returns the full bbox spanned by a level (cols×rows tiles at
// that level's resolution, anchored at the grid's world bbox origin).
func (g *TileGrid) levelBBox(z int) BBox {
	lvl := g.Levels[z]
	w := float64(lvl.Cols*g.TileSize.W) * lvl.Res
	h := float64(lvl.Rows*g.TileSize.H) * lvl.Res
	return BBox{
		MinX: g.WorldBBox.MinX,
		MinY: g.WorldBBox.MinY,
		MaxX: g.WorldBBox.MinX + w,
		MaxY: g.WorldBBox.MinY + h,
	}
}

// TileBBox returns the projected bbox covered by a single tile coordinate.
// Row 0 is the southernmost (bottom) row (TMS-style bottom-left origin,
// not WMTS's top-left).
func (g *TileGrid) TileBBox(c *TileCoord) BBox {
	lvl := g.Levels[c.Z]
	tw := float64(g.TileSize.W) * lvl.Res
	th := float64(g.TileSize.H) * lvl.Res
	minX := g.WorldBBox.MinX + float64(c.X)*tw
	minY := g.WorldBBox.MinY + float64(c.Y)*th
	return BBox{MinX: minX, MinY: minY, MaxX: minX + tw, MaxY: minY + th}
}

// bestLevel picks the pyramid level whose resolution is closest (in log
// space) to the requested ground resolution.
func (g *TileGrid) bestLevel(reqRes float64) int {
	best := 0
	bestDiff := math.Inf(1)
	for i, lvl := range g.Levels {
		diff := math.Abs(math.Log(lvl.Res) - math.Log(reqRes))
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return best
}

// GetAffectedTiles maps a client bbox/size/srs request onto the grid: it
// picks the best-matching pyramid level, computes the tile index range that
// covers the (possibly reprojected) bbox, and returns the enclosing source
// bbox plus the list of affected tile coordinates in row-major order. The
// returned coords' union covers bbox, and the returned srcBBox encloses it.
//
// Tiles whose index falls outside [0,cols)×[0,rows) for the chosen level
// are represented as nil *TileCoord entries (the out-of-bounds sentinel);
// they are never omitted from the returned slice since the caller's
// TileCollection must retain positional alignment with the requested grid
// shape.
func (g *TileGrid) GetAffectedTiles(bbox BBox, size Size, reqSRS SRS) (srcBBox BBox, tileGrid Size, coords []*TileCoord, err error) {
	if bbox.Width() <= 0 || bbox.Height() <= 0 || size.W <= 0 || size.H <= 0 {
		return BBox{}, Size{}, nil, ErrInvalidBBox
	}

	reqBBox := bbox
	if reqSRS != nil && reqSRS.Code() != g.SRS.Code() {
		reqBBox, err = reqSRS.TransformBBoxTo(g.SRS, bbox)
		if err != nil {
			return BBox{}, Size{}, nil, err
		}
	}

	if !g.WorldBBox.Intersects(reqBBox) {
		return BBox{}, Size{}, nil, ErrBlankImage
	}

	reqResX := reqBBox.Width() / float64(size.W)
	reqResY := reqBBox.Height() / float64(size.H)
	z := g.bestLevel(math.Min(reqResX, reqResY))
	lvl := g.Levels[z]
	tw := float64(g.TileSize.W) * lvl.Res
	th := float64(g.TileSize.H) * lvl.Res

	minCol := int(math.Floor((reqBBox.MinX - g.WorldBBox.MinX) / tw))
	maxCol := int(math.Floor((reqBBox.MaxX - g.WorldBBox.MinX) / tw))
	minRow := int(math.Floor((reqBBox.MinY - g.WorldBBox.MinY) / th))
	maxRow := int(math.Floor((reqBBox.MaxY - g.WorldBBox.MinY) / th))

	// Exact alignment on the upper edge lands exactly on the next tile's
	// lower boundary; fall back to the previous tile so a bbox that ends
	// precisely at a grid line doesn't spuriously pull in an empty row/col.
	if float64(maxCol)*tw+g.WorldBBox.MinX == reqBBox.MaxX && maxCol > minCol {
		maxCol--
	}
	if float64(maxRow)*th+g.WorldBBox.MinY == reqBBox.MaxY && maxRow > minRow {
		maxRow--
	}

	cols := maxCol - minCol + 1
	rows := maxRow - minRow + 1
	if cols <= 0 || rows <= 0 {
		return BBox{}, Size{}, nil, ErrBlankImage
	}

	coords = make([]*TileCoord, 0, cols*rows)
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			if col < 0 || col >= lvl.Cols || row < 0 || row >= lvl.Rows {
				coords = append(coords, nil)
				continue
			}
			c := &TileCoord{X: col, Y: row, Z: z}
			coords = append(coords, c)
		}
	}

	srcBBox = BBox{
		MinX: g.WorldBBox.MinX + float64(minCol)*tw,
		MinY: g.WorldBBox.MinY + float64(minRow)*th,
		MaxX: g.WorldBBox.MinX + float64(maxCol+1)*tw,
		MaxY: g.WorldBBox.MinY + float64(maxRow+1)*th,
	}
	return srcBBox, Size{W: cols, H: rows}, coords, nil
}
