package grid

// MetaTileCell is one constituent cache tile within a meta-tile image,
// along with the pixel offset at which it should be cropped out.
type MetaTileCell struct {
	Coord      *TileCoord
	CropX, CropY int
}

// MetaGrid groups a TileGrid's cache tiles into m×n meta-tiles with an
// optional pixel buffer, so one upstream request can yield many adjacent
// cache tiles in a single fetch.
type MetaGrid struct {
	grid       *TileGrid
	metaWidth  int
	metaHeight int
	bufferPx   int
}

// NewMetaGrid constructs a MetaGrid over g with metaSize tiles per meta-tile
// side and bufferPx pixels of buffer on each edge (0 disables buffering).
func NewMetaGrid(g *TileGrid, metaSize Size, bufferPx int) *MetaGrid {
	mw, mh := metaSize.W, metaSize.H
	if mw < 1 {
		mw = 1
	}
	if mh < 1 {
		mh = 1
	}
	return &MetaGrid{grid: g, metaWidth: mw, metaHeight: mh, bufferPx: bufferPx}
}

// metaOrigin returns the (col, row) of the meta-tile's first constituent
// tile for the meta-tile that contains coord.
func (m *MetaGrid) metaOrigin(coord *TileCoord) (col, row int) {
	col = (coord.X / m.metaWidth) * m.metaWidth
	row = (coord.Y / m.metaHeight) * m.metaHeight
	return
}

// MetaBBox returns the projected bbox of the meta-tile covering coord,
// expanded by the configured pixel buffer in projected coordinates.
func (m *MetaGrid) MetaBBox(coord *TileCoord) BBox {
	lvl := m.grid.Levels[coord.Z]
	col, row := m.metaOrigin(coord)
	tw := float64(m.grid.TileSize.W) * lvl.Res
	th := float64(m.grid.TileSize.H) * lvl.Res

	maxCol := col + m.metaWidth - 1
	maxRow := row + m.metaHeight - 1
	if maxCol >= lvl.Cols {
		maxCol = lvl.Cols - 1
	}
	if maxRow >= lvl.Rows {
		maxRow = lvl.Rows - 1
	}

	bbox := BBox{
		MinX: m.grid.WorldBBox.MinX + float64(col)*tw,
		MinY: m.grid.WorldBBox.MinY + float64(row)*th,
		MaxX: m.grid.WorldBBox.MinX + float64(maxCol+1)*tw,
		MaxY: m.grid.WorldBBox.MinY + float64(maxRow+1)*th,
	}
	if m.bufferPx > 0 {
		bx := float64(m.bufferPx) * lvl.Res
		by := float64(m.bufferPx) * lvl.Res
		bbox.MinX -= bx
		bbox.MinY -= by
		bbox.MaxX += bx
		bbox.MaxY += by
	}
	return bbox
}

// MetaTileSize returns the pixel dimensions of the rendered meta-tile image
// (constituent tiles plus buffer on each edge) for a tile at the given
// level.
func (m *MetaGrid) MetaTileSize(z int) Size {
	_ = z // buffer and meta size are uniform across levels
	w := m.metaWidth*m.grid.TileSize.W + 2*m.bufferPx
	h := m.metaHeight*m.grid.TileSize.H + 2*m.bufferPx
	return Size{W: w, H: h}
}

// Tiles returns the constituent cache tile coords and crop offsets for the
// meta-tile that covers coord, in row-major order.
func (m *MetaGrid) Tiles(coord *TileCoord) []MetaTileCell {
	lvl := m.grid.Levels[coord.Z]
	col, row := m.metaOrigin(coord)

	maxCol := col + m.metaWidth - 1
	maxRow := row + m.metaHeight - 1
	if maxCol >= lvl.Cols {
		maxCol = lvl.Cols - 1
	}
	if maxRow >= lvl.Rows {
		maxRow = lvl.Rows - 1
	}

	var cells []MetaTileCell
	for r := row; r <= maxRow; r++ {
		for c := col; c <= maxCol; c++ {
			cropX := m.bufferPx + (c-col)*m.grid.TileSize.W
			cropY := m.bufferPx + (maxRow-r)*m.grid.TileSize.H // flip: row 0 is bottom, image origin is top
			cells = append(cells, MetaTileCell{
				Coord: &TileCoord{X: c, Y: r, Z: coord.Z},
				CropX: cropX,
				CropY: cropY,
			})
		}
	}
	return cells
}
