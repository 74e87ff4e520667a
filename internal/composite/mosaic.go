package composite

import (
	"image"
	"image/draw"

	"github.com/pspoerri/tilecached/internal/grid"
)

// Split crops a rendered meta-tile image into its constituent cache tiles,
// one per cells[i], using each cell's CropX/CropY offset and the grid's
// configured tile size: a single upstream request covering a whole
// meta-tile is rendered once and then cut into the individual tiles the
// cache actually stores.
func Split(meta image.Image, cells []grid.MetaTileCell, tileSize grid.Size) map[grid.TileCoord]*image.RGBA {
	out := make(map[grid.TileCoord]*image.RGBA, len(cells))
	for _, cell := range cells {
		if cell.Coord == nil {
			continue
		}
		rect := image.Rect(cell.CropX, cell.CropY, cell.CropX+tileSize.W, cell.CropY+tileSize.H)
		tile := image.NewRGBA(image.Rect(0, 0, tileSize.W, tileSize.H))
		draw.Draw(tile, tile.Bounds(), meta, rect.Min, draw.Src)
		out[*cell.Coord] = tile
	}
	return out
}

// Mosaic assembles a meta-tile-sized image out of individually-fetched
// constituent tiles, the inverse of Split — used when the upstream source
// can only be queried one exact tile at a time (TiledSource) but the
// caller still wants a single meta-tile image to crop buffers from.
func Mosaic(metaSize grid.Size, cells []grid.MetaTileCell, tileSize grid.Size, tiles map[grid.TileCoord]image.Image) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, metaSize.W, metaSize.H))
	for _, cell := range cells {
		if cell.Coord == nil {
			continue
		}
		src, ok := tiles[*cell.Coord]
		if !ok {
			continue
		}
		dstRect := image.Rect(cell.CropX, cell.CropY, cell.CropX+tileSize.W, cell.CropY+tileSize.H)
		draw.Draw(out, dstRect, src, src.Bounds().Min, draw.Src)
	}
	return out
}

// StitchGrid assembles a cols×rows grid of cache tiles into one image.
// tiles is in the same row-major, bottom-row-first order
// TileGrid.GetAffectedTiles returns (row increases northward); nil entries
// (out-of-bounds positions)
// are left blank. The image's top row corresponds to the grid's
// northernmost (highest-row) tile, matching standard top-left image
// orientation.
func StitchGrid(gridSize grid.Size, tileSize grid.Size, tiles []image.Image) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, gridSize.W*tileSize.W, gridSize.H*tileSize.H))
	for i, t := range tiles {
		if t == nil {
			continue
		}
		row := i / gridSize.W
		col := i % gridSize.W
		imgRow := gridSize.H - 1 - row
		dstRect := image.Rect(col*tileSize.W, imgRow*tileSize.H, (col+1)*tileSize.W, (imgRow+1)*tileSize.H)
		draw.Draw(out, dstRect, t, t.Bounds().Min, draw.Src)
	}
	return out
}
