// Package cachefs implements the on-disk tile cache: path layout, atomic
// writes, monochrome dedup via symlinks, and per-tile advisory locking.
package cachefs

import (
	"time"

	"github.com/pspoerri/tilecached/internal/grid"
)

// ImageSource is the pluggable handle a Tile holds for its decoded image
// data. Concrete implementations live in internal/composite.
type ImageSource interface {
	AsBuffer() ([]byte, error)
}

// Tile is the unit of caching. A nil Coord denotes the out-of-bounds
// sentinel: IsMissing is false for it, since it never needs disk I/O.
type Tile struct {
	Coord     *grid.TileCoord
	Source    ImageSource
	Size      int64
	Timestamp time.Time
	Stored    bool

	location string // not set by anything: FileCache.TileLocation recomputes the path from the coord on every call
}

// NewTile constructs an empty tile for coord (coord may be nil).
func NewTile(coord *grid.TileCoord) *Tile {
	return &Tile{Coord: coord}
}

// IsMissing reports whether the tile still needs its Source populated: true
// only for a tile with a real coordinate and no source yet.
func (t *Tile) IsMissing() bool {
	if t.Coord == nil {
		return false
	}
	return t.Source == nil
}

// TileCollection is an ordered sequence of tiles plus a coord-keyed lookup.
// Indexing by a coord not present in the collection returns a fresh zero
// tile that is not inserted.
type TileCollection struct {
	tiles []*Tile
	byKey map[grid.TileCoord]*Tile
}

// NewTileCollection builds a collection with one empty tile per coord, in
// order (nil coords pass through as sentinel tiles, never indexed).
func NewTileCollection(coords []*grid.TileCoord) *TileCollection {
	tc := &TileCollection{
		tiles: make([]*Tile, len(coords)),
		byKey: make(map[grid.TileCoord]*Tile, len(coords)),
	}
	for i, c := range coords {
		t := NewTile(c)
		tc.tiles[i] = t
		if c != nil {
			tc.byKey[*c] = t
		}
	}
	return tc
}

// Len returns the number of tiles (including nil-coord sentinels).
func (tc *TileCollection) Len() int { return len(tc.tiles) }

// At returns the tile at positional index i.
func (tc *TileCollection) At(i int) *Tile { return tc.tiles[i] }

// All returns the tiles in insertion order.
func (tc *TileCollection) All() []*Tile { return tc.tiles }

// Get returns the tile for coord if present in the collection, or a fresh
// zero (un-inserted) tile otherwise.
func (tc *TileCollection) Get(coord *grid.TileCoord) *Tile {
	if coord == nil {
		return NewTile(nil)
	}
	if t, ok := tc.byKey[*coord]; ok {
		return t
	}
	return NewTile(coord)
}

// Contains reports whether coord is a member of this collection.
func (tc *TileCollection) Contains(coord *grid.TileCoord) bool {
	if coord == nil {
		return false
	}
	_, ok := tc.byKey[*coord]
	return ok
}

// Set replaces the source of the tile at coord, if present in the
// collection (used to merge freshly created tiles back in by coord).
func (tc *TileCollection) Set(coord *grid.TileCoord, src ImageSource) {
	if coord == nil {
		return
	}
	if t, ok := tc.byKey[*coord]; ok {
		t.Source = src
	}
}
