package grid

import "fmt"

// TileCoord is the (x, y, z) triple identifying a cache tile. A nil
// *TileCoord is the out-of-bounds sentinel: a tile that is never cached or
// fetched but still participates in collections (e.g. a request's row
// includes positions that fall off the edge of the world bbox).
type TileCoord struct {
	X, Y, Z int
}

func (c *TileCoord) String() string {
	if c == nil {
		return "<null>"
	}
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Equal reports coordinate equality, treating nil as only equal to nil.
func (c *TileCoord) Equal(o *TileCoord) bool {
	if c == nil || o == nil {
		return c == o
	}
	return *c == *o
}

// Key returns a value usable as a map key; nil coords are not expected to be
// used as keys (callers check for nil before indexing collections).
func (c *TileCoord) Key() TileCoord {
	if c == nil {
		return TileCoord{}
	}
	return *c
}
