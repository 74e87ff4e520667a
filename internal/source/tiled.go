package source

import (
	"context"
	"fmt"

	"github.com/pspoerri/tilecached/internal/composite"
	"github.com/pspoerri/tilecached/internal/grid"
)

// TileClient fetches a single exact tile from another tile service (e.g. a
// TMS/XYZ endpoint). Separated from TiledSource so tests/demo can supply a
// fixture implementation without a real HTTP round trip.
type TileClient interface {
	GetTile(ctx context.Context, coord *grid.TileCoord) (*composite.Image, error)
}

// TiledSource proxies another grid-aligned tile service directly: it only
// answers queries whose bbox/size/SRS match exactly one of its own grid's
// tiles. Unlike WMSSource it cannot serve arbitrary bboxes or meta-tiles.
type TiledSource struct {
	Grid   *grid.TileGrid
	Client TileClient
}

func (s *TiledSource) Get(ctx context.Context, query MapQuery) (*composite.Image, error) {
	if query.Size != s.Grid.TileSize {
		return nil, fmt.Errorf("%w: requested size %v does not match tile size %v", ErrInvalidSourceQuery, query.Size, s.Grid.TileSize)
	}
	if query.SRS.Code() != s.Grid.SRS.Code() {
		return nil, fmt.Errorf("%w: requested SRS %s does not match grid SRS %s", ErrInvalidSourceQuery, query.SRS.Code(), s.Grid.SRS.Code())
	}

	_, tileGrid, coords, err := s.Grid.GetAffectedTiles(query.BBox, query.Size, query.SRS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSourceQuery, err)
	}
	if tileGrid != (grid.Size{W: 1, H: 1}) {
		return nil, fmt.Errorf("%w: bbox does not align to a single tile", ErrInvalidSourceQuery)
	}
	if coords[0] == nil {
		return nil, fmt.Errorf("%w: bbox is outside the grid", ErrInvalidSourceQuery)
	}

	img, err := s.Client.GetTile(ctx, coords[0])
	if err != nil {
		return nil, wrapFetchErr(err)
	}
	return img, nil
}

func (s *TiledSource) SupportsMetaTiles() bool { return false }
