// Package source implements upstream tile/map fetching: a generic WMS-style
// client (full-bbox request, optional reprojection when the upstream only
// speaks a different SRS) and an exact-tile-aligned client for proxying
// another tile service directly. No HTTP client library is bundled here
// beyond net/http; rate limiting and error wrapping around it are
// implemented locally in this package. No request timeout is set here: a
// request is bounded only by the supplied http.Client's Timeout and ctx.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/pspoerri/tilecached/internal/composite"
	"github.com/pspoerri/tilecached/internal/grid"
)

// MapQuery describes one request for a map image: a bbox in a given SRS,
// the desired pixel size, output format, and transparency flag.
type MapQuery struct {
	BBox        grid.BBox `validate:"required"`
	Size        grid.Size `validate:"required"`
	SRS         grid.SRS  `validate:"required"`
	Format      string    `validate:"required"`
	Transparent bool
}

// ErrInvalidSourceQuery is returned when a query doesn't match what a
// Source can serve, e.g. a TiledSource asked for a bbox that doesn't align
// to exactly one of its tiles.
var ErrInvalidSourceQuery = errors.New("source: invalid source query")

// ErrTileSourceError wraps any upstream fetch failure.
var ErrTileSourceError = errors.New("source: tile source error")

// wrapFetchErr wraps err as ErrTileSourceError unless it already is one.
func wrapFetchErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTileSourceError) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTileSourceError, err)
}

// Source is the fetch contract every upstream implementation satisfies.
// SupportsMetaTiles reports whether this source can usefully answer a
// query covering more than one cache tile at once (WMS can; a
// tile-aligned proxy cannot).
type Source interface {
	Get(ctx context.Context, query MapQuery) (*composite.Image, error)
	SupportsMetaTiles() bool
}
