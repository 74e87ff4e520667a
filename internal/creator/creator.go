// Package creator implements tile creation: turning a missing cache tile
// coordinate into upstream-fetched image data, stored to disk and returned
// to the caller. Two strategies are provided — Sequential (one
// tile/meta-tile at a time) and Parallel (a bounded worker pool with
// in-process dedup).
package creator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pspoerri/tilecached/internal/cachefs"
	"github.com/pspoerri/tilecached/internal/composite"
	"github.com/pspoerri/tilecached/internal/grid"
	"github.com/pspoerri/tilecached/internal/metrics"
	"github.com/pspoerri/tilecached/internal/source"
)

// Creator turns missing tiles into stored, cached image data. The returned
// slice holds only tiles actually created by this call — tiles found
// already cached by a concurrent creator (another process or goroutine
// that won the lock race) are neither loaded nor included (the explicit
// hit=true outcome inside createOne, aggregated away before CreateTiles
// returns); loading them from disk is left to the caller.
type Creator interface {
	CreateTiles(ctx context.Context, tiles []*cachefs.Tile, collection *cachefs.TileCollection) ([]*cachefs.Tile, error)
}

// Config holds the dependencies shared by both Creator implementations.
type Config struct {
	Grid        *grid.TileGrid
	MetaGrid    *grid.MetaGrid // nil, or a Source without meta-tile support, means one upstream request per cache tile
	FileCache   *cachefs.FileCache
	Source      source.Source
	Format      string
	LockDir     string
	LockTimeout time.Duration
	// PoolSize bounds ParallelCreator's concurrent upstream fetches; unused
	// by SequentialCreator. Zero means errgroup's default (unlimited).
	PoolSize int

	// Metrics and Log are optional; nil disables instrumentation/logging.
	Metrics *metrics.Registry
	Log     *zap.SugaredLogger
	// LayerName tags metrics emitted by this Config (e.g. the cache's
	// configured name), matching the "layer" metric label.
	LayerName string
}

func (c *Config) logger() *zap.SugaredLogger {
	if c.Log != nil {
		return c.Log
	}
	return zap.NewNop().Sugar()
}

// unit describes one upstream request: either a single cache tile or a
// meta-tile's bbox/size plus the constituent cells it splits into.
type unit struct {
	main  *grid.TileCoord
	bbox  grid.BBox
	size  grid.Size
	cells []grid.MetaTileCell
}

func (c *Config) unitFor(coord *grid.TileCoord) unit {
	if c.MetaGrid == nil || !c.Source.SupportsMetaTiles() {
		return unit{main: coord, bbox: c.Grid.TileBBox(coord), size: c.Grid.TileSize,
			cells: []grid.MetaTileCell{{Coord: coord, CropX: 0, CropY: 0}}}
	}
	cells := c.MetaGrid.Tiles(coord)
	main := coord
	if len(cells) > 0 && cells[0].Coord != nil {
		main = cells[0].Coord
	}
	return unit{main: main, bbox: c.MetaGrid.MetaBBox(coord), size: c.MetaGrid.MetaTileSize(coord.Z), cells: cells}
}

// lockKey identifies the advisory lock guarding a unit's creation, so two
// cache tiles belonging to the same meta-tile share one lock (and thus one
// upstream fetch) instead of racing each other to populate the same file.
func lockKey(main *grid.TileCoord) string {
	return fmt.Sprintf("%d-%d-%d", main.X, main.Y, main.Z)
}

// createOne fetches, splits, and stores the unit covering main, unless a
// concurrent creator already did so while this call waited for the lock
// (hit=true, created=nil in that case).
func (c *Config) createOne(ctx context.Context, u unit) (created []*cachefs.Tile, hit bool, err error) {
	waitStart := time.Now()
	lock, err := cachefs.Acquire(ctx, c.LockDir, lockKey(u.main), c.LockTimeout)
	c.Metrics.ObserveLockWait(waitStart)
	if err != nil {
		if c.Metrics != nil {
			c.Metrics.LockTimeouts.Inc()
		}
		return nil, false, fmt.Errorf("creator: acquire lock for %s: %w", u.main, err)
	}
	defer lock.Release()

	if c.FileCache.IsCached(u.main) {
		if c.Metrics != nil {
			c.Metrics.CacheHits.WithLabelValues(c.LayerName).Inc()
		}
		return nil, true, nil
	}
	if c.Metrics != nil {
		c.Metrics.CacheMisses.WithLabelValues(c.LayerName).Inc()
	}

	start := time.Now()
	query := source.MapQuery{BBox: u.bbox, Size: u.size, SRS: c.Grid.SRS, Format: c.Format}
	img, err := c.Source.Get(ctx, query)
	if c.Metrics != nil {
		c.Metrics.UpstreamRequests.WithLabelValues(c.LayerName).Inc()
	}
	if err != nil {
		if c.Metrics != nil {
			c.Metrics.UpstreamErrors.WithLabelValues(c.LayerName).Inc()
		}
		c.logger().Warnw("upstream tile fetch failed", "coord", u.main.String(), "error", err)
		return nil, false, err
	}

	var result []*cachefs.Tile
	if len(u.cells) <= 1 {
		result, hit, err = c.storeOne(u.main, img)
	} else {
		result, hit, err = c.storeSplit(u, img)
	}
	if c.Metrics != nil && err == nil {
		c.Metrics.CreateSeconds.WithLabelValues(c.LayerName).Observe(time.Since(start).Seconds())
		c.Metrics.TilesCreated.WithLabelValues(c.LayerName).Add(float64(len(result)))
	}
	c.logger().Debugw("created tile unit", "coord", u.main.String(), "tiles", len(result))
	return result, hit, err
}

func (c *Config) storeOne(coord *grid.TileCoord, img *composite.Image) ([]*cachefs.Tile, bool, error) {
	data, err := img.AsBuffer()
	if err != nil {
		return nil, false, fmt.Errorf("creator: encode tile %s: %w", coord, err)
	}
	colorKey, _ := composite.SingleColorKey(img)
	if err := c.FileCache.Store(coord, data, colorKey); err != nil {
		return nil, false, err
	}
	t := cachefs.NewTile(coord)
	t.Source = img
	t.Stored = true
	return []*cachefs.Tile{t}, false, nil
}

func (c *Config) storeSplit(u unit, meta *composite.Image) ([]*cachefs.Tile, bool, error) {
	crops := composite.Split(meta.Img, u.cells, c.Grid.TileSize)
	created := make([]*cachefs.Tile, 0, len(u.cells))
	for _, cell := range u.cells {
		if cell.Coord == nil {
			continue
		}
		crop, ok := crops[*cell.Coord]
		if !ok {
			continue
		}
		ci := composite.NewImage(crop, meta.Encoder)
		tiles, _, err := c.storeOne(cell.Coord, ci)
		if err != nil {
			return created, false, err
		}
		created = append(created, tiles...)
	}
	return created, false, nil
}

// dedupeUnits collapses tiles sharing the same lock key down to one unit
// per key — several requested cache tiles that belong to the same
// meta-tile must be created exactly once.
func dedupeUnits(cfg *Config, tiles []*cachefs.Tile) []unit {
	seen := make(map[string]bool, len(tiles))
	units := make([]unit, 0, len(tiles))
	for _, t := range tiles {
		if t.Coord == nil {
			continue
		}
		u := cfg.unitFor(t.Coord)
		key := lockKey(u.main)
		if seen[key] {
			continue
		}
		seen[key] = true
		units = append(units, u)
	}
	return units
}
