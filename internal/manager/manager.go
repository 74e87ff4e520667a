// Package manager implements the TileManager: it loads a requested set of
// tile coordinates from cache, creating any that are missing or stale.
package manager

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pspoerri/tilecached/internal/cachefs"
	"github.com/pspoerri/tilecached/internal/composite"
	"github.com/pspoerri/tilecached/internal/creator"
	"github.com/pspoerri/tilecached/internal/grid"
)

// Config holds a Manager's dependencies plus its tile-expiry knob.
type Config struct {
	Grid      *grid.TileGrid
	FileCache *cachefs.FileCache
	Creator   creator.Creator
	Format    string
	// MaxAge bounds how long a stored tile is accepted as up to date; zero
	// means tiles never expire.
	MaxAge time.Duration
	// Log is optional; nil disables logging.
	Log *zap.SugaredLogger
}

func (c *Config) logger() *zap.SugaredLogger {
	if c.Log != nil {
		return c.Log
	}
	return zap.NewNop().Sugar()
}

// Manager loads tiles by coordinate, creating any missing ones via its
// configured Creator.
type Manager struct {
	cfg Config
}

// New constructs a Manager from cfg.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// IsCached reports whether coord's tile is present and, if MaxAge is set,
// not stale.
func (m *Manager) IsCached(coord *grid.TileCoord) bool {
	if coord == nil {
		return true
	}
	if !m.cfg.FileCache.IsCached(coord) {
		return false
	}
	if m.cfg.MaxAge <= 0 {
		return true
	}
	ts, err := m.cfg.FileCache.TimestampCreated(coord)
	if err != nil {
		return false
	}
	return time.Since(ts) <= m.cfg.MaxAge
}

// LoadTileCoords loads every tile in coords from cache, creating any that
// are missing or expired, and returns the resulting collection with
// `nil`-coord entries for out-of-bounds positions untouched.
func (m *Manager) LoadTileCoords(ctx context.Context, coords []*grid.TileCoord) (*cachefs.TileCollection, error) {
	collection := cachefs.NewTileCollection(coords)
	m.loadCachedTiles(collection.All())

	missing := make([]*cachefs.Tile, 0)
	for _, t := range collection.All() {
		if t.IsMissing() {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return collection, nil
	}

	created, err := m.cfg.Creator.CreateTiles(ctx, missing, collection)
	for _, t := range created {
		collection.Set(t.Coord, t.Source)
	}
	if err != nil {
		return collection, err
	}

	// Tiles another concurrent creator finished while we were waiting on
	// the lock are not in `created`; load them from disk now that they
	// exist.
	var stillMissing []*cachefs.Tile
	for _, t := range missing {
		if t.IsMissing() {
			stillMissing = append(stillMissing, t)
		}
	}
	m.loadCachedTiles(stillMissing)
	return collection, nil
}

func (m *Manager) loadCachedTiles(tiles []*cachefs.Tile) {
	for _, t := range tiles {
		if !t.IsMissing() {
			continue
		}
		if !m.IsCached(t.Coord) {
			continue
		}
		data, err := m.cfg.FileCache.Load(t.Coord)
		if err != nil {
			m.cfg.logger().Warnw("failed to load cached tile", "coord", t.Coord.String(), "error", err)
			continue
		}
		img, err := composite.DecodeImage(data, m.cfg.Format)
		if err != nil {
			m.cfg.logger().Warnw("failed to decode cached tile", "coord", t.Coord.String(), "error", err)
			continue
		}
		t.Source = img
		t.Stored = true
	}
}
