package creator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pspoerri/tilecached/internal/cachefs"
)

// ParallelCreator creates units concurrently with a bounded worker pool
// (golang.org/x/sync/errgroup), layering an in-process
// golang.org/x/sync/singleflight dedup on top of the cross-process file
// lock so two goroutines in the same process racing for the same unit
// collapse into a single upstream fetch rather than both blocking on
// cachefs.Acquire.
type ParallelCreator struct {
	Config
	group singleflight.Group
}

// NewParallelCreator constructs a ParallelCreator from cfg.
func NewParallelCreator(cfg Config) *ParallelCreator {
	return &ParallelCreator{Config: cfg}
}

func (p *ParallelCreator) CreateTiles(ctx context.Context, tiles []*cachefs.Tile, collection *cachefs.TileCollection) ([]*cachefs.Tile, error) {
	units := dedupeUnits(&p.Config, tiles)
	if len(units) == 0 {
		return nil, nil
	}
	if len(units) == 1 {
		c, hit, err := p.createOne(ctx, units[0])
		if err != nil {
			return nil, err
		}
		_ = cachefs.CleanupLockDir(p.LockDir, lockSweepAge(p.LockTimeout))
		if hit {
			return nil, nil
		}
		return c, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if p.PoolSize > 0 {
		g.SetLimit(p.PoolSize)
	}

	var mu sync.Mutex
	var created []*cachefs.Tile

	for _, u := range units {
		u := u
		g.Go(func() error {
			key := lockKey(u.main)
			v, err, _ := p.group.Do(key, func() (interface{}, error) {
				c, hit, err := p.createOne(gctx, u)
				if err != nil {
					return nil, err
				}
				if hit {
					return []*cachefs.Tile(nil), nil
				}
				return c, nil
			})
			if err != nil {
				return err
			}
			if tiles, ok := v.([]*cachefs.Tile); ok && len(tiles) > 0 {
				mu.Lock()
				created = append(created, tiles...)
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	_ = cachefs.CleanupLockDir(p.LockDir, lockSweepAge(p.LockTimeout))
	if err != nil {
		return created, err
	}
	return created, nil
}
