package creator

import (
	"context"
	"time"

	"github.com/pspoerri/tilecached/internal/cachefs"
)

// SequentialCreator creates one unit after another — the simplest
// strategy, suitable for a single in-flight request where the extra
// concurrency of ParallelCreator isn't worth the added bookkeeping.
type SequentialCreator struct {
	Config
}

// NewSequentialCreator constructs a SequentialCreator from cfg.
func NewSequentialCreator(cfg Config) *SequentialCreator {
	return &SequentialCreator{Config: cfg}
}

func (s *SequentialCreator) CreateTiles(ctx context.Context, tiles []*cachefs.Tile, collection *cachefs.TileCollection) ([]*cachefs.Tile, error) {
	var created []*cachefs.Tile
	for _, u := range dedupeUnits(&s.Config, tiles) {
		c, hit, err := s.createOne(ctx, u)
		if err != nil {
			return created, err
		}
		if !hit {
			created = append(created, c...)
		}
	}
	_ = cachefs.CleanupLockDir(s.LockDir, lockSweepAge(s.LockTimeout))
	return created, nil
}

// lockSweepAge derives the stale-lock cleanup threshold from the
// configured acquire timeout: locks older than several acquire-timeouts
// are presumed abandoned by a crashed holder.
func lockSweepAge(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 10 * time.Minute
	}
	return 10 * timeout
}
