package cachefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pspoerri/tilecached/internal/grid"
)

func TestFileCache_TileLocationLayout(t *testing.T) {
	fc := NewFileCache("/tmp/cache", "png")
	loc, err := fc.TileLocation(&grid.TileCoord{X: 3, Y: 4, Z: 2}, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/tmp/cache/02/000/000/003/000/000/004.png"), loc)
}

func TestFileCache_TileLocationLargeCoords(t *testing.T) {
	fc := NewFileCache("/tmp/cache", "png")
	loc, err := fc.TileLocation(&grid.TileCoord{X: 1234567, Y: 2345, Z: 14}, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/tmp/cache/14/001/234/567/000/002/345.png"), loc)
}

func TestFileCache_TileLocationInjective(t *testing.T) {
	fc := NewFileCache("/tmp/cache", "png")
	seen := map[string]bool{}
	coords := []grid.TileCoord{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 1000, Y: 0, Z: 0}, {X: 0, Y: 1000, Z: 0}, {X: 5, Y: 5, Z: 5},
		{X: 1000000, Y: 1, Z: 0},
	}
	for _, c := range coords {
		c := c
		loc, err := fc.TileLocation(&c, false)
		require.NoError(t, err)
		require.False(t, seen[loc], "path collision for %v: %s", c, loc)
		seen[loc] = true
	}
}

func TestFileCache_StoreLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fc := NewFileCache(dir, "png")
	coord := &grid.TileCoord{X: 3, Y: 4, Z: 2}

	assert.False(t, fc.IsCached(coord))

	data := []byte("fake png bytes")
	require.NoError(t, fc.Store(coord, data, ""))

	assert.True(t, fc.IsCached(coord))
	got, err := fc.Load(coord)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ts, err := fc.TimestampCreated(coord)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)
}

func TestFileCache_SingleColorDedup(t *testing.T) {
	dir := t.TempDir()
	fc := NewFileCache(dir, "png")
	blue := []byte("solid-blue-tile-bytes")

	c1 := &grid.TileCoord{X: 0, Y: 0, Z: 5}
	c2 := &grid.TileCoord{X: 1, Y: 0, Z: 5}
	require.NoError(t, fc.Store(c1, blue, "blue"))
	require.NoError(t, fc.Store(c2, blue, "blue"))

	loc1, _ := fc.TileLocation(c1, false)
	loc2, _ := fc.TileLocation(c2, false)
	info1, err := os.Lstat(loc1)
	require.NoError(t, err)
	info2, err := os.Lstat(loc2)
	require.NoError(t, err)
	assert.True(t, info1.Mode()&os.ModeSymlink != 0)
	assert.True(t, info2.Mode()&os.ModeSymlink != 0)

	shared, _ := fc.singleColorLocation("blue", false)
	entries, err := os.ReadDir(filepath.Dir(shared))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "both tiles should share exactly one underlying file")

	got1, err := fc.Load(c1)
	require.NoError(t, err)
	assert.Equal(t, blue, got1)
}

func TestAcquire_ExcludesConcurrentHolder(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(context.Background(), dir, "tile-1", time.Second)
	require.NoError(t, err)

	_, err = Acquire(context.Background(), dir, "tile-1", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, lock.Release())

	lock2, err := Acquire(context.Background(), dir, "tile-1", time.Second)
	require.NoError(t, err)
	require.NoError(t, lock2.Release())
}

func TestAcquire_DifferentKeysDontBlock(t *testing.T) {
	dir := t.TempDir()
	l1, err := Acquire(context.Background(), dir, "tile-a", time.Second)
	require.NoError(t, err)
	defer l1.Release()

	l2, err := Acquire(context.Background(), dir, "tile-b", time.Second)
	require.NoError(t, err)
	defer l2.Release()
}

func TestCleanupLockDir_RemovesStaleLocks(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.lck")
	require.NoError(t, os.WriteFile(stale, nil, 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	require.NoError(t, CleanupLockDir(dir, time.Minute))
	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestTileCollection_GetAndMissing(t *testing.T) {
	coords := []*grid.TileCoord{{X: 0, Y: 0, Z: 0}, nil, {X: 1, Y: 0, Z: 0}}
	tc := NewTileCollection(coords)
	require.Equal(t, 3, tc.Len())

	assert.True(t, tc.At(0).IsMissing())
	assert.False(t, tc.At(1).IsMissing()) // nil-coord sentinel is never "missing"

	notMember := tc.Get(&grid.TileCoord{X: 9, Y: 9, Z: 9})
	assert.False(t, tc.Contains(&grid.TileCoord{X: 9, Y: 9, Z: 9}))
	assert.True(t, notMember.IsMissing())

	tc.Set(&grid.TileCoord{X: 0, Y: 0, Z: 0}, fakeSource{})
	assert.False(t, tc.At(0).IsMissing())
}

type fakeSource struct{}

func (fakeSource) AsBuffer() ([]byte, error) { return []byte("fake"), nil }
