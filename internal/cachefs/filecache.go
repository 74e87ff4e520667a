package cachefs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pspoerri/tilecached/internal/grid"
)

// FileCache is the disk-backed tile store. Its path layout splits the zoom
// level into a two-digit directory, then groups x and y each into three
// 3-digit segments (millions/thousands/units), so tile (x=3, y=4, z=2) with
// format "png" under cache dir "/tmp/cache" resolves to
// "/tmp/cache/02/000/000/003/000/000/004.png" — this grouping keeps any
// one directory from ever holding more than 1000 entries.
//
// Writes go to a temp path and rename into place rather than writing the
// destination file directly, so a reader never observes a partial tile.
type FileCache struct {
	BaseDir string
	Format  string // file extension, e.g. "png", "jpeg", "webp"
}

// NewFileCache constructs a FileCache rooted at baseDir, storing tiles with
// the given format/extension.
func NewFileCache(baseDir, format string) *FileCache {
	return &FileCache{BaseDir: baseDir, Format: format}
}

// levelLocation returns the directory for a given zoom level.
func (fc *FileCache) levelLocation(z int) string {
	return filepath.Join(fc.BaseDir, fmt.Sprintf("%02d", z))
}

// TileLocation returns the on-disk path for coord, creating the containing
// directory tree when createDir is true.
func (fc *FileCache) TileLocation(coord *grid.TileCoord, createDir bool) (string, error) {
	x, y, z := coord.X, coord.Y, coord.Z
	dir := filepath.Join(
		fc.levelLocation(z),
		fmt.Sprintf("%03d", x/1000000),
		fmt.Sprintf("%03d", (x/1000)%1000),
		fmt.Sprintf("%03d", x%1000),
		fmt.Sprintf("%03d", y/1000000),
		fmt.Sprintf("%03d", (y/1000)%1000),
	)
	if createDir {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("cachefs: create tile dir %s: %w", dir, err)
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%03d.%s", y%1000, fc.Format)), nil
}

// singleColorLocation returns the shared path single-color tiles of the
// given color key are stored under, independent of their coordinate. This
// lets e.g. every all-ocean tile at every coordinate and zoom level share
// one file on disk.
func (fc *FileCache) singleColorLocation(colorKey string, createDir bool) (string, error) {
	dir := filepath.Join(fc.BaseDir, "single_color_tiles")
	if createDir {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("cachefs: create single-color dir %s: %w", dir, err)
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%s", colorKey, fc.Format)), nil
}

// IsCached reports whether coord's tile (or its single-color symlink
// target) already exists on disk.
func (fc *FileCache) IsCached(coord *grid.TileCoord) bool {
	if coord == nil {
		return true // out-of-bounds tiles are trivially "cached" (nothing to fetch)
	}
	loc, err := fc.TileLocation(coord, false)
	if err != nil {
		return false
	}
	_, err = os.Stat(loc)
	return err == nil
}

// TimestampCreated returns the mtime of coord's stored tile.
func (fc *FileCache) TimestampCreated(coord *grid.TileCoord) (time.Time, error) {
	loc, err := fc.TileLocation(coord, false)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return info.ModTime(), nil
}

// Load reads coord's tile data from disk, following the single-color
// symlink transparently (os.ReadFile already does so).
func (fc *FileCache) Load(coord *grid.TileCoord) ([]byte, error) {
	loc, err := fc.TileLocation(coord, false)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return data, nil
}

// Store writes data for coord's tile, atomically (write-to-temp then
// rename). If colorKey is non-empty, the tile is single-colored: the data
// is written once to the shared single-color location (if not already
// present) and the tile's own path becomes a symlink to it, so repeated
// monochrome tiles (common for ocean/nodata fills) cost one inode's worth
// of disk regardless of how many coordinates reference them.
func (fc *FileCache) Store(coord *grid.TileCoord, data []byte, colorKey string) error {
	if coord == nil {
		return nil
	}
	loc, err := fc.TileLocation(coord, true)
	if err != nil {
		return err
	}

	if colorKey == "" {
		return fc.writeAtomic(loc, data)
	}

	shared, err := fc.singleColorLocation(colorKey, true)
	if err != nil {
		return err
	}
	if _, err := os.Stat(shared); os.IsNotExist(err) {
		if err := fc.writeAtomic(shared, data); err != nil {
			return err
		}
	}
	_ = os.Remove(loc) // replace any stale file/symlink at the tile's own path
	rel, err := filepath.Rel(filepath.Dir(loc), shared)
	if err != nil {
		rel = shared
	}
	if err := os.Symlink(rel, loc); err != nil {
		return fmt.Errorf("%w: symlink %s -> %s: %v", ErrIO, loc, rel, err)
	}
	return nil
}

func (fc *FileCache) writeAtomic(dst string, data []byte) error {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp in %s: %v", ErrIO, dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIO, tmpName, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("%w: rename %s -> %s: %v", ErrIO, tmpName, dst, err)
	}
	return nil
}
