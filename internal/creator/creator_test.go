package creator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pspoerri/tilecached/internal/cachefs"
	"github.com/pspoerri/tilecached/internal/composite"
	"github.com/pspoerri/tilecached/internal/grid"
	"github.com/pspoerri/tilecached/internal/metrics"
	"github.com/pspoerri/tilecached/internal/source"
)

type countingSource struct {
	calls int32
	src   *source.StaticSource
}

func newCountingSource(t *testing.T) *countingSource {
	s, err := source.NewStaticSource("png")
	require.NoError(t, err)
	return &countingSource{src: s}
}

func (c *countingSource) Get(ctx context.Context, q source.MapQuery) (*composite.Image, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.src.Get(ctx, q)
}
func (c *countingSource) SupportsMetaTiles() bool { return true }

func testGrid() *grid.TileGrid {
	srs := grid.MustSRS(grid.EPSG4326)
	world := grid.BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}
	return grid.NewTileGrid(srs, grid.Size{W: 16, H: 16}, world, []grid.Level{
		{Res: world.Width() / (4 * 16), Cols: 4, Rows: 2},
	})
}

func TestSequentialCreator_CreatesMissingTiles(t *testing.T) {
	dir := t.TempDir()
	g := testGrid()
	fc := cachefs.NewFileCache(dir, "png")
	src := newCountingSource(t)

	cfg := Config{Grid: g, FileCache: fc, Source: src, Format: "png", LockDir: dir + "/locks", LockTimeout: time.Second}
	sc := NewSequentialCreator(cfg)

	coords := []*grid.TileCoord{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}}
	tiles := []*cachefs.Tile{cachefs.NewTile(coords[0]), cachefs.NewTile(coords[1])}
	collection := cachefs.NewTileCollection(coords)

	created, err := sc.CreateTiles(context.Background(), tiles, collection)
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.EqualValues(t, 2, src.calls)

	assert.True(t, fc.IsCached(coords[0]))
	assert.True(t, fc.IsCached(coords[1]))
}

func TestSequentialCreator_SkipsAlreadyCached(t *testing.T) {
	dir := t.TempDir()
	g := testGrid()
	fc := cachefs.NewFileCache(dir, "png")
	src := newCountingSource(t)
	cfg := Config{Grid: g, FileCache: fc, Source: src, Format: "png", LockDir: dir + "/locks", LockTimeout: time.Second}
	sc := NewSequentialCreator(cfg)

	coord := &grid.TileCoord{X: 0, Y: 0, Z: 0}
	require.NoError(t, fc.Store(coord, []byte("already-there"), ""))

	created, err := sc.CreateTiles(context.Background(), []*cachefs.Tile{cachefs.NewTile(coord)}, cachefs.NewTileCollection([]*grid.TileCoord{coord}))
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.EqualValues(t, 0, src.calls)
}

func TestCreateOne_RecordsMetrics(t *testing.T) {
	dir := t.TempDir()
	g := testGrid()
	fc := cachefs.NewFileCache(dir, "png")
	src := newCountingSource(t)
	reg := metrics.NewRegistry(prometheus.NewRegistry())

	cfg := Config{Grid: g, FileCache: fc, Source: src, Format: "png", LockDir: dir + "/locks", LockTimeout: time.Second, Metrics: reg, LayerName: "demo"}
	sc := NewSequentialCreator(cfg)

	coord := &grid.TileCoord{X: 0, Y: 0, Z: 0}
	_, err := sc.CreateTiles(context.Background(), []*cachefs.Tile{cachefs.NewTile(coord)}, cachefs.NewTileCollection([]*grid.TileCoord{coord}))
	require.NoError(t, err)

	var m dto.Metric
	require.NoError(t, reg.TilesCreated.WithLabelValues("demo").Write(&m))
	assert.EqualValues(t, 1, m.GetCounter().GetValue())

	var reqs dto.Metric
	require.NoError(t, reg.UpstreamRequests.WithLabelValues("demo").Write(&reqs))
	assert.EqualValues(t, 1, reqs.GetCounter().GetValue())
}

func TestParallelCreator_DedupsMetaTileFetches(t *testing.T) {
	dir := t.TempDir()
	g := testGrid()
	fc := cachefs.NewFileCache(dir, "png")
	src := newCountingSource(t)
	mg := grid.NewMetaGrid(g, grid.Size{W: 2, H: 2}, 0)

	cfg := Config{Grid: g, MetaGrid: mg, FileCache: fc, Source: src, Format: "png", LockDir: dir + "/locks", LockTimeout: time.Second, PoolSize: 4}
	pc := NewParallelCreator(cfg)

	coords := []*grid.TileCoord{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}}
	tiles := []*cachefs.Tile{cachefs.NewTile(coords[0]), cachefs.NewTile(coords[1])}

	created, err := pc.CreateTiles(context.Background(), tiles, cachefs.NewTileCollection(coords))
	require.NoError(t, err)
	assert.Len(t, created, 4, "the full 2x2 meta-tile's constituent cache tiles should all be created")
	assert.EqualValues(t, 1, src.calls, "one meta-tile fetch should cover every cache tile in it")
}
