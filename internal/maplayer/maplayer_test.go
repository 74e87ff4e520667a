package maplayer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pspoerri/tilecached/internal/cachefs"
	"github.com/pspoerri/tilecached/internal/composite"
	"github.com/pspoerri/tilecached/internal/creator"
	"github.com/pspoerri/tilecached/internal/grid"
	"github.com/pspoerri/tilecached/internal/manager"
	"github.com/pspoerri/tilecached/internal/source"
)

func worldGrid() *grid.TileGrid {
	srs := grid.MustSRS(grid.EPSG4326)
	world := grid.BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}
	return grid.NewTileGrid(srs, grid.Size{W: 64, H: 64}, world, []grid.Level{
		{Res: world.Width() / (4 * 64), Cols: 4, Rows: 2},
		{Res: world.Width() / (8 * 64), Cols: 8, Rows: 4},
	})
}

func newCacheLayer(t *testing.T, maxTiles int) *CacheMapLayer {
	t.Helper()
	dir := t.TempDir()
	g := worldGrid()
	fc := cachefs.NewFileCache(dir, "png")
	src, err := source.NewStaticSource("png")
	require.NoError(t, err)

	cfg := creator.Config{Grid: g, FileCache: fc, Source: src, Format: "png", LockDir: dir + "/locks", LockTimeout: time.Second}
	c := creator.NewSequentialCreator(cfg)
	m := manager.New(manager.Config{Grid: g, FileCache: fc, Creator: c, Format: "png"})

	return &CacheMapLayer{Manager: m, Grid: g, MaxTileLimit: maxTiles}
}

func TestCacheMapLayer_GetMap_RendersRequestedBBox(t *testing.T) {
	layer := newCacheLayer(t, 0)
	srs := grid.MustSRS(grid.EPSG4326)
	query := source.MapQuery{
		BBox:   grid.BBox{MinX: -170, MinY: -80, MaxX: -10, MaxY: 80},
		Size:   grid.Size{W: 200, H: 150},
		SRS:    srs,
		Format: "png",
	}

	img, err := layer.GetMap(context.Background(), query)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, 200, img.Img.Bounds().Dx())
	assert.Equal(t, 150, img.Img.Bounds().Dy())
}

func TestCacheMapLayer_GetMap_TooManyTiles(t *testing.T) {
	layer := newCacheLayer(t, 1)
	srs := grid.MustSRS(grid.EPSG4326)
	query := source.MapQuery{
		BBox:   grid.BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90},
		Size:   grid.Size{W: 512, H: 256},
		SRS:    srs,
		Format: "png",
	}

	_, err := layer.GetMap(context.Background(), query)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyTiles)
}

func TestCacheMapLayer_GetMap_OutsideCoverageIsBlankImageError(t *testing.T) {
	layer := newCacheLayer(t, 0)
	srs := grid.MustSRS(grid.EPSG4326)
	query := source.MapQuery{
		BBox:   grid.BBox{MinX: 200, MinY: -80, MaxX: 220, MaxY: 80},
		Size:   grid.Size{W: 100, H: 100},
		SRS:    srs,
		Format: "png",
	}

	_, err := layer.GetMap(context.Background(), query)
	require.Error(t, err)
	assert.ErrorIs(t, err, grid.ErrBlankImage)
}

func TestCacheMapLayer_GetMap_InvalidQueryRejected(t *testing.T) {
	layer := newCacheLayer(t, 0)
	_, err := layer.GetMap(context.Background(), source.MapQuery{})
	require.Error(t, err)
}

func TestResolutionConditional_PicksByResolution(t *testing.T) {
	srs := grid.MustSRS(grid.EPSG4326)
	coarse := &recordingLayer{}
	fine := &recordingLayer{}
	rc := &ResolutionConditional{One: coarse, Two: fine, Resolution: 1.0, SRS: srs}

	lowResQuery := source.MapQuery{
		BBox: grid.BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}, Size: grid.Size{W: 36, H: 18}, SRS: srs, Format: "png",
	}
	_, err := rc.GetMap(context.Background(), lowResQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, coarse.calls)
	assert.Equal(t, 0, fine.calls)

	highResQuery := source.MapQuery{
		BBox: grid.BBox{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1}, Size: grid.Size{W: 2000, H: 2000}, SRS: srs, Format: "png",
	}
	_, err = rc.GetMap(context.Background(), highResQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, fine.calls)
}

func TestSRSConditional_SelectsExactMatchThenFallsBackByType(t *testing.T) {
	geo := grid.MustSRS(grid.EPSG4326)
	merc := grid.MustSRS(grid.EPSG3857)
	swiss := grid.MustSRS(grid.EPSG2056)

	geoLayer := &recordingLayer{}
	mercLayer := &recordingLayer{}

	c := NewSRSConditional([]SRSLayer{
		{Layer: geoLayer, SRS: []grid.SRS{geo}},
		{Layer: mercLayer, SRS: []grid.SRS{merc}},
	})

	assert.Same(t, MapLayer(geoLayer), c.selectLayer(geo))
	assert.Same(t, MapLayer(mercLayer), c.selectLayer(merc))
	// swiss (projected, not registered) falls back to the first projected layer.
	assert.Same(t, MapLayer(mercLayer), c.selectLayer(swiss))
}

type recordingLayer struct {
	calls int
}

func (r *recordingLayer) GetMap(ctx context.Context, query source.MapQuery) (*composite.Image, error) {
	r.calls++
	return nil, nil
}
