package source

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/pspoerri/tilecached/internal/composite"
	"github.com/pspoerri/tilecached/internal/grid"
)

func TestStaticSource_DeterministicByBBox(t *testing.T) {
	s, err := NewStaticSource("png")
	require.NoError(t, err)

	q := MapQuery{BBox: grid.BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, Size: grid.Size{W: 4, H: 4}, SRS: grid.MustSRS(grid.EPSG4326), Format: "png"}
	img1, err := s.Get(context.Background(), q)
	require.NoError(t, err)
	img2, err := s.Get(context.Background(), q)
	require.NoError(t, err)

	b1, err := img1.AsBuffer()
	require.NoError(t, err)
	b2, err := img2.AsBuffer()
	require.NoError(t, err)
	assert.Equal(t, b1, b2, "same bbox must render identical fixture tiles")
}

func TestWMSClient_FetchesAndDecodes(t *testing.T) {
	enc, err := composite.NewEncoder("png", 0)
	require.NoError(t, err)
	fixture := image.NewRGBA(image.Rect(0, 0, 2, 2))
	body, err := enc.Encode(fixture)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	client := NewWMSClient(WMSRequestTemplate{BaseURL: srv.URL, Params: map[string]string{"LAYERS": "demo"}}, nil, nil, rate.NewLimiter(rate.Inf, 1))
	q := MapQuery{BBox: grid.BBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, Size: grid.Size{W: 2, H: 2}, SRS: grid.MustSRS(grid.EPSG4326), Format: "png"}

	img, err := client.Get(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Img.Bounds().Dx())
}

func TestWMSClient_UpstreamErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewWMSClient(WMSRequestTemplate{BaseURL: srv.URL}, nil, nil, nil)
	q := MapQuery{BBox: grid.BBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, Size: grid.Size{W: 2, H: 2}, SRS: grid.MustSRS(grid.EPSG4326), Format: "png"}

	_, err := client.Get(context.Background(), q)
	assert.True(t, errors.Is(err, ErrTileSourceError))
}

type fakeTileClient struct{ calls int }

func (f *fakeTileClient) GetTile(ctx context.Context, coord *grid.TileCoord) (*composite.Image, error) {
	f.calls++
	enc, _ := composite.NewEncoder("png", 0)
	return composite.NewImage(image.NewRGBA(image.Rect(0, 0, 256, 256)), enc), nil
}

func TestTiledSource_RejectsMismatchedSize(t *testing.T) {
	g := grid.NewTileGrid(grid.MustSRS(grid.EPSG4326), grid.Size{W: 256, H: 256}, grid.BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}, []grid.Level{{Res: 180.0 / 256, Cols: 2, Rows: 1}})
	ts := &TiledSource{Grid: g, Client: &fakeTileClient{}}

	q := MapQuery{BBox: grid.BBox{MinX: -180, MinY: -90, MaxX: 0, MaxY: 90}, Size: grid.Size{W: 128, H: 128}, SRS: grid.MustSRS(grid.EPSG4326), Format: "png"}
	_, err := ts.Get(context.Background(), q)
	assert.ErrorIs(t, err, ErrInvalidSourceQuery)
}

func TestTiledSource_FetchesAlignedTile(t *testing.T) {
	g := grid.NewTileGrid(grid.MustSRS(grid.EPSG4326), grid.Size{W: 256, H: 256}, grid.BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}, []grid.Level{{Res: 180.0 / 256, Cols: 2, Rows: 1}})
	client := &fakeTileClient{}
	ts := &TiledSource{Grid: g, Client: client}

	q := MapQuery{BBox: grid.BBox{MinX: -180, MinY: -90, MaxX: 0, MaxY: 90}, Size: grid.Size{W: 256, H: 256}, SRS: grid.MustSRS(grid.EPSG4326), Format: "png"}
	img, err := ts.Get(context.Background(), q)
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, 1, client.calls)
}
