// Package maplayer implements the MapLayer family: the public-facing
// "render a map image for this query" contract, composed from a
// TileManager-backed cache, a direct pass-through source, or conditional
// dispatch by resolution/SRS.
package maplayer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/go-playground/validator/v10"

	"github.com/pspoerri/tilecached/internal/composite"
	"github.com/pspoerri/tilecached/internal/grid"
	"github.com/pspoerri/tilecached/internal/manager"
	"github.com/pspoerri/tilecached/internal/source"
)

// ErrTooManyTiles is returned when a CacheMapLayer query would require
// creating/loading MaxTileLimit or more cache tiles.
var ErrTooManyTiles = errors.New("maplayer: too many tiles requested")

var validate = validator.New()

// MapLayer renders a map image for a query.
type MapLayer interface {
	GetMap(ctx context.Context, query source.MapQuery) (*composite.Image, error)
}

// DirectMapLayer proxies a Source directly, with no caching.
type DirectMapLayer struct {
	Source source.Source
}

func (l *DirectMapLayer) GetMap(ctx context.Context, query source.MapQuery) (*composite.Image, error) {
	if err := validate.Struct(query); err != nil {
		return nil, fmt.Errorf("maplayer: invalid query: %w", err)
	}
	return l.Source.Get(ctx, query)
}

// CacheMapLayer serves a map image out of a TileManager-backed cache,
// stitching and reprojecting the affected tiles to cover exactly the
// requested bbox/size/SRS.
type CacheMapLayer struct {
	Manager      *manager.Manager
	Grid         *grid.TileGrid
	Transparent  bool
	MaxTileLimit int // 0 disables the limit
}

func (l *CacheMapLayer) GetMap(ctx context.Context, query source.MapQuery) (*composite.Image, error) {
	if err := validate.Struct(query); err != nil {
		return nil, fmt.Errorf("maplayer: invalid query: %w", err)
	}

	srcBBox, tileGrid, coords, err := l.Grid.GetAffectedTiles(query.BBox, query.Size, query.SRS)
	if err != nil {
		if errors.Is(err, grid.ErrInvalidBBox) || errors.Is(err, grid.ErrBlankImage) {
			return nil, err
		}
		return nil, fmt.Errorf("maplayer: %w", err)
	}

	numTiles := tileGrid.W * tileGrid.H
	if l.MaxTileLimit > 0 && numTiles >= l.MaxTileLimit {
		return nil, fmt.Errorf("%w: %d tiles reaches limit %d", ErrTooManyTiles, numTiles, l.MaxTileLimit)
	}

	collection, err := l.Manager.LoadTileCoords(ctx, coords)
	if err != nil {
		return nil, err
	}

	images := make([]image.Image, len(coords))
	for i, c := range coords {
		t := collection.Get(c)
		if im, ok := t.Source.(*composite.Image); ok {
			images[i] = im.Img
		}
	}

	mosaic := composite.StitchGrid(tileGrid, l.Grid.TileSize, images)

	out := composite.Transform(mosaic, srcBBox, l.Grid.SRS, query.BBox, query.SRS, query.Size, composite.ResamplingBilinear)

	enc, err := composite.NewEncoder(query.Format, 0)
	if err != nil {
		return nil, err
	}
	return composite.NewImage(out, enc), nil
}

// ResolutionConditional dispatches to One or Two depending on the
// requested resolution relative to Resolution.
type ResolutionConditional struct {
	One, Two   MapLayer
	Resolution float64
	SRS        grid.SRS
}

func (l *ResolutionConditional) GetMap(ctx context.Context, query source.MapQuery) (*composite.Image, error) {
	bbox := query.BBox
	if query.SRS.Code() != l.SRS.Code() {
		var err error
		bbox, err = query.SRS.TransformBBoxTo(l.SRS, bbox)
		if err != nil {
			return nil, err
		}
	}
	xres := bbox.Width() / float64(query.Size.W)
	yres := bbox.Height() / float64(query.Size.H)
	res := xres
	if yres < res {
		res = yres
	}
	if res > l.Resolution {
		return l.One.GetMap(ctx, query)
	}
	return l.Two.GetMap(ctx, query)
}

// SRSConditional dispatches by the query's SRS to whichever layer was
// registered for it, or the best same-type (geographic/projected)
// fallback if none was registered for that exact SRS.
type SRSConditional struct {
	bySRS      map[string]MapLayer
	geographic MapLayer
	projected  MapLayer
	firstAny   MapLayer
}

// SRSLayer associates a MapLayer with the SRS codes it should serve.
type SRSLayer struct {
	Layer MapLayer
	SRS   []grid.SRS
}

// NewSRSConditional builds an SRSConditional from an ordered list of
// (layer, srs-list) pairs.
func NewSRSConditional(layers []SRSLayer) *SRSConditional {
	c := &SRSConditional{bySRS: make(map[string]MapLayer)}
	for _, l := range layers {
		for _, s := range l.SRS {
			c.bySRS[s.Code()] = l.Layer
			if c.firstAny == nil {
				c.firstAny = l.Layer
			}
			if s.IsLatLong() && c.geographic == nil {
				c.geographic = l.Layer
			}
			if !s.IsLatLong() && c.projected == nil {
				c.projected = l.Layer
			}
		}
	}
	return c
}

func (l *SRSConditional) selectLayer(querySRS grid.SRS) MapLayer {
	if layer, ok := l.bySRS[querySRS.Code()]; ok {
		return layer
	}
	if querySRS.IsLatLong() && l.geographic != nil {
		return l.geographic
	}
	if !querySRS.IsLatLong() && l.projected != nil {
		return l.projected
	}
	return l.firstAny
}

func (l *SRSConditional) GetMap(ctx context.Context, query source.MapQuery) (*composite.Image, error) {
	layer := l.selectLayer(query.SRS)
	return layer.GetMap(ctx, query)
}
