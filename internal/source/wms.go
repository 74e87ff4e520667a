package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pspoerri/tilecached/internal/composite"
	"github.com/pspoerri/tilecached/internal/grid"
)

// WMSRequestTemplate is the static part of a GetMap request: base URL plus
// any fixed query parameters such as LAYERS/VERSION/STYLES.
type WMSRequestTemplate struct {
	BaseURL string
	Params  map[string]string
}

// url renders the complete request URL for query.
func (t WMSRequestTemplate) url(q MapQuery) (string, error) {
	u, err := url.Parse(t.BaseURL)
	if err != nil {
		return "", fmt.Errorf("source: invalid base url %q: %w", t.BaseURL, err)
	}
	vals := u.Query()
	for k, v := range t.Params {
		vals.Set(k, v)
	}
	vals.Set("BBOX", fmt.Sprintf("%g,%g,%g,%g", q.BBox.MinX, q.BBox.MinY, q.BBox.MaxX, q.BBox.MaxY))
	vals.Set("WIDTH", strconv.Itoa(q.Size.W))
	vals.Set("HEIGHT", strconv.Itoa(q.Size.H))
	vals.Set("SRS", q.SRS.Code())
	vals.Set("CRS", q.SRS.Code())
	vals.Set("FORMAT", "image/"+q.Format)
	if q.Transparent {
		vals.Set("TRANSPARENT", "true")
	}
	u.RawQuery = vals.Encode()
	return u.String(), nil
}

// WMSClient fetches map images from an OGC WMS-style endpoint, reprojecting
// client-side when the endpoint doesn't natively support the requested SRS.
// Requests are rate-limited with golang.org/x/time/rate so a burst of
// meta-tile creation doesn't hammer a single upstream.
type WMSClient struct {
	Template     WMSRequestTemplate
	HTTPClient   *http.Client
	SupportedSRS []grid.SRS // empty means "accepts any requested SRS directly"
	Limiter      *rate.Limiter
}

// NewWMSClient constructs a client. httpClient defaults to http.DefaultClient
// if nil; limiter may be nil to disable rate limiting.
func NewWMSClient(tmpl WMSRequestTemplate, httpClient *http.Client, supportedSRS []grid.SRS, limiter *rate.Limiter) *WMSClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WMSClient{Template: tmpl, HTTPClient: httpClient, SupportedSRS: supportedSRS, Limiter: limiter}
}

// Get fetches query's bbox as a map image, reprojecting through the best
// supported SRS if the endpoint doesn't serve query.SRS directly.
func (c *WMSClient) Get(ctx context.Context, query MapQuery) (*composite.Image, error) {
	if len(c.SupportedSRS) > 0 && !c.supports(query.SRS) {
		return c.getTransformed(ctx, query)
	}
	return c.retrieve(ctx, query)
}

func (c *WMSClient) supports(srs grid.SRS) bool {
	for _, s := range c.SupportedSRS {
		if s.Code() == srs.Code() {
			return true
		}
	}
	return false
}

// getTransformed fetches the bbox reprojected into a supported SRS, then
// warps the result back into the requested dst SRS/bbox/size.
func (c *WMSClient) getTransformed(ctx context.Context, query MapQuery) (*composite.Image, error) {
	dstSRS := query.SRS
	srcSRS := c.bestSupportedSRS(dstSRS)
	srcBBox, err := dstSRS.TransformBBoxTo(srcSRS, query.BBox)
	if err != nil {
		return nil, wrapFetchErr(err)
	}

	srcQuery := MapQuery{BBox: srcBBox, Size: query.Size, SRS: srcSRS, Format: query.Format, Transparent: query.Transparent}
	img, err := c.retrieve(ctx, srcQuery)
	if err != nil {
		return nil, err
	}

	warped := composite.Transform(img.Img, srcBBox, srcSRS, query.BBox, dstSRS, query.Size, composite.ResamplingBilinear)
	return composite.NewImage(warped, img.Encoder), nil
}

// bestSupportedSRS picks a supported SRS of the same lat/long-ness as srs,
// falling back to the first supported SRS.
func (c *WMSClient) bestSupportedSRS(srs grid.SRS) grid.SRS {
	for _, s := range c.SupportedSRS {
		if s.IsLatLong() == srs.IsLatLong() {
			return s
		}
	}
	return c.SupportedSRS[0]
}

func (c *WMSClient) retrieve(ctx context.Context, query MapQuery) (*composite.Image, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, wrapFetchErr(err)
		}
	}

	reqURL, err := c.Template.url(query)
	if err != nil {
		return nil, wrapFetchErr(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, wrapFetchErr(err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, wrapFetchErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream returned %s for %s", ErrTileSourceError, resp.Status, reqURL)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapFetchErr(err)
	}

	format := query.Format
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if f, ok := formatFromContentType(ct); ok {
			format = f
		}
	}
	img, err := composite.DecodeImage(body, format)
	if err != nil {
		return nil, wrapFetchErr(err)
	}
	return img, nil
}

func formatFromContentType(ct string) (string, bool) {
	ct = strings.TrimPrefix(ct, "image/")
	switch ct {
	case "png", "jpeg", "webp":
		return ct, true
	default:
		return "", false
	}
}

// WMSSource adapts a WMSClient to the Source interface. It supports
// meta-tiles: a single WMS GetMap request can cover several cache tiles at
// once.
type WMSSource struct {
	Client *WMSClient
}

func (s *WMSSource) Get(ctx context.Context, query MapQuery) (*composite.Image, error) {
	return s.Client.Get(ctx, query)
}

func (s *WMSSource) SupportsMetaTiles() bool { return true }
