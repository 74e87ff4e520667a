// Command tilecached-demo serves a WMS-style "GetMap" HTTP endpoint backed
// by the tile-caching core, fronting a synthesized fixture source (no real
// upstream WMS/TMS server is required). It exercises maplayer.CacheMapLayer
// end-to-end the way a real deployment would wire and call it.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pspoerri/tilecached/internal/cachefs"
	"github.com/pspoerri/tilecached/internal/creator"
	"github.com/pspoerri/tilecached/internal/grid"
	"github.com/pspoerri/tilecached/internal/logging"
	"github.com/pspoerri/tilecached/internal/manager"
	"github.com/pspoerri/tilecached/internal/maplayer"
	"github.com/pspoerri/tilecached/internal/metrics"
	"github.com/pspoerri/tilecached/internal/source"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		listenAddr   string
		cacheDir     string
		format       string
		tileSize     int
		gridSRS      string
		metaSize     int
		maxTileLimit int
		lockTimeout  time.Duration
		poolSize     int
		development  bool
		showVersion  bool
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	flag.StringVar(&cacheDir, "cache-dir", "./tilecache", "On-disk cache directory")
	flag.StringVar(&format, "format", "png", "Tile encoding: png, jpeg, webp")
	flag.IntVar(&tileSize, "tile-size", 256, "Cache tile size in pixels")
	flag.StringVar(&gridSRS, "srs", grid.EPSG4326, "Grid SRS (EPSG:4326, EPSG:3857, EPSG:2056)")
	flag.IntVar(&metaSize, "meta-size", 2, "Meta-tile width/height in tiles (1 disables meta-tiling)")
	flag.IntVar(&maxTileLimit, "max-tile-limit", 100, "Reject requests spanning this many cache tiles or more (0 disables)")
	flag.DurationVar(&lockTimeout, "lock-timeout", 30*time.Second, "Per-tile creation lock timeout")
	flag.IntVar(&poolSize, "pool-size", 8, "Concurrent upstream fetch workers")
	flag.BoolVar(&development, "development", false, "Human-readable log output instead of JSON")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tilecached-demo [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Serve a cached WMS-style map endpoint backed by a synthesized fixture source.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("tilecached-demo %s (commit %s, built %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log, err := logging.New(logging.Config{Development: development})
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	srs := grid.MustSRS(gridSRS)
	world := worldBBox(srs)
	tileGrid := grid.NewTileGrid(srs, grid.Size{W: tileSize, H: tileSize}, world, []grid.Level{
		{Res: world.Width() / float64(2*tileSize), Cols: 2, Rows: 1},
		{Res: world.Width() / float64(4*tileSize), Cols: 4, Rows: 2},
		{Res: world.Width() / float64(8*tileSize), Cols: 8, Rows: 4},
		{Res: world.Width() / float64(16*tileSize), Cols: 16, Rows: 8},
		{Res: world.Width() / float64(32*tileSize), Cols: 32, Rows: 16},
	})

	fc := cachefs.NewFileCache(cacheDir, format)
	src, err := source.NewStaticSource(format)
	if err != nil {
		log.Fatalw("building fixture source", "error", err)
	}

	var metaGrid *grid.MetaGrid
	if metaSize > 1 {
		metaGrid = grid.NewMetaGrid(tileGrid, grid.Size{W: metaSize, H: metaSize}, 0)
	}

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	creatorCfg := creator.Config{
		Grid:        tileGrid,
		MetaGrid:    metaGrid,
		FileCache:   fc,
		Source:      src,
		Format:      format,
		LockDir:     cacheDir + "/.locks",
		LockTimeout: lockTimeout,
		PoolSize:    poolSize,
		Metrics:     reg,
		Log:         log,
		LayerName:   "demo",
	}
	tileCreator := creator.NewParallelCreator(creatorCfg)

	mgr := manager.New(manager.Config{
		Grid:      tileGrid,
		FileCache: fc,
		Creator:   tileCreator,
		Format:    format,
		Log:       log,
	})

	layer := &maplayer.CacheMapLayer{
		Manager:      mgr,
		Grid:         tileGrid,
		MaxTileLimit: maxTileLimit,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/map", mapHandler(layer, srs, log))

	log.Infow("listening", "addr", listenAddr, "cacheDir", cacheDir, "srs", srs.Code())
	if err := http.ListenAndServe(listenAddr, mux); err != nil {
		log.Fatalw("server exited", "error", err)
	}
}

// mapHandler parses a WMS-style GetMap query (bbox, width, height, srs,
// format) and renders it through layer.
func mapHandler(layer maplayer.MapLayer, defaultSRS grid.SRS, log interface {
	Errorw(string, ...interface{})
}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		bbox, err := parseBBox(q.Get("bbox"))
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid bbox: %v", err), http.StatusBadRequest)
			return
		}
		width, err := strconv.Atoi(firstNonEmpty(q.Get("width"), "256"))
		if err != nil || width <= 0 {
			http.Error(w, "invalid width", http.StatusBadRequest)
			return
		}
		height, err := strconv.Atoi(firstNonEmpty(q.Get("height"), "256"))
		if err != nil || height <= 0 {
			http.Error(w, "invalid height", http.StatusBadRequest)
			return
		}
		format := firstNonEmpty(q.Get("format"), "png")
		srs := defaultSRS
		if code := q.Get("srs"); code != "" {
			srs = grid.MustSRS(code)
		}

		query := source.MapQuery{
			BBox:   bbox,
			Size:   grid.Size{W: width, H: height},
			SRS:    srs,
			Format: format,
		}

		img, err := layer.GetMap(r.Context(), query)
		if err != nil {
			log.Errorw("GetMap failed", "error", err, "bbox", bbox)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		data, err := img.AsBuffer()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/"+format)
		w.Write(data) //nolint:errcheck
	}
}

func parseBBox(s string) (grid.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return grid.BBox{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return grid.BBox{}, err
		}
		vals[i] = v
	}
	return grid.BBox{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}, nil
}

func firstNonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// worldBBox returns the full-extent bbox for one of this package's built-in
// SRSes, the demo's stand-in for a configured layer extent.
func worldBBox(srs grid.SRS) grid.BBox {
	switch srs.Code() {
	case grid.EPSG3857:
		const merc = 20037508.342789244
		return grid.BBox{MinX: -merc, MinY: -merc, MaxX: merc, MaxY: merc}
	case grid.EPSG2056:
		return grid.BBox{MinX: 2485000, MinY: 1075000, MaxX: 2835000, MaxY: 1295000}
	default:
		return grid.BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}
	}
}
