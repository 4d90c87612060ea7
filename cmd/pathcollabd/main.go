package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathcollab/pathcollab/internal/config"
	"github.com/pathcollab/pathcollab/internal/httpapi"
	"github.com/pathcollab/pathcollab/internal/metrics"
	"github.com/pathcollab/pathcollab/internal/overlay"
	"github.com/pathcollab/pathcollab/internal/presence"
	"github.com/pathcollab/pathcollab/internal/session"
	"github.com/pathcollab/pathcollab/internal/slide"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

const (
	cleanupInterval = 30 * time.Second
	shutdownGrace   = 10 * time.Second
)

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pathcollabd [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the PathCollab collaborative slide viewer server.\n")
		fmt.Fprintf(os.Stderr, "Configuration is read from the environment; see §6.5 for the recognized variables.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("pathcollabd %s (commit %s)\n", version, commit)
		os.Exit(0)
	}

	cfg := config.Load()

	reg := metrics.NewRegistry()
	tileMetrics := slide.NewMetrics(reg.Prometheus)

	opener := slide.FileOpener{Dir: cfg.Slide.Dir}
	pipeline := slide.NewPipeline(opener, slide.Config{
		TileSize:        cfg.Slide.TileSize,
		JPEGQuality:     cfg.Slide.JPEGQuality,
		HandleCacheSize: cfg.Slide.CacheSize,
		CacheTTL:        time.Hour,
		CacheMaxBytes:   256 << 20,
		Concurrency:     0,
	}, tileMetrics)
	defer pipeline.Close()

	describer := slide.NewDescriber(pipeline, func(slideID string) string {
		return tileURLTemplate(cfg, slideID)
	})

	store := session.NewStore(cfg.Session.MaxConcurrentSessions)
	overlaySvc := overlay.NewService(store, maxOverlayLevel, func(overlayID string) (string, string) {
		return overlayURLTemplate(cfg, overlayID, "raster"), overlayURLTemplate(cfg, overlayID, "vec")
	})
	preloadOverlays(overlaySvc, cfg.Slide.Dir)

	hub := presence.NewHub(store, describer, presence.Config{
		MaxFollowers: cfg.Session.MaxFollowers,
		MaxDuration:  cfg.Session.MaxDuration,
		GracePeriod:  cfg.Session.PresenterGracePeriod,
		CursorHz:     cfg.Presence.CursorBroadcastHz,
		FollowerHz:   cfg.Presence.ViewportBroadcastHz,
	})

	server := httpapi.NewServer(httpapi.Deps{
		Config: cfg, Store: store, OverlaySvc: overlaySvc, Pipeline: pipeline,
		Describer: describer, Hub: hub, Metrics: reg, Version: version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.RunCleanupLoop(ctx, cleanupInterval)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: server}

	go func() {
		log.Printf("pathcollabd %s listening on %s (slides: %s)", version, addr, cfg.Slide.Dir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
}

// maxOverlayLevel bounds the spatial index's tile-bin map depth. It is
// a fixed ceiling, not derived from any slide's dimensions.
const maxOverlayLevel = 20

func tileURLTemplate(cfg config.Config, slideID string) string {
	return fmt.Sprintf("%s/api/slide/%s/tile/{level}/{x}/{y}", cfg.PublicBaseURL, slideID)
}

// overlayURLTemplate builds the raster or vector tile URL template a
// manifest reports for overlayID, kind being "raster" or "vec".
func overlayURLTemplate(cfg config.Config, overlayID, kind string) string {
	return fmt.Sprintf("%s/api/overlay/%s/%s/{level}/{x}/{y}", cfg.PublicBaseURL, overlayID, kind)
}

// preloadOverlays probes slideDir for a pre-derived overlay sitting
// alongside each known slide (§4.6) and, where one exists, derives and
// stores it up front so the first viewer never pays the derive cost.
// Slides without one are the common case and log nothing.
func preloadOverlays(svc *overlay.Service, slideDir string) {
	ids, err := slide.ListSlideIDs(slideDir)
	if err != nil {
		log.Printf("overlay preload: listing %s: %v", slideDir, err)
		return
	}
	for _, id := range ids {
		result, err := svc.DiscoverAndLoad(slideDir, id)
		if err != nil {
			continue
		}
		log.Printf("overlay preload: loaded %s for slide %q (%d cells, %d tissue tiles)",
			result.OverlayID, id, result.CellCount, result.TissueTileCount)
	}
}
