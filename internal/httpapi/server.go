// Package httpapi is the HTTP and WebSocket surface described in
// spec.md §6: the REST routes over slides and overlays, the JSON
// health/metrics summaries, and the /ws upgrade into the presence
// hub. Routing uses the standard library's net/http ServeMux pattern
// matching (Go 1.22+) rather than a third-party router — the choice
// of HTTP framework is named as an out-of-scope external collaborator
// concern, and nothing in the reference pack grounds adopting one.
package httpapi

import (
	"net/http"

	"github.com/pathcollab/pathcollab/internal/config"
	"github.com/pathcollab/pathcollab/internal/metrics"
	"github.com/pathcollab/pathcollab/internal/overlay"
	"github.com/pathcollab/pathcollab/internal/presence"
	"github.com/pathcollab/pathcollab/internal/session"
	"github.com/pathcollab/pathcollab/internal/slide"
)

// Server wires every process-wide singleton (session store, overlay
// service, tile pipeline, presence hub, metrics registry) into the
// HTTP handlers that serve them, per the "process-wide state" design
// note: no hidden globals, everything here is a field reached from
// main via explicit construction.
type Server struct {
	cfg        config.Config
	store      *session.Store
	overlaySvc *overlay.Service
	pipeline   *slide.Pipeline
	describer  *slide.Describer
	hub        *presence.Hub
	metrics    *metrics.Registry
	version    string

	mux     *http.ServeMux
	limiter *ipLimiter
}

// Deps bundles the collaborators NewServer wires together.
type Deps struct {
	Config     config.Config
	Store      *session.Store
	OverlaySvc *overlay.Service
	Pipeline   *slide.Pipeline
	Describer  *slide.Describer
	Hub        *presence.Hub
	Metrics    *metrics.Registry
	Version    string
}

// NewServer builds a Server and registers every route.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg: d.Config, store: d.Store, overlaySvc: d.OverlaySvc, pipeline: d.Pipeline,
		describer: d.Describer, hub: d.Hub, metrics: d.Metrics, version: d.Version,
		mux:     http.NewServeMux(),
		limiter: newIPLimiter(20, 40, d.Config.BehindProxy),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.Handle("GET /debug/metrics", s.metrics.PrometheusHandler())

	s.mux.HandleFunc("GET /api/slides", s.handleListSlides)
	s.mux.HandleFunc("GET /api/slides/default", s.handleDefaultSlide)
	s.mux.HandleFunc("GET /api/slide/{id}", s.handleSlideDescriptor)
	s.mux.HandleFunc("GET /api/slide/{id}/dzi", s.handleSlideDZI)
	s.mux.Handle("GET /api/slide/{id}/tile/{level}/{x}/{y}", s.limiter.middleware(http.HandlerFunc(s.handleSlideTile)))

	s.mux.Handle("POST /api/overlay/upload", s.limiter.middleware(http.HandlerFunc(s.handleOverlayUpload)))
	s.mux.HandleFunc("GET /api/overlay/{overlay_id}/manifest", s.handleOverlayManifest)
	s.mux.Handle("GET /api/overlay/{overlay_id}/raster/{level}/{x}/{y}", s.limiter.middleware(http.HandlerFunc(s.handleOverlayRaster)))
	s.mux.Handle("GET /api/overlay/{overlay_id}/vec/{level}/{x}/{y}", s.limiter.middleware(http.HandlerFunc(s.handleOverlayVector)))
	s.mux.HandleFunc("GET /api/overlay/{overlay_id}/query", s.handleOverlayQuery)

	s.mux.HandleFunc("GET /ws", s.handleWebSocket)

	if s.cfg.StaticFilesDir != "" {
		s.mux.Handle("GET /", http.FileServer(http.Dir(s.cfg.StaticFilesDir)))
	}
}

// ServeHTTP lets Server itself act as an http.Handler, wrapped in the
// permissive CORS policy every route shares.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	withCORS(s.mux).ServeHTTP(w, r)
}
