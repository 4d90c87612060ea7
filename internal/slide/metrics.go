package slide

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the tile pipeline's Prometheus instruments: per-phase
// histograms for read/resize/encode, an aggregate tile duration
// histogram, and request/error/cache-hit/cache-miss counters.
type Metrics struct {
	ReadSeconds   prometheus.Histogram
	ResizeSeconds prometheus.Histogram
	EncodeSeconds prometheus.Histogram
	TileSeconds   prometheus.Histogram

	Requests    prometheus.Counter
	Errors      *prometheus.CounterVec
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewMetrics registers the tile pipeline's instruments against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	buckets := prometheus.ExponentialBuckets(0.001, 2, 14)

	m := &Metrics{
		ReadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pathcollab", Subsystem: "tile", Name: "read_seconds",
			Help: "Time spent reading a native-level region from a slide reader.", Buckets: buckets,
		}),
		ResizeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pathcollab", Subsystem: "tile", Name: "resize_seconds",
			Help: "Time spent Lanczos-resizing a tile region.", Buckets: buckets,
		}),
		EncodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pathcollab", Subsystem: "tile", Name: "encode_seconds",
			Help: "Time spent JPEG-encoding a tile.", Buckets: buckets,
		}),
		TileSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pathcollab", Subsystem: "tile", Name: "tile_duration_seconds",
			Help: "End-to-end tile request duration.", Buckets: buckets,
		}),
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pathcollab", Subsystem: "tile", Name: "requests_total",
			Help: "Total tile requests.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pathcollab", Subsystem: "tile", Name: "errors_total",
			Help: "Total tile request errors, by kind.",
		}, []string{"kind"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pathcollab", Subsystem: "tile", Name: "cache_hits_total",
			Help: "Total encoded-tile cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pathcollab", Subsystem: "tile", Name: "cache_misses_total",
			Help: "Total encoded-tile cache misses.",
		}),
	}

	reg.MustRegister(m.ReadSeconds, m.ResizeSeconds, m.EncodeSeconds, m.TileSeconds,
		m.Requests, m.Errors, m.CacheHits, m.CacheMisses)
	return m
}
