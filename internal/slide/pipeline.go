package slide

import (
	"context"
	"fmt"
	"time"
)

// Pipeline implements get_tile: resolve a slide handle, map the DZI
// tile request onto the native pyramid, read, resize, and encode,
// with an encoded-tile cache in front of the whole thing.
type Pipeline struct {
	handles *HandleCache
	cache   *TileCache
	pool    *workerPool
	metrics *Metrics
	quality int
	tileSize int
}

// Config configures a Pipeline.
type Config struct {
	TileSize      int
	JPEGQuality   int
	HandleCacheSize int
	CacheTTL      time.Duration
	CacheMaxBytes int64
	Concurrency   int
}

// NewPipeline builds a Pipeline backed by opener for slide access.
func NewPipeline(opener Opener, cfg Config, metrics *Metrics) *Pipeline {
	if cfg.TileSize <= 0 {
		cfg.TileSize = 256
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Pipeline{
		handles:  NewHandleCache(opener, cfg.HandleCacheSize),
		cache:    NewTileCache(cfg.CacheTTL, cfg.CacheMaxBytes),
		pool:     newWorkerPool(cfg.Concurrency),
		metrics:  metrics,
		quality:  cfg.JPEGQuality,
		tileSize: cfg.TileSize,
	}
}

// GetTile serves one DZI-convention tile as JPEG bytes.
func (p *Pipeline) GetTile(ctx context.Context, slideID string, level, x, y int) ([]byte, error) {
	start := time.Now()
	p.metrics.Requests.Inc()

	key := TileCacheKey{SlideID: slideID, Level: level, X: x, Y: y}
	if data, ok := p.cache.Get(key); ok {
		p.metrics.CacheHits.Inc()
		return data, nil
	}
	p.metrics.CacheMisses.Inc()

	reader, err := p.handles.Get(ctx, slideID)
	if err != nil {
		p.metrics.Errors.WithLabelValues("slide_open_error").Inc()
		return nil, fmt.Errorf("slide: opening %q: %w", slideID, err)
	}

	maxW, maxH := reader.LevelDimensions(0)
	mapping, err := mapDZITile(level, x, y, p.tileSize, maxW, maxH, reader.LevelCount(), reader.LevelDownsample)
	if err != nil {
		p.metrics.Errors.WithLabelValues("invalid_coordinates").Inc()
		return nil, err
	}

	readStart := time.Now()
	region, err := reader.ReadRegion(ctx, mapping.nativeLevel, mapping.regionX, mapping.regionY, mapping.regionW, mapping.regionH)
	p.metrics.ReadSeconds.Observe(time.Since(readStart).Seconds())
	if err != nil {
		p.metrics.Errors.WithLabelValues("read_error").Inc()
		return nil, fmt.Errorf("slide: reading region: %w", err)
	}

	jpegBytes, err := p.pool.run(ctx, func() ([]byte, error) {
		pixels := region
		if mapping.needsResize {
			resizeStart := time.Now()
			pixels = lanczos3(region, mapping.regionW, mapping.regionH, mapping.targetW, mapping.targetH)
			p.metrics.ResizeSeconds.Observe(time.Since(resizeStart).Seconds())
		}

		encodeStart := time.Now()
		out, err := JPEGEncoder{Quality: p.quality}.Encode(pixels, mapping.targetW, mapping.targetH)
		p.metrics.EncodeSeconds.Observe(time.Since(encodeStart).Seconds())
		return out, err
	})
	if err != nil {
		p.metrics.Errors.WithLabelValues("encode_error").Inc()
		return nil, fmt.Errorf("slide: encoding tile: %w", err)
	}

	p.cache.Put(key, jpegBytes)
	p.metrics.TileSeconds.Observe(time.Since(start).Seconds())
	return jpegBytes, nil
}

// MaxLevel returns the DZI top level for slideID, opening its handle
// if necessary.
func (p *Pipeline) MaxLevel(ctx context.Context, slideID string) (int, error) {
	reader, err := p.handles.Get(ctx, slideID)
	if err != nil {
		return 0, err
	}
	w, h := reader.LevelDimensions(0)
	return MaxDZILevel(w, h), nil
}

// Close releases every cached slide handle.
func (p *Pipeline) Close() error {
	p.pool.close()
	return p.handles.Close()
}
