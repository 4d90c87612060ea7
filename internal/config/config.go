// Package config loads server configuration from environment variables,
// per the recognized-options table in the specification. Every variable
// has a default; an absent value falls back to that default, and an
// unparsable one is logged and falls back too, rather than failing
// startup.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration, grouped the way the recognized
// environment variables are grouped in the specification.
type Config struct {
	Host           string
	Port           int
	PublicBaseURL  string
	BehindProxy    bool

	Session  SessionConfig
	Presence PresenceConfig
	Slide    SlideConfig

	StaticFilesDir string
}

// SessionConfig controls session lifecycle and capacity limits.
type SessionConfig struct {
	MaxFollowers          int
	MaxConcurrentSessions int
	MaxDuration           time.Duration
	PresenterGracePeriod  time.Duration
}

// PresenceConfig controls the presence broadcast cadence.
type PresenceConfig struct {
	CursorBroadcastHz   int
	ViewportBroadcastHz int
}

// SlideConfig controls the tile pipeline.
type SlideConfig struct {
	Dir         string
	TileSize    int
	JPEGQuality int
	CacheSize   int
}

// Defaults mirror §6.5 of the specification exactly.
func Defaults() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          8080,
		PublicBaseURL: "",
		BehindProxy:   false,
		Session: SessionConfig{
			MaxFollowers:          20,
			MaxConcurrentSessions: 50,
			MaxDuration:           4 * time.Hour,
			PresenterGracePeriod:  30 * time.Second,
		},
		Presence: PresenceConfig{
			CursorBroadcastHz:   30,
			ViewportBroadcastHz: 10,
		},
		Slide: SlideConfig{
			Dir:         "./data/slides",
			TileSize:    256,
			JPEGQuality: 85,
			CacheSize:   10,
		},
		StaticFilesDir: "",
	}
}

// Load reads a .env file if present (development convenience; missing
// file is not an error) and then layers environment variables over the
// defaults. It never returns an error: a malformed value is logged and
// the default for that field is kept, matching the "invalid values fall
// back to defaults" requirement.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env present but unreadable: %v", err)
	}

	cfg := Defaults()

	cfg.Host = getString("HOST", cfg.Host)
	cfg.Port = getInt("PORT", cfg.Port)
	cfg.PublicBaseURL = getString("PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.BehindProxy = getBool("BEHIND_PROXY", cfg.BehindProxy)

	cfg.Session.MaxFollowers = getInt("MAX_FOLLOWERS", cfg.Session.MaxFollowers)
	cfg.Session.MaxConcurrentSessions = getInt("MAX_CONCURRENT_SESSIONS", cfg.Session.MaxConcurrentSessions)
	cfg.Session.MaxDuration = getHours("SESSION_MAX_DURATION_HOURS", cfg.Session.MaxDuration)
	cfg.Session.PresenterGracePeriod = getSeconds("PRESENTER_GRACE_PERIOD_SECS", cfg.Session.PresenterGracePeriod)

	cfg.Presence.CursorBroadcastHz = getInt("CURSOR_BROADCAST_HZ", cfg.Presence.CursorBroadcastHz)
	cfg.Presence.ViewportBroadcastHz = getInt("VIEWPORT_BROADCAST_HZ", cfg.Presence.ViewportBroadcastHz)

	cfg.Slide.Dir = getString("SLIDES_DIR", cfg.Slide.Dir)
	cfg.Slide.TileSize = getInt("SLIDE_TILE_SIZE", cfg.Slide.TileSize)
	cfg.Slide.JPEGQuality = clamp(getInt("SLIDE_JPEG_QUALITY", cfg.Slide.JPEGQuality), 1, 100)
	cfg.Slide.CacheSize = getInt("SLIDE_CACHE_SIZE", cfg.Slide.CacheSize)

	cfg.StaticFilesDir = getString("STATIC_FILES_DIR", cfg.StaticFilesDir)

	return cfg
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1"
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getHours(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	hours, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		log.Printf("config: %s=%q is not a duration in hours, using default", key, v)
		return fallback
	}
	return time.Duration(hours) * time.Hour
}

func getSeconds(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	secs, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		log.Printf("config: %s=%q is not a duration in seconds, using default", key, v)
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
