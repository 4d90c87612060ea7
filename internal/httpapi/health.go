package httpapi

import "net/http"

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: s.version})
}

type metricsResponse struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	ActiveSessions   int     `json:"active_sessions"`
	TotalConnections uint64  `json:"total_connections"`
	Version          string  `json:"version"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metricsResponse{
		UptimeSeconds:    s.metrics.UptimeSeconds(),
		ActiveSessions:   s.store.Count(),
		TotalConnections: s.metrics.TotalConnections(),
		Version:          s.version,
	})
}
