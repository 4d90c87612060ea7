package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/pathcollab/pathcollab/internal/overlay"
	"github.com/pathcollab/pathcollab/internal/session"
)

func (s *Server) handleOverlayUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing session_id query parameter")
		return
	}

	body := http.MaxBytesReader(w, r.Body, overlay.MaxPayloadBytes)
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds maximum size")
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	result, err := s.overlaySvc.UploadOverlay(sessionID, raw)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err.Error())
		return
	}

	manifest, err := s.overlaySvc.GetManifest(result.OverlayID)
	if err == nil {
		s.hub.BroadcastOverlayLoaded(sessionIDFrom(result.OverlayID), result.OverlayID,
			result.ContentSHA256, manifest.CellCount, manifest.TissueTileCount)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"overlay_id":        result.OverlayID,
		"content_sha256":    result.ContentSHA256,
		"cell_count":        result.CellCount,
		"tissue_tile_count": result.TissueTileCount,
	})
}

// sessionIDFrom recovers the session id prefix of a session-prefixed
// overlay id (§4.2: "<session_id>-<content_sha256[:16]>").
func sessionIDFrom(overlayID string) session.ID {
	for i := len(overlayID) - 1; i >= 0; i-- {
		if overlayID[i] == '-' {
			return session.ID(overlayID[:i])
		}
	}
	return session.ID(overlayID)
}

func (s *Server) handleOverlayManifest(w http.ResponseWriter, r *http.Request) {
	m, err := s.overlaySvc.GetManifest(r.PathValue("overlay_id"))
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"overlay_id":        m.OverlayID,
		"content_sha256":    m.ContentSHA256,
		"tile_size":         m.TileSize,
		"levels":            m.Levels,
		"cell_classes":      m.CellClasses,
		"tissue_classes":    m.TissueClasses,
		"cell_count":        m.CellCount,
		"tissue_tile_count": m.TissueTileCount,
		"raster_url":        m.RasterURLTempl,
		"vector_url":        m.VectorURLTempl,
	})
}

func (s *Server) handleOverlayRaster(w http.ResponseWriter, r *http.Request) {
	level, x, y, ok := pathLevelXY(w, r)
	if !ok {
		return
	}
	pixels, err := s.overlaySvc.GetRasterTile(r.PathValue("overlay_id"), level, x, y)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(pixels)
}

func (s *Server) handleOverlayVector(w http.ResponseWriter, r *http.Request) {
	level, x, y, ok := pathLevelXY(w, r)
	if !ok {
		return
	}
	cells, err := s.overlaySvc.GetVectorChunk(r.PathValue("overlay_id"), level, x, y, overlay.RasterTileSize)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cells": cells})
}

func (s *Server) handleOverlayQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minX, errA := strconv.ParseFloat(q.Get("min_x"), 64)
	minY, errB := strconv.ParseFloat(q.Get("min_y"), 64)
	maxX, errC := strconv.ParseFloat(q.Get("max_x"), 64)
	maxY, errD := strconv.ParseFloat(q.Get("max_y"), 64)
	if errA != nil || errB != nil || errC != nil || errD != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "min_x/min_y/max_x/max_y must be numbers")
		return
	}
	limit := overlay.VectorChunkCap
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	cells, err := s.overlaySvc.QueryViewport(r.PathValue("overlay_id"), minX, minY, maxX, maxY, limit)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cells": cells})
}

func pathLevelXY(w http.ResponseWriter, r *http.Request) (level, x, y int, ok bool) {
	var errL, errX, errY error
	level, errL = strconv.Atoi(r.PathValue("level"))
	x, errX = strconv.Atoi(r.PathValue("x"))
	y, errY = strconv.Atoi(r.PathValue("y"))
	if errL != nil || errX != nil || errY != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "level/x/y must be integers")
		return 0, 0, 0, false
	}
	return level, x, y, true
}
