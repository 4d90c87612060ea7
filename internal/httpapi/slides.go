package httpapi

import (
	"net/http"
	"strconv"

	"github.com/pathcollab/pathcollab/internal/slide"
)

type slideDescriptorResponse struct {
	SlideID      string `json:"slide_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	TileSize     int    `json:"tile_size"`
	LevelCount   int    `json:"level_count"`
	TileURLTempl string `json:"tile_url_template"`
}

func (s *Server) handleListSlides(w http.ResponseWriter, r *http.Request) {
	ids, err := slide.ListSlideIDs(s.cfg.Slide.Dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"slides": ids})
}

func (s *Server) handleDefaultSlide(w http.ResponseWriter, r *http.Request) {
	ids, err := slide.ListSlideIDs(s.cfg.Slide.Dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if len(ids) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "no slides available")
		return
	}
	s.describeSlide(w, r, ids[0])
}

func (s *Server) handleSlideDescriptor(w http.ResponseWriter, r *http.Request) {
	s.describeSlide(w, r, r.PathValue("id"))
}

func (s *Server) describeSlide(w http.ResponseWriter, r *http.Request, id string) {
	d, err := s.describer.Describe(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, slideDescriptorResponse{
		SlideID: d.SlideID, Width: d.Width, Height: d.Height,
		TileSize: d.TileSize, LevelCount: d.LevelCount, TileURLTempl: d.TileURLTempl,
	})
}

func (s *Server) handleSlideDZI(w http.ResponseWriter, r *http.Request) {
	xml, err := s.pipeline.DZIXML(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write(xml)
}

func (s *Server) handleSlideTile(w http.ResponseWriter, r *http.Request) {
	level, errL := strconv.Atoi(r.PathValue("level"))
	x, errX := strconv.Atoi(r.PathValue("x"))
	y, errY := strconv.Atoi(r.PathValue("y"))
	if errL != nil || errX != nil || errY != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "level/x/y must be integers")
		return
	}

	jpegBytes, err := s.pipeline.GetTile(r.Context(), r.PathValue("id"), level, x, y)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpegBytes)
}
