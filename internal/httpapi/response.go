package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pathcollab/pathcollab/internal/overlay"
	"github.com/pathcollab/pathcollab/internal/session"
	"github.com/pathcollab/pathcollab/internal/slide"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the {error, code} body every HTTP error response
// carries, per spec.md §7's "User-visible behavior".
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}

// statusFor maps a package error to the HTTP status spec.md §6.2/§7
// names for it, falling back to 500 for anything unrecognized.
func statusFor(err error) (status int, code string) {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrParticipantNotFound),
		errors.Is(err, overlay.ErrNotFound),
		errors.Is(err, overlay.ErrSessionNotFound),
		errors.Is(err, overlay.ErrTileNotFound):
		return http.StatusNotFound, errCode(err)
	case errors.Is(err, overlay.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, errCode(err)
	case errors.Is(err, overlay.ErrTooManyCells),
		errors.Is(err, overlay.ErrTooManyTiles),
		errors.Is(err, overlay.ErrUnsupportedFormat),
		errors.Is(err, slide.ErrInvalidLevel),
		errors.Is(err, slide.ErrInvalidCoordinates),
		errors.Is(err, session.ErrInvalidJoinSecret),
		errors.Is(err, session.ErrInvalidPresenterKey):
		return http.StatusBadRequest, errCode(err)
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func errCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "not_found"
	case errors.Is(err, session.ErrParticipantNotFound):
		return "participant_not_found"
	case errors.Is(err, overlay.ErrNotFound):
		return "not_found"
	case errors.Is(err, overlay.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, overlay.ErrTileNotFound):
		return "tile_not_found"
	case errors.Is(err, overlay.ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, overlay.ErrTooManyCells):
		return "too_many_cells"
	case errors.Is(err, overlay.ErrTooManyTiles):
		return "too_many_tiles"
	case errors.Is(err, overlay.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, slide.ErrInvalidLevel):
		return "invalid_level"
	case errors.Is(err, slide.ErrInvalidCoordinates):
		return "invalid_coordinates"
	case errors.Is(err, session.ErrInvalidJoinSecret):
		return "invalid_join_secret"
	case errors.Is(err, session.ErrInvalidPresenterKey):
		return "invalid_presenter_key"
	default:
		return "internal_error"
	}
}
