package httputil

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GetFrameIndex reads the :frame route parameter. If it is missing or not a
// non-negative integer, it writes a 400 status code with the reason and
// returns false.
func GetFrameIndex(w http.ResponseWriter, r *http.Request) (int, zerolog.Logger, bool) {
	raw := httprouter.ParamsFromContext(r.Context()).ByName("frame")
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		http.Error(w, fmt.Sprintf("invalid frame index %q", raw), http.StatusBadRequest)
		return 0, zerolog.Nop(), false
	}
	return i, log.With().Int("frame", i).Logger(), true
}

// GetLimit reads the optional limit query parameter. It returns 0, meaning no
// limit, when the parameter is absent, and writes a 400 status code and
// returns false when it is malformed.
func GetLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		http.Error(w, fmt.Sprintf("invalid limit %q", raw), http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}
