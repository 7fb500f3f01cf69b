package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/jcom-dev/mapclusters/internal/apierr"
	"github.com/jcom-dev/mapclusters/internal/cache"
	"github.com/jcom-dev/mapclusters/internal/precompute"
	"github.com/jcom-dev/mapclusters/internal/tiles"
	"github.com/jcom-dev/mapclusters/internal/viewport"
)

// Handlers holds every dependency the HTTP surface needs. Constructed once
// by the supervisor and wired into the chi router.
type Handlers struct {
	viewport    *viewport.Service
	tiles       *tiles.Service
	precompute  *precompute.Precomputer
	cache       cache.Store
	adminToken  string
	ready       *atomic.Bool
	skipPrecomp bool
}

// New constructs Handlers. ready is a shared flag the supervisor flips once
// the dataset is loaded and the server is willing to accept traffic.
func New(vp *viewport.Service, ts *tiles.Service, pc *precompute.Precomputer, c cache.Store, adminToken string, ready *atomic.Bool, skipPrecompute bool) *Handlers {
	return &Handlers{viewport: vp, tiles: ts, precompute: pc, cache: c, adminToken: adminToken, ready: ready, skipPrecomp: skipPrecompute}
}

// GetMarkers handles GET /api/markers.
//
//	@Summary	Get clustered markers for a viewport
//	@Tags		Markers
//	@Produce	json
//	@Param		min_lat	query	number	true	"Minimum latitude"
//	@Param		max_lat	query	number	true	"Maximum latitude"
//	@Param		min_lon	query	number	true	"Minimum longitude"
//	@Param		max_lon	query	number	true	"Maximum longitude"
//	@Param		zoom	query	number	true	"Zoom level"
//	@Success	200	{array}	models.Cluster
//	@Router		/api/markers [get]
func (h *Handlers) GetMarkers(w http.ResponseWriter, r *http.Request) {
	minLat, err1 := parseFloatParam(r, "min_lat")
	maxLat, err2 := parseFloatParam(r, "max_lat")
	minLon, err3 := parseFloatParam(r, "min_lon")
	maxLon, err4 := parseFloatParam(r, "max_lon")
	zoom, err5 := parseFloatParam(r, "zoom")

	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		RespondError(w, apierr.InvalidParams("min_lat, max_lat, min_lon, max_lon, zoom must all be numbers"))
		return
	}

	clusters, err := h.viewport.GetMarkers(r.Context(), minLat, maxLat, minLon, maxLon, zoom)
	if err != nil {
		RespondError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	RespondJSON(w, http.StatusOK, clusters)
}

// GetTile handles GET /api/tiles/{z}/{x}/{y}.
//
//	@Summary	Get clustered markers for a single tile
//	@Tags		Tiles
//	@Produce	json
//	@Param		z	path	int	true	"Zoom"
//	@Param		x	path	int	true	"Tile X"
//	@Param		y	path	int	true	"Tile Y"
//	@Success	200	{array}	models.Cluster
//	@Router		/api/tiles/{z}/{x}/{y} [get]
func (h *Handlers) GetTile(w http.ResponseWriter, r *http.Request) {
	z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errZ != nil || errX != nil || errY != nil {
		RespondError(w, apierr.InvalidParams("z, x, y must be integers"))
		return
	}

	clusters, err := h.tiles.GetTile(r.Context(), z, x, y)
	if err != nil {
		RespondError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	RespondJSON(w, http.StatusOK, clusters)
}

type statusResponse struct {
	APIReady   bool              `json:"api_ready"`
	Precompute precomputeSummary `json:"precompute"`
}

type precomputeSummary struct {
	Running      bool   `json:"running"`
	Completed    bool   `json:"completed"`
	Error        string `json:"error,omitempty"`
	LastRun      string `json:"last_run,omitempty"`
	TilesWritten int    `json:"tiles_written"`
	DurationMS   int64  `json:"duration_ms"`
}

// GetStatus handles GET /api/status.
//
//	@Summary	Report readiness and precompute status
//	@Tags		Status
//	@Produce	json
//	@Success	200	{object}	statusResponse
//	@Router		/api/status [get]
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{APIReady: h.ready.Load()}

	if h.skipPrecomp || h.precompute == nil {
		RespondJSON(w, http.StatusOK, resp)
		return
	}

	st := h.precompute.GetStatus()
	resp.Precompute = precomputeSummary{
		Running:      st.Running,
		Completed:    st.Completed,
		Error:        st.Error,
		TilesWritten: st.TilesWritten,
		DurationMS:   st.DurationMS,
	}
	if !st.LastRun.IsZero() {
		resp.Precompute.LastRun = st.LastRun.Format("2006-01-02T15:04:05Z07:00")
	}

	RespondJSON(w, http.StatusOK, resp)
}

// FlushCache handles DELETE /api/cache, the supplemented admin escape
// hatch for dataset redeploys (see SPEC_FULL.md). Guarded by a static
// bearer token compared in constant time; this is not an auth system.
//
//	@Summary	Flush tile and viewport cache entries
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Success	204
//	@Router		/api/cache [delete]
func (h *Handlers) FlushCache(w http.ResponseWriter, r *http.Request) {
	if h.adminToken == "" {
		RespondError(w, apierr.InvalidParams("admin cache flush is disabled"))
		return
	}

	token := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix ||
		subtle.ConstantTimeCompare([]byte(token[len(prefix):]), []byte(h.adminToken)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	for _, pattern := range []string{"tile:*", "viewport:*"} {
		if err := h.cache.DeleteByPattern(r.Context(), pattern); err != nil {
			RespondError(w, err)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseFloatParam(r *http.Request, name string) (float64, error) {
	return strconv.ParseFloat(r.URL.Query().Get(name), 64)
}
