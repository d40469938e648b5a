package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vainnor/atc-hours/models"
	"github.com/vainnor/atc-hours/types"
)

type Collector interface {
	GetStats() types.CollectionStats
}

type OnlineReader interface {
	OnlineControllers(ctx context.Context) ([]models.OnlineController, error)
}

type HoursReader interface {
	Hours(ctx context.Context, cid, month, year int) (*models.HoursEntry, error)
}

type Handlers struct {
	Stats  Collector
	Roster OnlineReader
	Ledger HoursReader
	Log    *zap.Logger
	Now    func() time.Time
}

type HoursResponse struct {
	models.HoursEntry
	TotalHours float64 `json:"total_hours"`
}

// Online returns the controllers online as of the last reconciliation.
func (h *Handlers) Online(w http.ResponseWriter, r *http.Request) {
	online, err := h.Roster.OnlineControllers(r.Context())
	if err != nil {
		h.Log.Error("reading online roster", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, online)
}

// ControllerHours returns a member's hours for ?month=&year=, defaulting
// to the current UTC month.
func (h *Handlers) ControllerHours(w http.ResponseWriter, r *http.Request) {
	cid, err := strconv.Atoi(mux.Vars(r)["cid"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cid")
		return
	}

	now := h.now().UTC()
	month, year := int(now.Month()), now.Year()
	q := r.URL.Query()
	if s := q.Get("month"); s != "" {
		month, err = strconv.Atoi(s)
		if err != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
			return
		}
	}
	if s := q.Get("year"); s != "" {
		year, err = strconv.Atoi(s)
		if err != nil || year < 1 {
			writeError(w, http.StatusBadRequest, "Invalid year")
			return
		}
	}

	entry, err := h.Ledger.Hours(r.Context(), cid, month, year)
	if err != nil {
		h.Log.Error("reading hours", zap.Int("cid", cid), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "No data found")
		return
	}

	writeJSON(w, http.StatusOK, HoursResponse{HoursEntry: *entry, TotalHours: entry.Total()})
}

func (h *Handlers) CollectorStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Stats.GetStats())
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
