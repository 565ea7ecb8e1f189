// Package api serves read-only observation endpoints over the running
// grid simulation. Everything is GET; mutation stays inside the game.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ironveil/fluxgrid/internal/engine"
	"github.com/ironveil/fluxgrid/internal/grid"
	"github.com/ironveil/fluxgrid/internal/persistence"
)

// Per-client request budget for the observation endpoints.
const (
	rateLimitRequests = 120
	rateLimitWindow   = time.Minute
)

// Server serves grid state over HTTP.
type Server struct {
	Coord *engine.Coordinator
	DB    *persistence.DB // optional; enables the archived-events endpoint
	Port  int
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	mux := http.NewServeMux()
	rl := NewRateLimiter(rateLimitRequests, rateLimitWindow)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, RateLimitMiddleware(rl, h))
	}

	handle("/api/v1/status", s.handleStatus)
	handle("/api/v1/summary", s.handleSummary)
	handle("/api/v1/stability", s.handleStability)
	handle("/api/v1/redundancy", s.handleRedundancy)
	handle("/api/v1/events", s.handleEvents)
	handle("/api/v1/district/", s.handleDistrict)

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// factionParam parses the ?faction= query parameter.
func factionParam(r *http.Request) (grid.Faction, bool) {
	raw := r.URL.Query().Get("faction")
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, false
	}
	return grid.Faction(n), true
}

// handleStatus returns the aggregate grid picture for one faction.
// GET /api/v1/status?faction=N
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	f, ok := factionParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "faction parameter required")
		return
	}
	var st engine.FactionStatus
	s.Coord.WithLock(func() {
		st = s.Coord.Grid().FactionStatus(f)
	})
	writeJSON(w, http.StatusOK, st)
}

// handleSummary returns a human-readable digest across all factions.
// GET /api/v1/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	type factionSummary struct {
		Faction    grid.Faction `json:"faction"`
		Generation string       `json:"generation"`
		Demand     string       `json:"demand"`
		Balance    string       `json:"balance"`
		Plants     string       `json:"plants"`
		Districts  string       `json:"districts"`
	}

	var (
		tick      uint64
		daylight  float64
		summaries []factionSummary
	)
	s.Coord.WithLock(func() {
		g := s.Coord.Grid()
		daylight = s.Coord.Daylight().Multiplier()
		for _, f := range g.Factions() {
			st := g.FactionStatus(f)
			summaries = append(summaries, factionSummary{
				Faction:    f,
				Generation: humanize.SIWithDigits(st.Generation*1e6, 1, "W"),
				Demand:     humanize.SIWithDigits(st.Demand*1e6, 1, "W"),
				Balance:    humanize.SIWithDigits(st.Balance*1e6, 1, "W"),
				Plants:     fmt.Sprintf("%d/%d operational", st.Plants.Operational, st.Plants.Total),
				Districts:  fmt.Sprintf("%d powered, %d dark", st.Districts.Powered, st.Districts.Blackout),
			})
		}
	})
	tick = s.Coord.Tick()

	writeJSON(w, http.StatusOK, map[string]any{
		"tick":     tick,
		"daylight": fmt.Sprintf("%.0f%%", daylight*100),
		"factions": summaries,
	})
}

// handleStability returns the latest stability report for one faction.
// GET /api/v1/stability?faction=N
func (s *Server) handleStability(w http.ResponseWriter, r *http.Request) {
	f, ok := factionParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "faction parameter required")
		return
	}
	writeJSON(w, http.StatusOK, s.Coord.StabilityReport(f))
}

// handleRedundancy returns the fleet redundancy assessment for one faction.
// GET /api/v1/redundancy?faction=N
func (s *Server) handleRedundancy(w http.ResponseWriter, r *http.Request) {
	f, ok := factionParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "faction parameter required")
		return
	}
	writeJSON(w, http.StatusOK, s.Coord.Redundancy(f))
}

// handleEvents returns recent grid events. The live ring buffer serves by
// default; ?archived=1 reads the persisted log when a DB is attached.
// GET /api/v1/events?limit=N
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	if r.URL.Query().Get("archived") == "1" {
		if s.DB == nil {
			writeError(w, http.StatusNotFound, "event archive not enabled")
			return
		}
		events, err := s.DB.RecentEvents(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "event archive unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
		return
	}

	var events []engine.Event
	s.Coord.WithLock(func() {
		events = s.Coord.Grid().Events().Recent(limit)
	})
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleDistrict returns the query view of one district.
// GET /api/v1/district/:id
func (s *Server) handleDistrict(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/district/")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid district id")
		return
	}

	var (
		info  engine.DistrictInfo
		found bool
	)
	s.Coord.WithLock(func() {
		info, found = s.Coord.Grid().GetDistrictInfo(grid.DistrictID(id))
	})
	if !found {
		writeError(w, http.StatusNotFound, "district not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}
