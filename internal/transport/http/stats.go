package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/akbaramd/nezam-refahi-reservations/internal/app"
	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

// StatsProvider serves utilization views.
type StatsProvider interface {
	PoolStats(ctx context.Context, poolID string) (domain.PoolStats, error)
	TourStats(ctx context.Context, tourID string, scope app.StatsScope) (domain.PoolStats, error)
}

// HandlePoolStats routes GET /pools/{id}/stats.
func HandlePoolStats(svc StatsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "pools" || parts[1] == "" || parts[2] != "stats" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		stats, err := svc.PoolStats(r.Context(), parts[1])
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toStatsResponse(stats))
	}
}

// HandleTourStats routes GET /tours/{id}/stats?scope=public|restricted.
func HandleTourStats(svc StatsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "tours" || parts[1] == "" || parts[2] != "stats" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		scope := app.StatsScope(r.URL.Query().Get("scope"))
		if scope == "" {
			scope = app.ScopePublic
		}
		if scope != app.ScopePublic && scope != app.ScopeRestricted {
			writeError(w, http.StatusBadRequest, codeValidation, "scope must be public or restricted")
			return
		}

		stats, err := svc.TourStats(r.Context(), parts[1], scope)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toStatsResponse(stats))
	}
}

type statsResponse struct {
	MaxUnits           int     `json:"max_units"`
	AllocatedUnits     int     `json:"allocated_units"`
	RemainingUnits     int     `json:"remaining_units"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

func toStatsResponse(s domain.PoolStats) statsResponse {
	return statsResponse{
		MaxUnits:           s.MaxUnits,
		AllocatedUnits:     s.AllocatedUnits,
		RemainingUnits:     s.RemainingUnits,
		UtilizationPercent: s.UtilizationPercent,
	}
}
