package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/akbaramd/nezam-refahi-reservations/internal/app"
	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

// CatalogManager is the admin surface for tours and capacity pools.
type CatalogManager interface {
	CreateTour(ctx context.Context, in app.CreateTourInput) (domain.Tour, error)
	ListTours(ctx context.Context) ([]domain.Tour, error)
	CreatePool(ctx context.Context, in app.CreatePoolInput) (domain.CapacityPool, error)
	ListPools(ctx context.Context, tourID string) ([]domain.CapacityPool, error)
}

// HandleAdminTours routes GET/POST /admin/tours.
func HandleAdminTours(svc CatalogManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			tours, err := svc.ListTours(r.Context())
			if err != nil {
				writeDomainError(w, err)
				return
			}
			out := make([]tourResponse, 0, len(tours))
			for _, tour := range tours {
				out = append(out, toTourResponse(tour))
			}
			writeJSON(w, http.StatusOK, out)
		case http.MethodPost:
			var req createTourRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			tour, err := svc.CreateTour(r.Context(), app.CreateTourInput{
				Name:     req.Name,
				StartsAt: req.StartsAt,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toTourResponse(tour))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminPools routes GET/POST /admin/tours/{id}/pools.
func HandleAdminPools(svc CatalogManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tourID, ok := parseAdminPoolsPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			pools, err := svc.ListPools(r.Context(), tourID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			out := make([]poolResponse, 0, len(pools))
			for _, pool := range pools {
				out = append(out, toPoolResponse(pool))
			}
			writeJSON(w, http.StatusOK, out)
		case http.MethodPost:
			var req createPoolRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			pool, err := svc.CreatePool(r.Context(), app.CreatePoolInput{
				TourID:       tourID,
				Name:         req.Name,
				MaxUnits:     req.MaxUnits,
				IsRestricted: req.IsRestricted,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toPoolResponse(pool))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func parseAdminPoolsPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 || parts[0] != "admin" || parts[1] != "tours" || parts[2] == "" || parts[3] != "pools" {
		return "", false
	}
	return parts[2], true
}

type createTourRequest struct {
	Name     string     `json:"name"`
	StartsAt *time.Time `json:"starts_at"`
}

type tourResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"starts_at"`
}

func toTourResponse(tour domain.Tour) tourResponse {
	return tourResponse{
		ID:       tour.ID,
		Name:     tour.Name,
		StartsAt: tour.StartsAt,
	}
}

type createPoolRequest struct {
	Name         string `json:"name"`
	MaxUnits     int    `json:"max_units"`
	IsRestricted bool   `json:"is_restricted"`
}

type poolResponse struct {
	ID             string `json:"id"`
	TourID         string `json:"tour_id"`
	Name           string `json:"name"`
	MaxUnits       int    `json:"max_units"`
	AllocatedUnits int    `json:"allocated_units"`
	IsRestricted   bool   `json:"is_restricted"`
}

func toPoolResponse(pool domain.CapacityPool) poolResponse {
	return poolResponse{
		ID:             pool.ID,
		TourID:         pool.TourID,
		Name:           pool.Name,
		MaxUnits:       pool.MaxUnits,
		AllocatedUnits: pool.AllocatedUnits,
		IsRestricted:   pool.IsRestricted,
	}
}
