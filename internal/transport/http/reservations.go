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

const idempotencyHeader = "Idempotency-Key"

// ReservationCreator is the minimal interface needed to create a hold.
type ReservationCreator interface {
	CreateReservation(ctx context.Context, in app.CreateReservationInput) (domain.Reservation, error)
}

// ReservationActor covers the follow-up lifecycle operations on an
// existing reservation.
type ReservationActor interface {
	ConfirmReservation(ctx context.Context, id, idempotencyKey string) (domain.Reservation, error)
	CancelReservation(ctx context.Context, id, reason, idempotencyKey string) (domain.Reservation, error)
	ReactivateReservation(ctx context.Context, id, idempotencyKey string) (domain.Reservation, error)
}

// HandleCreateReservation returns the POST /reservations handler.
func HandleCreateReservation(svc ReservationCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeDomainError(w, err)
			return
		}

		res, err := svc.CreateReservation(r.Context(), app.CreateReservationInput{
			PoolID:              req.PoolID,
			RequesterID:         req.RequesterID,
			Units:               req.Units,
			RequesterPrivileged: req.RequesterPrivileged,
			IdempotencyKey:      req.IdempotencyKey,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReservationResponse(res))
	}
}

// HandleReservationActions routes POST /reservations/{id}/{action} for
// confirm, cancel, and reactivate. The idempotency key travels in the
// Idempotency-Key header.
func HandleReservationActions(svc ReservationActor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		id, action, ok := parseReservationActionPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		key := r.Header.Get(idempotencyHeader)
		if key == "" {
			writeDomainError(w, domain.ErrIdempotencyKeyRequired)
			return
		}

		var res domain.Reservation
		var err error
		switch action {
		case "confirm":
			res, err = svc.ConfirmReservation(r.Context(), id, key)
		case "cancel":
			var req cancelReservationRequest
			if r.ContentLength > 0 {
				if decErr := json.NewDecoder(r.Body).Decode(&req); decErr != nil {
					writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
					return
				}
			}
			res, err = svc.CancelReservation(r.Context(), id, req.Reason, key)
		case "reactivate":
			res, err = svc.ReactivateReservation(r.Context(), id, key)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toReservationResponse(res))
	}
}

func parseReservationActionPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "reservations" || parts[1] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

type createReservationRequest struct {
	PoolID              string `json:"pool_id"`
	RequesterID         string `json:"requester_id"`
	Units               int    `json:"units"`
	RequesterPrivileged bool   `json:"requester_privileged"`
	IdempotencyKey      string `json:"idempotency_key"`
}

func (r createReservationRequest) validate() error {
	if r.PoolID == "" || r.RequesterID == "" {
		return domain.ErrInvalidID
	}
	if r.IdempotencyKey == "" {
		return domain.ErrIdempotencyKeyRequired
	}
	if r.Units < 1 {
		return domain.ErrInvalidUnits
	}
	return nil
}

type cancelReservationRequest struct {
	Reason string `json:"reason"`
}

type reservationResponse struct {
	ID                   string    `json:"id"`
	PoolID               string    `json:"pool_id"`
	RequesterID          string    `json:"requester_id"`
	State                string    `json:"state"`
	Units                int       `json:"units"`
	TrackingCode         string    `json:"tracking_code"`
	CreatedAt            time.Time `json:"created_at"`
	HoldExpiresAt        time.Time `json:"hold_expires_at"`
	TotalWindowExpiresAt time.Time `json:"total_window_expires_at"`
}

func toReservationResponse(res domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:                   res.ID,
		PoolID:               res.PoolID,
		RequesterID:          res.RequesterID,
		State:                string(res.State),
		Units:                res.UnitsHeld,
		TrackingCode:         res.TrackingCode,
		CreatedAt:            res.CreatedAt,
		HoldExpiresAt:        res.HoldExpiresAt,
		TotalWindowExpiresAt: res.TotalWindowExpiresAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
