package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/akbaramd/nezam-refahi-reservations/internal/app"
	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

type stubLifecycle struct {
	createFn     func(ctx context.Context, in app.CreateReservationInput) (domain.Reservation, error)
	confirmFn    func(ctx context.Context, id, key string) (domain.Reservation, error)
	cancelFn     func(ctx context.Context, id, reason, key string) (domain.Reservation, error)
	reactivateFn func(ctx context.Context, id, key string) (domain.Reservation, error)
}

func (s *stubLifecycle) CreateReservation(ctx context.Context, in app.CreateReservationInput) (domain.Reservation, error) {
	return s.createFn(ctx, in)
}

func (s *stubLifecycle) ConfirmReservation(ctx context.Context, id, key string) (domain.Reservation, error) {
	return s.confirmFn(ctx, id, key)
}

func (s *stubLifecycle) CancelReservation(ctx context.Context, id, reason, key string) (domain.Reservation, error) {
	return s.cancelFn(ctx, id, reason, key)
}

func (s *stubLifecycle) ReactivateReservation(ctx context.Context, id, key string) (domain.Reservation, error) {
	return s.reactivateFn(ctx, id, key)
}

func TestHandleCreateReservation(t *testing.T) {
	t.Parallel()

	okStub := &stubLifecycle{
		createFn: func(_ context.Context, in app.CreateReservationInput) (domain.Reservation, error) {
			return domain.Reservation{
				ID:          "res-1",
				PoolID:      in.PoolID,
				RequesterID: in.RequesterID,
				State:       domain.StateAwaitingPayment,
				UnitsHeld:   in.Units,
			}, nil
		},
	}

	t.Run("creates a reservation", func(t *testing.T) {
		body := `{"pool_id":"p1","requester_id":"m1","units":2,"idempotency_key":"key-1"}`
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
		rec := httptest.NewRecorder()

		HandleCreateReservation(okStub)(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp reservationResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.ID != "res-1" || resp.State != string(domain.StateAwaitingPayment) || resp.Units != 2 {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("rejects wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reservations", nil)
		rec := httptest.NewRecorder()

		HandleCreateReservation(okStub)(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader("{"))
		rec := httptest.NewRecorder()

		HandleCreateReservation(okStub)(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		body := `{"pool_id":"p1","requester_id":"m1","units":1,"idempotency_key":"k","seat":"12A"}`
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
		rec := httptest.NewRecorder()

		HandleCreateReservation(okStub)(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("validates before calling the service", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"missing pool", `{"requester_id":"m1","units":1,"idempotency_key":"k"}`},
			{"missing requester", `{"pool_id":"p1","units":1,"idempotency_key":"k"}`},
			{"missing key", `{"pool_id":"p1","requester_id":"m1","units":1}`},
			{"zero units", `{"pool_id":"p1","requester_id":"m1","units":0,"idempotency_key":"k"}`},
		}

		stub := &stubLifecycle{
			createFn: func(context.Context, app.CreateReservationInput) (domain.Reservation, error) {
				t.Fatal("service must not be called")
				return domain.Reservation{}, nil
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(tt.body))
				rec := httptest.NewRecorder()

				HandleCreateReservation(stub)(rec, req)

				if rec.Code != http.StatusBadRequest {
					t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
				}
			})
		}
	})

	t.Run("maps capacity exhaustion to 409", func(t *testing.T) {
		stub := &stubLifecycle{
			createFn: func(context.Context, app.CreateReservationInput) (domain.Reservation, error) {
				return domain.Reservation{}, domain.ErrCapacityExhausted
			},
		}
		body := `{"pool_id":"p1","requester_id":"m1","units":1,"idempotency_key":"k"}`
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
		rec := httptest.NewRecorder()

		HandleCreateReservation(stub)(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode error response: %v", err)
		}
		if resp.Code != codeCapacityExhausted {
			t.Fatalf("expected code %q, got %q", codeCapacityExhausted, resp.Code)
		}
	})
}

func TestHandleReservationActions(t *testing.T) {
	t.Parallel()

	t.Run("confirm", func(t *testing.T) {
		var gotID, gotKey string
		stub := &stubLifecycle{
			confirmFn: func(_ context.Context, id, key string) (domain.Reservation, error) {
				gotID, gotKey = id, key
				return domain.Reservation{ID: id, State: domain.StateConfirmed}, nil
			},
		}
		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/confirm", nil)
		req.Header.Set(idempotencyHeader, "key-1")
		rec := httptest.NewRecorder()

		HandleReservationActions(stub)(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotID != "res-1" || gotKey != "key-1" {
			t.Fatalf("service got id=%q key=%q", gotID, gotKey)
		}
	})

	t.Run("cancel forwards the reason", func(t *testing.T) {
		var gotReason string
		stub := &stubLifecycle{
			cancelFn: func(_ context.Context, id, reason, _ string) (domain.Reservation, error) {
				gotReason = reason
				return domain.Reservation{ID: id, State: domain.StateCancelled}, nil
			},
		}
		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/cancel", strings.NewReader(`{"reason":"changed plans"}`))
		req.Header.Set(idempotencyHeader, "key-1")
		rec := httptest.NewRecorder()

		HandleReservationActions(stub)(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotReason != "changed plans" {
			t.Fatalf("expected reason forwarded, got %q", gotReason)
		}
	})

	t.Run("cancel accepts an empty body", func(t *testing.T) {
		stub := &stubLifecycle{
			cancelFn: func(_ context.Context, id, _, _ string) (domain.Reservation, error) {
				return domain.Reservation{ID: id, State: domain.StateCancelled}, nil
			},
		}
		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/cancel", nil)
		req.Header.Set(idempotencyHeader, "key-1")
		rec := httptest.NewRecorder()

		HandleReservationActions(stub)(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("reactivate", func(t *testing.T) {
		stub := &stubLifecycle{
			reactivateFn: func(_ context.Context, id, _ string) (domain.Reservation, error) {
				return domain.Reservation{ID: id, State: domain.StateAwaitingPayment}, nil
			},
		}
		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/reactivate", nil)
		req.Header.Set(idempotencyHeader, "key-1")
		rec := httptest.NewRecorder()

		HandleReservationActions(stub)(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing idempotency key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/confirm", nil)
		rec := httptest.NewRecorder()

		HandleReservationActions(&stubLifecycle{})(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/teleport", nil)
		req.Header.Set(idempotencyHeader, "key-1")
		rec := httptest.NewRecorder()

		HandleReservationActions(&stubLifecycle{})(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("malformed path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1", nil)
		req.Header.Set(idempotencyHeader, "key-1")
		rec := httptest.NewRecorder()

		HandleReservationActions(&stubLifecycle{})(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("invalid transition maps to 409", func(t *testing.T) {
		stub := &stubLifecycle{
			confirmFn: func(context.Context, string, string) (domain.Reservation, error) {
				return domain.Reservation{}, domain.ErrInvalidStateTransition
			},
		}
		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/confirm", nil)
		req.Header.Set(idempotencyHeader, "key-1")
		rec := httptest.NewRecorder()

		HandleReservationActions(stub)(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("unknown reservation maps to 404", func(t *testing.T) {
		stub := &stubLifecycle{
			confirmFn: func(context.Context, string, string) (domain.Reservation, error) {
				return domain.Reservation{}, domain.ErrReservationNotFound
			},
		}
		req := httptest.NewRequest(http.MethodPost, "/reservations/res-1/confirm", nil)
		req.Header.Set(idempotencyHeader, "key-1")
		rec := httptest.NewRecorder()

		HandleReservationActions(stub)(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
