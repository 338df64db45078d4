package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akbaramd/nezam-refahi-reservations/internal/app"
	"github.com/akbaramd/nezam-refahi-reservations/internal/domain"
)

type stubStats struct {
	poolFn func(ctx context.Context, poolID string) (domain.PoolStats, error)
	tourFn func(ctx context.Context, tourID string, scope app.StatsScope) (domain.PoolStats, error)
}

func (s *stubStats) PoolStats(ctx context.Context, poolID string) (domain.PoolStats, error) {
	return s.poolFn(ctx, poolID)
}

func (s *stubStats) TourStats(ctx context.Context, tourID string, scope app.StatsScope) (domain.PoolStats, error) {
	return s.tourFn(ctx, tourID, scope)
}

func TestHandlePoolStats(t *testing.T) {
	t.Parallel()

	t.Run("returns pool stats", func(t *testing.T) {
		stub := &stubStats{
			poolFn: func(_ context.Context, poolID string) (domain.PoolStats, error) {
				if poolID != "p1" {
					t.Fatalf("unexpected pool id %q", poolID)
				}
				return domain.NewPoolStats(40, 10), nil
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/pools/p1/stats", nil)
		rec := httptest.NewRecorder()

		HandlePoolStats(stub)(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp statsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.RemainingUnits != 30 || resp.UtilizationPercent != 25 {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("unknown pool maps to 404", func(t *testing.T) {
		stub := &stubStats{
			poolFn: func(context.Context, string) (domain.PoolStats, error) {
				return domain.PoolStats{}, domain.ErrPoolNotFound
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/pools/missing/stats", nil)
		rec := httptest.NewRecorder()

		HandlePoolStats(stub)(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("malformed path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/pools/p1", nil)
		rec := httptest.NewRecorder()

		HandlePoolStats(&stubStats{})(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("rejects wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/pools/p1/stats", nil)
		rec := httptest.NewRecorder()

		HandlePoolStats(&stubStats{})(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}

func TestHandleTourStats(t *testing.T) {
	t.Parallel()

	t.Run("defaults to the public scope", func(t *testing.T) {
		var gotScope app.StatsScope
		stub := &stubStats{
			tourFn: func(_ context.Context, _ string, scope app.StatsScope) (domain.PoolStats, error) {
				gotScope = scope
				return domain.NewPoolStats(30, 15), nil
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/tours/t1/stats", nil)
		rec := httptest.NewRecorder()

		HandleTourStats(stub)(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotScope != app.ScopePublic {
			t.Fatalf("expected public scope, got %q", gotScope)
		}
	})

	t.Run("passes the restricted scope through", func(t *testing.T) {
		var gotScope app.StatsScope
		stub := &stubStats{
			tourFn: func(_ context.Context, _ string, scope app.StatsScope) (domain.PoolStats, error) {
				gotScope = scope
				return domain.PoolStats{}, nil
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/tours/t1/stats?scope=restricted", nil)
		rec := httptest.NewRecorder()

		HandleTourStats(stub)(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotScope != app.ScopeRestricted {
			t.Fatalf("expected restricted scope, got %q", gotScope)
		}
	})

	t.Run("rejects an unknown scope", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tours/t1/stats?scope=vip", nil)
		rec := httptest.NewRecorder()

		HandleTourStats(&stubStats{})(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
