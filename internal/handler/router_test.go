package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/fitplan/internal/middleware"
	"github.com/hitoshi/fitplan/internal/model"
	"github.com/hitoshi/fitplan/internal/worker/recompute"
)

// mockHealthChecker はHealthCheckerのテスト用モック。
type mockHealthChecker struct {
	pingErr error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.pingErr
}

// mockRecomputeRunner はRecomputeRunnerのテスト用モック。
type mockRecomputeRunner struct {
	summary  *recompute.Summary
	runErr   error
	runCalls int
}

func (m *mockRecomputeRunner) RunOnce(ctx context.Context) (*recompute.Summary, error) {
	m.runCalls++
	return m.summary, m.runErr
}

func newTestRouter(t *testing.T, svc PlanServiceInterface, checker HealthChecker, runner RecomputeRunner) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    200,
		GenerateRate:    100,
		GenerateBurst:   200,
		CleanupInterval: 1 * time.Minute,
	})
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		HealthChecker:     checker,
		PlanService:       svc,
		RecomputeRunner:   runner,
	})
}

func TestRouter_HealthEndpoint_Healthy(t *testing.T) {
	router := newTestRouter(t, &mockPlanService{}, &mockHealthChecker{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestRouter_HealthEndpoint_DBDown_Returns503(t *testing.T) {
	checker := &mockHealthChecker{pingErr: errors.New("connection refused")}
	router := newTestRouter(t, &mockPlanService{}, checker, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusServiceUnavailable)
	}
}

func TestRouter_SecurityAndCORSHeaders(t *testing.T) {
	router := newTestRouter(t, &mockPlanService{}, &mockHealthChecker{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	headers := w.Result().Header
	if got := headers.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
	if got := headers.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want %q", got, "DENY")
	}
	if got := headers.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
}

func TestRouter_GenerateRoute_Wired(t *testing.T) {
	svc := &mockPlanService{
		generateFn: func(ctx context.Context, userID string, forceRecompute bool) (*model.PlanSnapshot, error) {
			return testSnapshot(userID, true), nil
		},
	}
	router := newTestRouter(t, svc, &mockHealthChecker{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/plans/generate",
		strings.NewReader(`{"user_id": "user-1"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
}

func TestRouter_ActiveAndInvalidateRoutes_Wired(t *testing.T) {
	svc := &mockPlanService{
		getActiveFn: func(ctx context.Context, userID string) (*model.PlanSnapshot, error) {
			return testSnapshot(userID, false), nil
		},
	}
	router := newTestRouter(t, svc, &mockHealthChecker{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/plans/user-1/active", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET active: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/plans/user-1/invalidate", nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)

	if w2.Result().StatusCode != http.StatusNoContent {
		t.Errorf("POST invalidate: status = %d, want %d", w2.Result().StatusCode, http.StatusNoContent)
	}
}

func TestRouter_AdminRecompute_ReturnsSummary(t *testing.T) {
	runner := &mockRecomputeRunner{
		summary: &recompute.Summary{
			Total:     10,
			Succeeded: 9,
			Failed:    1,
			FailedUserIDs: []string{
				"user-7",
			},
			Duration: 1500 * time.Millisecond,
		},
	}
	router := newTestRouter(t, &mockPlanService{}, &mockHealthChecker{}, runner)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/recompute", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body recomputeSummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Total != 10 {
		t.Errorf("total = %d, want 10", body.Total)
	}
	if body.Succeeded != 9 {
		t.Errorf("succeeded = %d, want 9", body.Succeeded)
	}
	if body.Failed != 1 {
		t.Errorf("failed = %d, want 1", body.Failed)
	}
	if len(body.FailedUserIDs) != 1 || body.FailedUserIDs[0] != "user-7" {
		t.Errorf("failed_user_ids = %v, want [user-7]", body.FailedUserIDs)
	}
	if body.DurationMs != 1500 {
		t.Errorf("duration_ms = %d, want 1500", body.DurationMs)
	}
	if runner.runCalls != 1 {
		t.Errorf("run calls = %d, want 1", runner.runCalls)
	}
}

func TestRouter_AdminRecompute_RunnerError_Returns500(t *testing.T) {
	runner := &mockRecomputeRunner{runErr: errors.New("lister failed")}
	router := newTestRouter(t, &mockPlanService{}, &mockHealthChecker{}, runner)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/recompute", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

func TestRouter_UnknownRoute_Returns404(t *testing.T) {
	router := newTestRouter(t, &mockPlanService{}, &mockHealthChecker{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}
