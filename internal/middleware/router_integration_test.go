package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// TestRouterIntegration_RateLimitGroups は
// API全般とプラン生成のレート制限がchi.Routerのグループで独立に効くことを検証する。
func TestRouterIntegration_RateLimitGroups(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    3,
		GenerateRate:    1,
		GenerateBurst:   1,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	r := chi.NewRouter()

	// 参照系ルートグループ
	r.Group(func(r chi.Router) {
		r.Use(rl.GeneralMiddleware())

		r.Get("/api/plans/{userID}/active", func(w http.ResponseWriter, req *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"user_id": chi.URLParam(req, "userID")})
		})
	})

	// プラン生成ルートグループ（より厳しいレート制限）
	r.Group(func(r chi.Router) {
		r.Use(rl.GenerateMiddleware())

		r.Post("/api/plans/generate", func(w http.ResponseWriter, req *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"status": "generated"})
		})
	})

	// テスト1: 参照系はバースト3回分通る
	t.Run("general_routes_within_burst", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/plans/user-1/active", nil)
			req.RemoteAddr = "10.6.0.1:50000"
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusOK {
				t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
			}
		}
	})

	// テスト2: 参照系の4回目は429
	t.Run("general_routes_exceed_burst", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/plans/user-1/active", nil)
		req.RemoteAddr = "10.6.0.1:50000"
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusTooManyRequests {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
		}
	})

	// テスト3: 参照系が429でも生成エンドポイントは独立して通る
	t.Run("generate_route_independent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/plans/generate", nil)
		req.RemoteAddr = "10.6.0.1:50000"
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
		}
	})

	// テスト4: 生成エンドポイントの2回目は429
	t.Run("generate_route_exceed_burst", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/plans/generate", nil)
		req.RemoteAddr = "10.6.0.1:50000"
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusTooManyRequests {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
		}
	})

	// テスト5: 別クライアントは影響を受けない
	t.Run("other_client_unaffected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/plans/user-2/active", nil)
		req.RemoteAddr = "10.6.0.2:50000"
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
		}
	})
}
