package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fitplan/internal/middleware"
)

// HealthChecker はDB疎通確認のインターフェース。
// sql.DBのPingContextを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusRecorder    middleware.HTTPStatusRecorder

	// ヘルスチェック
	HealthChecker HealthChecker

	// プラン
	PlanService PlanServiceInterface

	// 再計算バッチ（手動実行）
	RecomputeRunner RecomputeRunner
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → RateLimit(General)
//
// ヘルスチェック（/api/health）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	planHandler := NewPlanHandler(deps.PlanService)

	// --- レート制限の外のルート ---

	// ヘルスチェック（監視・Dockerヘルスチェック用）
	r.Get("/api/health", healthHandler(deps.HealthChecker))

	// --- レート制限が効くルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// プラン管理
		r.Route("/api/plans", func(r chi.Router) {
			// POST /api/plans/generate - プラン生成（生成専用レート制限を追加）
			r.With(deps.RateLimiter.GenerateMiddleware()).Post("/generate", planHandler.GeneratePlan)

			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/active", planHandler.GetActivePlan)
				r.Post("/invalidate", planHandler.InvalidateCache)
			})
		})

		// 管理系
		if deps.RecomputeRunner != nil {
			adminHandler := NewAdminHandler(deps.RecomputeRunner)
			r.Post("/api/admin/recompute", adminHandler.TriggerRecompute)
		}
	})

	return r
}

// healthHandler はDB疎通を含むヘルスチェックハンドラーを返す。
// GET /api/health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
