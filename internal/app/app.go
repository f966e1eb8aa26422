package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/fitplan/internal/cache"
	"github.com/hitoshi/fitplan/internal/config"
	"github.com/hitoshi/fitplan/internal/database"
	"github.com/hitoshi/fitplan/internal/handler"
	"github.com/hitoshi/fitplan/internal/logger"
	"github.com/hitoshi/fitplan/internal/metrics"
	"github.com/hitoshi/fitplan/internal/middleware"
	"github.com/hitoshi/fitplan/internal/plan"
	"github.com/hitoshi/fitplan/internal/repository"
	"github.com/hitoshi/fitplan/internal/worker/recompute"
	"github.com/hitoshi/fitplan/internal/worker/retention"
	"golang.org/x/time/rate"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// rateLimiterConfigFrom はconfigのreq/min設定をrate.Limitベースの設定に変換する。
func rateLimiterConfigFrom(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitGenerate > 0 {
		rlCfg.GenerateRate = rate.Limit(float64(cfg.RateLimitGenerate) / 60.0)
		rlCfg.GenerateBurst = cfg.RateLimitGenerate
	}
	return rlCfg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	planRepo := repository.NewPostgresPlanRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. キャッシュとプランサービスの初期化
	resultCache := cache.New(cfg.CacheTTL / 4)
	defer resultCache.Stop()

	planService := plan.NewService(
		profileRepo, planRepo, resultCache, collector,
		plan.ServiceConfig{CacheTTL: cfg.CacheTTL},
		slog.Default(),
	)

	// 5. 手動実行用の再計算スケジューラ
	// 定期実行はワーカープロセスが担う。APIサーバーは管理エンドポイント経由の
	// 即時実行のみを提供する。
	scheduler := recompute.NewScheduler(
		planRepo, planService, slog.Default(), collector,
		recompute.Config{
			MaxConcurrency: cfg.RecomputeMaxConcurrent,
			PageSize:       cfg.RecomputePageSize,
		},
	)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfigFrom(cfg))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		StatusRecorder:    collector,
		HealthChecker:     db,
		PlanService:       planService,
		RecomputeRunner:   scheduler,
	}

	router := handler.NewRouter(deps)

	// 7. メトリクスサーバーの起動（APIとは別ポート）
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}

	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、週次再計算スケジューラと履歴プラン削除ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	planRepo := repository.NewPostgresPlanRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. プランサービスの初期化
	// ワーカーの再計算は常にforceRecompute=trueで走るため、キャッシュは
	// 新しいスナップショットの書き込み先としてのみ使われる。
	resultCache := cache.New(cfg.CacheTTL / 4)
	defer resultCache.Stop()

	planService := plan.NewService(
		profileRepo, planRepo, resultCache, collector,
		plan.ServiceConfig{CacheTTL: cfg.CacheTTL},
		slog.Default(),
	)

	// 5. 再計算スケジューラの初期化
	scheduler := recompute.NewScheduler(
		planRepo, planService, slog.Default(), collector,
		recompute.Config{
			MaxConcurrency: cfg.RecomputeMaxConcurrent,
			PageSize:       cfg.RecomputePageSize,
		},
	)

	// 6. 履歴プラン削除ジョブの初期化
	retentionJob := retention.NewRetentionJob(planRepo, slog.Default())
	retentionJob.RetentionDays = cfg.PlanRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("recompute_interval", cfg.RecomputeInterval),
		slog.Int("max_concurrent", cfg.RecomputeMaxConcurrent),
		slog.Int("retention_days", cfg.PlanRetentionDays),
	)

	// 履歴プラン削除ジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := retentionJob.Run(ctx); err != nil {
			slog.Error("retention job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := retentionJob.Run(ctx); err != nil {
					slog.Error("retention job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 再計算スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.RecomputeInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/api/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
