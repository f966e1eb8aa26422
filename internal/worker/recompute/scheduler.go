// Package recompute は全ユーザーの週次プラン再計算ジョブを提供する。
// アクティブプランを持つユーザーをページ単位で取得し、
// semaphoreパターンで最大並列数を制御しながらプラン生成を実行する。
package recompute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/fitplan/internal/model"
)

// PlanGenerator はプラン生成の実行インターフェース。
type PlanGenerator interface {
	// Generate は指定ユーザーのプランを生成する。
	Generate(ctx context.Context, userID string, forceRecompute bool) (*model.PlanSnapshot, error)
}

// ActiveUserLister はアクティブプランを持つユーザーのページ取得インターフェース。
type ActiveUserLister interface {
	// ListActiveUserIDs はafterUserIDより大きいユーザーIDをID昇順でlimit件まで返す。
	ListActiveUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error)
}

// BatchMetrics は再計算バッチのメトリクス収集インターフェース。
type BatchMetrics interface {
	RecordBatchRun(succeeded, failed int)
	RecordBatchDuration(duration time.Duration)
}

// Config は再計算スケジューラの設定パラメータ。
type Config struct {
	// MaxConcurrency は同時に実行するプラン生成の上限。
	// DB接続数と下流負荷を既知の上限内に抑えるため、固定値として設定する
	// （デフォルト: 10）。
	MaxConcurrency int
	// PageSize は1ページあたりのユーザーID取得件数（デフォルト: 1000）。
	// メモリ使用量を全ユーザー数に依存させないための上限。
	PageSize int
}

// DefaultConfig はデフォルトのスケジューラ設定を返す。
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		PageSize:       1000,
	}
}

// Summary は1回のバッチ実行の結果を表す。
type Summary struct {
	Total         int           // 処理対象ユーザー数
	Succeeded     int           // 成功数
	Failed        int           // 失敗数
	FailedUserIDs []string      // 失敗したユーザーID（フォローアップ用）
	Duration      time.Duration // 実行時間
}

// Scheduler は全ユーザーのプラン再計算のスケジューリングと並列制御を行う。
// 1ユーザーの失敗はバッチ全体にも他の実行中の処理にも影響しない。
type Scheduler struct {
	lister    ActiveUserLister
	generator PlanGenerator
	logger    *slog.Logger
	metrics   BatchMetrics
	config    Config
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// metricsはnilを許容する。設定値が0以下の場合はデフォルト値を使用する。
func NewScheduler(
	lister ActiveUserLister,
	generator PlanGenerator,
	logger *slog.Logger,
	metrics BatchMetrics,
	config Config,
) *Scheduler {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}
	return &Scheduler{
		lister:    lister,
		generator: generator,
		logger:    logger,
		metrics:   metrics,
		config:    config,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 週次再計算の場合は168時間を指定する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("再計算スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.config.MaxConcurrency),
		slog.Int("page_size", s.config.PageSize),
	)

	// 起動直後に1回実行
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("再計算バッチの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("再計算スケジューラを停止しました")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("再計算バッチの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全ユーザーの再計算を1回実行し、バッチサマリーを返す。
//
// キーセットページネーションでユーザーIDを取得し、semaphoreパターンで
// 並列数を制御しながらGenerate(forceRecompute=true)を実行する。
// 1ユーザーの失敗は捕捉・記録され、他のユーザーの処理は継続する。
//
// コンテキストがキャンセルされた場合は新しい処理の投入を停止するが、
// 実行中の処理は完了まで待ち、結果は必ず集計に反映される。
// ジョブ全体は冪等であり、同一ユーザーに対して複数回実行しても
// アクティブプランは常に1件に保たれる。
func (s *Scheduler) RunOnce(ctx context.Context) (*Summary, error) {
	start := time.Now()

	s.logger.Info("再計算バッチを開始します")

	sem := make(chan struct{}, s.config.MaxConcurrency)
	var wg sync.WaitGroup

	// 投入済みの処理はキャンセル後も完了まで実行する必要がある。
	// 親コンテキストの値は引き継ぎつつ、キャンセル信号だけを切り離す。
	genCtx := context.WithoutCancel(ctx)

	var mu sync.Mutex
	summary := &Summary{}

	afterUserID := ""

dispatch:
	for {
		userIDs, err := s.lister.ListActiveUserIDs(ctx, afterUserID, s.config.PageSize)
		if err != nil {
			// 実行中の処理の結果を待って集計してから返す
			wg.Wait()
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("対象ユーザーの取得に失敗しました: %w", err)
		}
		if len(userIDs) == 0 {
			break
		}

		for _, userID := range userIDs {
			// キャンセル時は新しい処理を投入しない。実行中の処理は継続する。
			if ctx.Err() != nil {
				s.logger.Info("キャンセルを受信したため新規投入を停止します",
					slog.Int("dispatched", summary.Total),
				)
				break dispatch
			}

			summary.Total++
			wg.Add(1)
			sem <- struct{}{} // semaphore取得（ブロック）

			go func(id string) {
				defer wg.Done()
				defer func() { <-sem }() // semaphore解放

				_, err := s.generator.Generate(genCtx, id, true)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Failed++
					summary.FailedUserIDs = append(summary.FailedUserIDs, id)
					s.logger.Error("ユーザーのプラン再計算に失敗しました",
						slog.String("user_id", id),
						slog.String("error_kind", errorKind(err)),
						slog.String("error", err.Error()),
					)
					return
				}
				summary.Succeeded++
			}(userID)
		}

		afterUserID = userIDs[len(userIDs)-1]
		if len(userIDs) < s.config.PageSize {
			break
		}
	}

	wg.Wait()

	summary.Duration = time.Since(start)

	s.logger.Info("再計算バッチが完了しました",
		slog.Int("total", summary.Total),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Float64("duration_ms", float64(summary.Duration.Milliseconds())),
	)

	if s.metrics != nil {
		s.metrics.RecordBatchRun(summary.Succeeded, summary.Failed)
		s.metrics.RecordBatchDuration(summary.Duration)
	}

	return summary, nil
}

// errorKind はログ用のエラー種別を返す。
// 生のバイオメトリクス値を含まないエラーコードのみを記録する。
func errorKind(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "UNKNOWN"
}
