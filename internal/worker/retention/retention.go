// Package retention は履歴プランの自動削除ジョブを提供する。
// 保持期間（デフォルト365日）を超過したsupersededプランを日次バッチで削除する。
// activeプランは保持期間に関わらず削除しない。
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SupersededDeleter は履歴プランの削除に必要なインターフェース。
// repository.PlanRepositoryの部分集合として定義する。
type SupersededDeleter interface {
	DeleteSupersededBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob は保持期間を超過した履歴プランの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type RetentionJob struct {
	repo          SupersededDeleter
	logger        *slog.Logger
	RetentionDays int // 履歴プランの保持日数（デフォルト: 365）
}

// NewRetentionJob は新しいRetentionJobを生成する。
// デフォルトの保持日数は365日。
func NewRetentionJob(repo SupersededDeleter, logger *slog.Logger) *RetentionJob {
	return &RetentionJob{
		repo:          repo,
		logger:        logger,
		RetentionDays: 365,
	}
}

// Run は保持期間を超過した履歴プランを削除する。
// superseded_atがRetentionDays日前より古いsupersededプランを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *RetentionJob) Run(ctx context.Context) error {
	start := time.Now()

	cutoff := time.Now().AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.repo.DeleteSupersededBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("履歴プランの削除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("履歴プランの削除に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("履歴プランの削除ジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
