package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/fitplan/internal/worker/recompute"
)

// RecomputeRunner は全ユーザー再計算バッチの手動実行インターフェース。
// recompute.Schedulerの部分集合として定義する。
type RecomputeRunner interface {
	RunOnce(ctx context.Context) (*recompute.Summary, error)
}

// AdminHandler は管理系エンドポイントのHTTPハンドラー。
type AdminHandler struct {
	runner RecomputeRunner
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(runner RecomputeRunner) *AdminHandler {
	return &AdminHandler{
		runner: runner,
	}
}

// recomputeSummaryResponse は再計算バッチ結果のAPIレスポンス。
type recomputeSummaryResponse struct {
	Total         int      `json:"total"`
	Succeeded     int      `json:"succeeded"`
	Failed        int      `json:"failed"`
	FailedUserIDs []string `json:"failed_user_ids,omitempty"`
	DurationMs    int64    `json:"duration_ms"`
}

// TriggerRecompute は全ユーザーの再計算バッチを即時実行する。
// POST /api/admin/recompute
//
// 定期実行とは独立に動作する。実行が完了するまでブロックし、結果サマリーを返す。
func (h *AdminHandler) TriggerRecompute(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.RunOnce(r.Context())
	if err != nil {
		slog.Error("手動再計算バッチが失敗しました", slog.String("error", err.Error()))
		if summary == nil {
			handleServiceError(w, err)
			return
		}
		// 部分的に実行された場合はサマリーを返す
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recomputeSummaryResponse{
		Total:         summary.Total,
		Succeeded:     summary.Succeeded,
		Failed:        summary.Failed,
		FailedUserIDs: summary.FailedUserIDs,
		DurationMs:    summary.Duration.Milliseconds(),
	})
}
