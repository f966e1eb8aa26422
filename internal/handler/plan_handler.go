// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fitplan/internal/model"
)

// PlanServiceInterface はプランハンドラーが必要とするサービスインターフェース。
type PlanServiceInterface interface {
	// Generate はユーザーのプランを生成または取得する。
	// forceRecomputeがtrueの場合はキャッシュを無視して必ず再計算する。
	Generate(ctx context.Context, userID string, forceRecompute bool) (*model.PlanSnapshot, error)
	// GetActive はユーザーの現在のアクティブプランを返す。
	GetActive(ctx context.Context, userID string) (*model.PlanSnapshot, error)
	// Invalidate はユーザーのキャッシュエントリを削除する。
	Invalidate(userID string)
}

// PlanHandler はプラン管理のHTTPハンドラー。
type PlanHandler struct {
	service PlanServiceInterface
}

// NewPlanHandler はPlanHandlerを生成する。
func NewPlanHandler(service PlanServiceInterface) *PlanHandler {
	return &PlanHandler{
		service: service,
	}
}

// generatePlanRequest はプラン生成リクエストのボディ。
type generatePlanRequest struct {
	UserID         string `json:"user_id"`
	ForceRecompute bool   `json:"force_recompute"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// GeneratePlan はプラン生成を処理する。
// POST /api/plans/generate
func (h *PlanHandler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req generatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.UserID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("user_idが空です"))
		return
	}

	snapshot, err := h.service.Generate(r.Context(), req.UserID, req.ForceRecompute)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	statusCode := http.StatusOK
	if snapshot.Recomputed {
		statusCode = http.StatusCreated
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(snapshot)
}

// GetActivePlan はアクティブプランを取得する。
// GET /api/plans/{userID}/active
func (h *PlanHandler) GetActivePlan(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	snapshot, err := h.service.GetActive(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// InvalidateCache はユーザーのキャッシュエントリを削除する。
// POST /api/plans/{userID}/invalidate
//
// 永続化されたプランには影響しない。次回のGenerateはキャッシュミスとなる。
func (h *PlanHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	h.service.Invalidate(userID)

	w.WriteHeader(http.StatusNoContent)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeIncompleteProfile:
		return http.StatusUnprocessableEntity
	case model.ErrCodeProfileNotFound:
		return http.StatusNotFound
	case model.ErrCodePlanNotFound:
		return http.StatusNotFound
	case model.ErrCodePersistence:
		return http.StatusServiceUnavailable
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
