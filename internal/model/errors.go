// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, plan, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeIncompleteProfile = "INCOMPLETE_PROFILE"
	ErrCodeProfileNotFound   = "PROFILE_NOT_FOUND"
	ErrCodePlanNotFound      = "PLAN_NOT_FOUND"
	ErrCodePersistence       = "PERSISTENCE_ERROR"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
)

// NewIncompleteProfileError はバイオメトリクスが欠落または範囲外の場合のエラーを生成する。
// プロフィールが修正されるまで再試行しても解消しない。
func NewIncompleteProfileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeIncompleteProfile,
		Message:  fmt.Sprintf("プロフィールが計算に必要な条件を満たしていません: %s", reason),
		Category: "validation",
		Action:   "プロフィールのバイオメトリクス情報を入力・修正してください。",
	}
}

// NewProfileNotFoundError はバイオメトリクス設定が存在しない場合のエラーを生成する。
func NewProfileNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("指定ユーザーのプロフィールが見つかりません: %s", userID),
		Category: "validation",
		Action:   "オンボーディングでプロフィールを登録してから再度お試しください。",
	}
}

// NewPlanNotFoundError はアクティブプランが存在しない場合のエラーを生成する。
func NewPlanNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodePlanNotFound,
		Message:  fmt.Sprintf("指定ユーザーのアクティブプランが見つかりません: %s", userID),
		Category: "plan",
		Action:   "プラン生成を実行してください。",
	}
}

// NewPersistenceError はプランの永続化に失敗した場合のエラーを生成する。
// 呼び出し側での再試行により解消し得る。本エンジン内部では再試行しない。
func NewPersistenceError() *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  "プランの保存に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRequestError は無効なリクエストエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("無効なリクエストです: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}
