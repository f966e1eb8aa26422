// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/fitplan/internal/model"
)

// ProfileRepository はユーザーのバイオメトリクス設定の読み取りインターフェース。
// プロフィールの書き込みは外部のプロフィール管理コンポーネントが所有するため、
// 本エンジンは読み取りのみを行う。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのバイオメトリクス設定を取得する。
	// 見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserBiometrics, error)
}

// PlanRepository はプランスナップショットの永続化インターフェース。
// スナップショットは追記専用であり、既存レコードの内容は書き換えない
// （statusのactive→superseded遷移のみ例外）。
type PlanRepository interface {
	// FindActiveByUserID は指定ユーザーのアクティブプランを取得する。
	// 見つからない場合はnilを返す。
	FindActiveByUserID(ctx context.Context, userID string) (*model.PlanSnapshot, error)

	// CreateSuperseding は既存のアクティブプランをsupersededに変更し、
	// 新しいプランをactiveとして挿入する。両操作は単一トランザクションで
	// 実行され、アクティブプランが0件または2件になる瞬間は存在しない。
	CreateSuperseding(ctx context.Context, snapshot *model.PlanSnapshot) error

	// ListActiveUserIDs はアクティブプランを持つユーザーIDをID昇順で
	// ページ取得する。afterUserIDより大きいIDをlimit件まで返す
	// （キーセットページネーション）。afterUserIDが空の場合は先頭から取得する。
	ListActiveUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error)

	// CountActive はアクティブプランの総数を返す。
	CountActive(ctx context.Context) (int, error)

	// DeleteSupersededBefore はcutoffより前に置き換えられた履歴プランを削除する。
	// アクティブプランは削除対象にならない。削除件数を返す。
	DeleteSupersededBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
