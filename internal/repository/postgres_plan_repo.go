package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/fitplan/internal/model"
)

// PostgreSQLの一意制約違反エラーコード。
const pqUniqueViolation = "23505"

// PostgresPlanRepo はPostgreSQLを使用したプランリポジトリ。
// plansテーブルは追記専用であり、「ユーザーごとにアクティブプランは常に1件」の
// 不変条件をトランザクションと部分ユニークインデックスで保証する。
type PostgresPlanRepo struct {
	db *sql.DB
}

// NewPostgresPlanRepo はPostgresPlanRepoを生成する。
func NewPostgresPlanRepo(db *sql.DB) *PostgresPlanRepo {
	return &PostgresPlanRepo{db: db}
}

// FindActiveByUserID は指定ユーザーのアクティブプランを取得する。見つからない場合はnilを返す。
func (r *PostgresPlanRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.PlanSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, bmr, tdee, calorie_target, protein_target_grams,
		        water_target_ml, weekly_rate_kg_per_week, projection, why_it_works,
		        status, created_at
		 FROM plans WHERE user_id = $1 AND status = 'active'`,
		userID,
	)

	snapshot, err := scanPlanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アクティブプランの取得に失敗しました: %w", err)
	}

	return snapshot, nil
}

// CreateSuperseding は既存のアクティブプランをsupersededに変更し、
// 新しいプランをactiveとして挿入する。
// UPDATEが先に行ロックを取得するため、同一ユーザーに対する並行実行は
// トランザクション単位で直列化され、アクティブプランが重複することはない。
//
// アクティブプランがまだ存在しないユーザーへの並行実行では、UPDATEが
// 0行にマッチして行ロックが取得されず、後着のINSERTが部分ユニーク
// インデックスに弾かれる。この場合はトランザクション全体を再試行し、
// 先着がコミットしたactiveプランを置き換える形でやり直す。
func (r *PostgresPlanRepo) CreateSuperseding(ctx context.Context, snapshot *model.PlanSnapshot) error {
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		err := r.createSupersedingTx(ctx, snapshot)
		if err == nil {
			return nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			lastErr = err
			continue
		}
		return err
	}
	return fmt.Errorf("アクティブプランの置き換えが競合により失敗しました: %w", lastErr)
}

func (r *PostgresPlanRepo) createSupersedingTx(ctx context.Context, snapshot *model.PlanSnapshot) error {
	projectionJSON, whyJSON, err := marshalPlanJSON(snapshot)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE plans SET status = 'superseded', superseded_at = now()
		 WHERE user_id = $1 AND status = 'active'`,
		snapshot.UserID,
	); err != nil {
		return fmt.Errorf("既存プランの置き換えに失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO plans (id, user_id, bmr, tdee, calorie_target, protein_target_grams,
		                    water_target_ml, weekly_rate_kg_per_week, projection, why_it_works,
		                    status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		snapshot.ID, snapshot.UserID,
		snapshot.Targets.BMR, snapshot.Targets.TDEE, snapshot.Targets.CalorieTarget,
		snapshot.Targets.ProteinTargetGrams, snapshot.Targets.WaterTargetMl,
		snapshot.Targets.WeeklyRateKgPerWeek,
		projectionJSON, whyJSON,
		snapshot.Status, snapshot.CreatedAt,
	); err != nil {
		return fmt.Errorf("新規プランの挿入に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// ListActiveUserIDs はアクティブプランを持つユーザーIDをID昇順でページ取得する。
func (r *PostgresPlanRepo) ListActiveUserIDs(ctx context.Context, afterUserID string, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM plans
		 WHERE status = 'active' AND user_id > $1
		 ORDER BY user_id ASC
		 LIMIT $2`,
		afterUserID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("アクティブユーザーIDの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("アクティブユーザーIDの読み取りに失敗しました: %w", err)
		}
		userIDs = append(userIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アクティブユーザーIDの走査に失敗しました: %w", err)
	}

	return userIDs, nil
}

// CountActive はアクティブプランの総数を返す。
func (r *PostgresPlanRepo) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM plans WHERE status = 'active'`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("アクティブプラン数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// DeleteSupersededBefore はcutoffより前に置き換えられた履歴プランを削除する。
// アクティブプランは条件に含まれないため削除されない。
func (r *PostgresPlanRepo) DeleteSupersededBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM plans WHERE status = 'superseded' AND superseded_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("履歴プランの削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return deleted, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanPlanSnapshot は1行分のプランスナップショットを読み取る。
func scanPlanSnapshot(row rowScanner) (*model.PlanSnapshot, error) {
	snapshot := &model.PlanSnapshot{}
	var projectionJSON []byte
	var whyJSON []byte

	if err := row.Scan(
		&snapshot.ID, &snapshot.UserID,
		&snapshot.Targets.BMR, &snapshot.Targets.TDEE, &snapshot.Targets.CalorieTarget,
		&snapshot.Targets.ProteinTargetGrams, &snapshot.Targets.WaterTargetMl,
		&snapshot.Targets.WeeklyRateKgPerWeek,
		&projectionJSON, &whyJSON,
		&snapshot.Status, &snapshot.CreatedAt,
	); err != nil {
		return nil, err
	}

	if len(projectionJSON) > 0 {
		projection := &model.Projection{}
		if err := json.Unmarshal(projectionJSON, projection); err != nil {
			return nil, fmt.Errorf("projectionの復元に失敗しました: %w", err)
		}
		snapshot.Projection = projection
	}

	if len(whyJSON) > 0 {
		if err := json.Unmarshal(whyJSON, &snapshot.WhyItWorks); err != nil {
			return nil, fmt.Errorf("why_it_worksの復元に失敗しました: %w", err)
		}
	}

	return snapshot, nil
}

// marshalPlanJSON はスナップショットのJSONBカラム値を生成する。
// projectionが存在しない場合はNULLを格納する。
func marshalPlanJSON(snapshot *model.PlanSnapshot) ([]byte, []byte, error) {
	var projectionJSON []byte
	if snapshot.Projection != nil {
		data, err := json.Marshal(snapshot.Projection)
		if err != nil {
			return nil, nil, fmt.Errorf("projectionのシリアライズに失敗しました: %w", err)
		}
		projectionJSON = data
	}

	whyJSON, err := json.Marshal(snapshot.WhyItWorks)
	if err != nil {
		return nil, nil, fmt.Errorf("why_it_worksのシリアライズに失敗しました: %w", err)
	}

	return projectionJSON, whyJSON, nil
}

// compile-time interface check
var _ PlanRepository = (*PostgresPlanRepo)(nil)
