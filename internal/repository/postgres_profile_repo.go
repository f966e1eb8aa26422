package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/fitplan/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのバイオメトリクス設定を取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.UserBiometrics, error) {
	b := &model.UserBiometrics{}
	var targetWeight sql.NullFloat64
	var targetDate sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, weight_kg, height_cm, age_years, sex, goal,
		        activity_level, target_weight_kg, target_date, updated_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&b.UserID, &b.WeightKg, &b.HeightCm, &b.AgeYears, &b.Sex, &b.Goal,
		&b.ActivityLevel, &targetWeight, &targetDate, &b.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	if targetWeight.Valid {
		b.TargetWeightKg = &targetWeight.Float64
	}
	if targetDate.Valid {
		b.TargetDate = &targetDate.Time
	}

	return b, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
