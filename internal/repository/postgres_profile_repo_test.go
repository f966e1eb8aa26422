package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hitoshi/fitplan/internal/model"
)

// insertTestProfile はテスト用のプロフィール行を挿入する。
func insertTestProfile(t *testing.T, db *sql.DB, b *model.UserBiometrics) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO user_profiles (user_id, weight_kg, height_cm, age_years, sex,
		                            goal, activity_level, target_weight_kg, target_date, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.UserID, b.WeightKg, b.HeightCm, b.AgeYears, b.Sex,
		b.Goal, b.ActivityLevel, b.TargetWeightKg, b.TargetDate, b.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("プロフィールの挿入に失敗: %v", err)
	}
}

func TestPostgresProfileRepo_FindByUserID_NotFound(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewPostgresProfileRepo(db)

	b, err := repo.FindByUserID(context.Background(), "user-missing")
	if err != nil {
		t.Fatalf("FindByUserID() error = %v", err)
	}
	if b != nil {
		t.Errorf("biometrics = %+v, want nil", b)
	}
}

func TestPostgresProfileRepo_FindByUserID_AllFields(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewPostgresProfileRepo(db)

	targetWeight := 70.0
	targetDate := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	want := &model.UserBiometrics{
		UserID:         "user-1",
		WeightKg:       75,
		HeightCm:       170,
		AgeYears:       30,
		Sex:            model.SexFemale,
		Goal:           model.GoalLoseWeight,
		ActivityLevel:  model.ActivityModerate,
		TargetWeightKg: &targetWeight,
		TargetDate:     &targetDate,
		UpdatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	insertTestProfile(t, db, want)

	got, err := repo.FindByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("FindByUserID() error = %v", err)
	}
	if got == nil {
		t.Fatal("got = nil, want biometrics")
	}

	if got.UserID != want.UserID {
		t.Errorf("UserID = %q, want %q", got.UserID, want.UserID)
	}
	if got.WeightKg != want.WeightKg {
		t.Errorf("WeightKg = %v, want %v", got.WeightKg, want.WeightKg)
	}
	if got.HeightCm != want.HeightCm {
		t.Errorf("HeightCm = %v, want %v", got.HeightCm, want.HeightCm)
	}
	if got.AgeYears != want.AgeYears {
		t.Errorf("AgeYears = %d, want %d", got.AgeYears, want.AgeYears)
	}
	if got.Sex != want.Sex {
		t.Errorf("Sex = %q, want %q", got.Sex, want.Sex)
	}
	if got.Goal != want.Goal {
		t.Errorf("Goal = %q, want %q", got.Goal, want.Goal)
	}
	if got.ActivityLevel != want.ActivityLevel {
		t.Errorf("ActivityLevel = %q, want %q", got.ActivityLevel, want.ActivityLevel)
	}
	if got.TargetWeightKg == nil || *got.TargetWeightKg != targetWeight {
		t.Errorf("TargetWeightKg = %v, want %v", got.TargetWeightKg, targetWeight)
	}
	if got.TargetDate == nil || !got.TargetDate.Equal(targetDate) {
		t.Errorf("TargetDate = %v, want %v", got.TargetDate, targetDate)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}
}

// 目標体重・目標日が未設定のプロフィールではNULLがnilとして復元されることを検証する。
func TestPostgresProfileRepo_FindByUserID_OptionalFieldsNull(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewPostgresProfileRepo(db)

	insertTestProfile(t, db, &model.UserBiometrics{
		UserID:        "user-2",
		WeightKg:      82,
		HeightCm:      180,
		AgeYears:      41,
		Sex:           model.SexMale,
		Goal:          model.GoalMaintain,
		ActivityLevel: model.ActivitySedentary,
		UpdatedAt:     time.Now().UTC(),
	})

	got, err := repo.FindByUserID(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("FindByUserID() error = %v", err)
	}
	if got.TargetWeightKg != nil {
		t.Errorf("TargetWeightKg = %v, want nil", *got.TargetWeightKg)
	}
	if got.TargetDate != nil {
		t.Errorf("TargetDate = %v, want nil", *got.TargetDate)
	}
}
