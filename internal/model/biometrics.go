// Package model はドメインモデルを定義する。
package model

import "time"

// Sex は生物学的性別カテゴリを表す。
type Sex string

const (
	// SexMale は男性。
	SexMale Sex = "male"
	// SexFemale は女性。
	SexFemale Sex = "female"
	// SexOther はその他・未指定。計算には男女の中間値を使用する。
	SexOther Sex = "other"
)

// Goal はユーザーの主目標を表す。
type Goal string

const (
	// GoalLoseWeight は減量目標。
	GoalLoseWeight Goal = "lose_weight"
	// GoalGainMuscle は増量（筋肥大）目標。
	GoalGainMuscle Goal = "gain_muscle"
	// GoalMaintain は現状維持目標。
	GoalMaintain Goal = "maintain"
	// GoalImproveHealth は健康改善目標。
	GoalImproveHealth Goal = "improve_health"
)

// ActivityLevel は身体活動レベルの5段階を表す。
type ActivityLevel string

const (
	// ActivitySedentary は座位中心の生活。
	ActivitySedentary ActivityLevel = "sedentary"
	// ActivityLight は軽い活動（週1〜3回の運動）。
	ActivityLight ActivityLevel = "lightly_active"
	// ActivityModerate は中程度の活動（週3〜5回の運動）。
	ActivityModerate ActivityLevel = "moderately_active"
	// ActivityVery は高い活動（週6〜7回の運動）。
	ActivityVery ActivityLevel = "very_active"
	// ActivityExtreme は非常に高い活動（肉体労働や1日2回の運動）。
	ActivityExtreme ActivityLevel = "extremely_active"
)

// 計算前提条件として許容されるバイオメトリクスの範囲。
// 範囲外のレコードは不正な形式ではなく「計算に使用できない」扱いとなる。
const (
	MinWeightKg = 30.0
	MaxWeightKg = 300.0
	MinHeightCm = 100.0
	MaxHeightCm = 250.0
	MinAgeYears = 13
	MaxAgeYears = 120
)

// UserBiometrics はユーザーのバイオメトリクス設定を表す。
// プロフィール管理コンポーネントが所有する外部入力であり、
// 本エンジンは読み取りのみを行う。
type UserBiometrics struct {
	UserID         string
	WeightKg       float64
	HeightCm       float64
	AgeYears       int
	Sex            Sex
	Goal           Goal
	ActivityLevel  ActivityLevel
	TargetWeightKg *float64   // 目標体重（任意）
	TargetDate     *time.Time // 目標達成日（任意）
	UpdatedAt      time.Time
}

// Validate はバイオメトリクスが計算の前提条件を満たすか検証する。
// 違反がある場合はIncompleteProfileエラーを返す。
// 計算機は検証済みの入力のみを受け取る。
func (b *UserBiometrics) Validate() *APIError {
	if b.WeightKg < MinWeightKg || b.WeightKg > MaxWeightKg {
		return NewIncompleteProfileError("体重が許容範囲（30〜300kg）外です")
	}
	if b.HeightCm < MinHeightCm || b.HeightCm > MaxHeightCm {
		return NewIncompleteProfileError("身長が許容範囲（100〜250cm）外です")
	}
	if b.AgeYears < MinAgeYears || b.AgeYears > MaxAgeYears {
		return NewIncompleteProfileError("年齢が許容範囲（13〜120歳）外です")
	}
	switch b.Sex {
	case SexMale, SexFemale, SexOther:
	default:
		return NewIncompleteProfileError("性別カテゴリが未設定です")
	}
	switch b.Goal {
	case GoalLoseWeight, GoalGainMuscle, GoalMaintain, GoalImproveHealth:
	default:
		return NewIncompleteProfileError("目標が未設定です")
	}
	switch b.ActivityLevel {
	case ActivitySedentary, ActivityLight, ActivityModerate, ActivityVery, ActivityExtreme:
	default:
		return NewIncompleteProfileError("活動レベルが未設定です")
	}
	return nil
}
