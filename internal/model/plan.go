// Package model はドメインモデルを定義する。
package model

import "time"

// PlanStatus はプランスナップショットの状態を表す。
type PlanStatus string

const (
	// PlanStatusActive は現在有効なプラン。ユーザーごとに常に1件のみ存在する。
	PlanStatusActive PlanStatus = "active"
	// PlanStatusSuperseded は再計算により置き換えられた過去のプラン。
	// 履歴として保持され、書き換えられることはない。
	PlanStatusSuperseded PlanStatus = "superseded"
)

// ComputedTargets は計算された栄養・運動ターゲットを表す。
// 同一のUserBiometricsからは常に同一の値が導出される（決定性）。
type ComputedTargets struct {
	BMR                 int     `json:"bmr"`                     // 基礎代謝量（kcal/日）
	TDEE                int     `json:"tdee"`                    // 総消費カロリー（kcal/日）。常にBMR以上
	CalorieTarget       int     `json:"calorie_target"`          // 目標摂取カロリー（kcal/日）
	ProteinTargetGrams  int     `json:"protein_target_grams"`    // 目標タンパク質（g/日）
	WaterTargetMl       int     `json:"water_target_ml"`         // 目標水分量（ml/日）
	WeeklyRateKgPerWeek float64 `json:"weekly_rate_kg_per_week"` // 週あたり体重変化率。負=減量
}

// Projection は目標体重・目標日が設定されている場合の達成見込みを表す。
type Projection struct {
	EstimatedWeeks int       `json:"estimated_weeks"` // 達成までの推定週数
	ProjectedDate  time.Time `json:"projected_date"`  // 推定達成日
	StartWeightKg  float64   `json:"start_weight_kg"`
	TargetWeightKg float64   `json:"target_weight_kg"`
}

// WhyItWorks はプランの根拠を説明する構造化テキスト。
// 計算式と算出された係数を含む。挙動には影響しないが、
// 保存と読み出しで内容が保持されること（ラウンドトリップ）が求められる。
type WhyItWorks struct {
	BMRFormula         string  `json:"bmr_formula"`
	ActivityMultiplier float64 `json:"activity_multiplier"`
	TDEEFormula        string  `json:"tdee_formula"`
	CalorieAdjustment  int     `json:"calorie_adjustment"`
	CalorieExplanation string  `json:"calorie_explanation"`
	ProteinPerKg       float64 `json:"protein_per_kg"`
	ProteinExplanation string  `json:"protein_explanation"`
	WaterPerKgMl       int     `json:"water_per_kg_ml"`
	WaterExplanation   string  `json:"water_explanation"`
}

// PlanSnapshot は1回の計算サイクルで生成されたターゲットの不変な記録を表す。
// 追記専用であり、再計算のたびに新しいスナップショットがactiveとして挿入され、
// 既存のactiveプランはsupersededに置き換えられる。
type PlanSnapshot struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Targets    ComputedTargets `json:"targets"`
	Projection *Projection     `json:"projection,omitempty"`
	WhyItWorks WhyItWorks      `json:"why_it_works"`
	Status     PlanStatus      `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`

	// Recomputed は今回の呼び出しで新規計算されたか（true）、
	// 永続ストアの既存プランをそのまま返したか（false）を示す。
	// 永続化されないランタイムフラグ。
	Recomputed bool `json:"recomputed"`
}
