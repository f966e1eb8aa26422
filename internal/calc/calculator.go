// Package calc は栄養・運動ターゲットの計算ロジックを提供する。
// 純粋な決定的関数のみで構成され、I/Oや副作用を持たない。
// 同一のUserBiometricsに対しては常に同一のComputedTargetsを返す。
//
// 入力の検証は呼び出し側の責務であり、本パッケージの関数は
// 検証済みの値に対して全域関数として動作する（エラーを返さない）。
package calc

import (
	"fmt"
	"math"
	"time"

	"github.com/hitoshi/fitplan/internal/model"
)

// activityMultipliers は活動レベルごとのTDEE乗数。
// 有効な活動レベルの単一の情報源であり、検証にもこのテーブルを使用する。
var activityMultipliers = map[model.ActivityLevel]float64{
	model.ActivitySedentary: 1.2,
	model.ActivityLight:     1.375,
	model.ActivityModerate:  1.55,
	model.ActivityVery:      1.725,
	model.ActivityExtreme:   1.9,
}

// Mifflin-St Jeor式の性別オフセット。otherは男女の数値的中間値。
const (
	sexOffsetMale   = 5.0
	sexOffsetFemale = -161.0
	sexOffsetOther  = -78.0
)

// calorieAdjustments は目標ごとのTDEEに対するカロリー増減（kcal/日）。
// 安全な変化率（約0.45kg/週）を前提とした固定値であり、ユーザーが調整することはない。
var calorieAdjustments = map[model.Goal]int{
	model.GoalLoseWeight:    -500,
	model.GoalGainMuscle:    400,
	model.GoalMaintain:      0,
	model.GoalImproveHealth: 0,
}

// proteinPerKg は目標ごとのタンパク質係数（g/kg体重）。
// エビデンスに基づく1.6〜2.4g/kgの範囲内で目標別の値を採用する。
var proteinPerKg = map[model.Goal]float64{
	model.GoalLoseWeight:    2.2,
	model.GoalGainMuscle:    2.0,
	model.GoalMaintain:      1.8,
	model.GoalImproveHealth: 1.6,
}

// weeklyRates は目標ごとの週あたり体重変化率（kg/週、負=減量）。
// カロリー増減と同じ前提（約7700kcal/kgのエネルギー密度）から導出した固定値。
var weeklyRates = map[model.Goal]float64{
	model.GoalLoseWeight:    -0.5,
	model.GoalGainMuscle:    0.4,
	model.GoalMaintain:      0,
	model.GoalImproveHealth: 0,
}

// waterPerKgMl は体重1kgあたりの目標水分量（ml）。
const waterPerKgMl = 35

// BMR はMifflin-St Jeor式で基礎代謝量（kcal/日）を計算する。
// 10×体重 + 6.25×身長 − 5×年齢 + 性別オフセット を最近接整数に丸める。
func BMR(weightKg, heightCm float64, ageYears int, sex model.Sex) int {
	offset := sexOffsetOther
	switch sex {
	case model.SexMale:
		offset = sexOffsetMale
	case model.SexFemale:
		offset = sexOffsetFemale
	}
	bmr := 10*weightKg + 6.25*heightCm - 5*float64(ageYears) + offset
	return int(math.Round(bmr))
}

// TDEE は基礎代謝量に活動レベル乗数を掛けた総消費カロリー（kcal/日）を計算する。
// 乗数は常に1.2以上のため、結果は常にBMR以上となる。
func TDEE(bmr int, level model.ActivityLevel) int {
	return int(math.Round(float64(bmr) * activityMultipliers[level]))
}

// CalorieTarget はTDEEに目標別の固定増減を適用した目標摂取カロリーを返す。
func CalorieTarget(tdee int, goal model.Goal) int {
	return tdee + calorieAdjustments[goal]
}

// ProteinTargetGrams は体重と目標から1日あたりの目標タンパク質（g）を計算する。
func ProteinTargetGrams(weightKg float64, goal model.Goal) int {
	return int(math.Round(weightKg * proteinPerKg[goal]))
}

// WaterTargetMl は体重から1日あたりの目標水分量（ml）を計算する。
func WaterTargetMl(weightKg float64) int {
	return int(math.Round(weightKg * waterPerKgMl))
}

// WeeklyRateKgPerWeek は目標ごとの週あたり体重変化率（kg/週）を返す。
func WeeklyRateKgPerWeek(goal model.Goal) float64 {
	return weeklyRates[goal]
}

// Targets は検証済みのバイオメトリクスからすべてのターゲットを計算する。
func Targets(b *model.UserBiometrics) model.ComputedTargets {
	bmr := BMR(b.WeightKg, b.HeightCm, b.AgeYears, b.Sex)
	tdee := TDEE(bmr, b.ActivityLevel)
	return model.ComputedTargets{
		BMR:                 bmr,
		TDEE:                tdee,
		CalorieTarget:       CalorieTarget(tdee, b.Goal),
		ProteinTargetGrams:  ProteinTargetGrams(b.WeightKg, b.Goal),
		WaterTargetMl:       WaterTargetMl(b.WeightKg),
		WeeklyRateKgPerWeek: WeeklyRateKgPerWeek(b.Goal),
	}
}

// Project は開始体重・目標体重・週あたり変化率から達成見込みを計算する。
// 変化率が0、または目標体重が開始体重と等しい場合はnilを返す。
// 推定週数は ceil(|目標−開始| / |変化率|)。
func Project(startWeightKg, targetWeightKg, ratePerWeek float64, from time.Time) *model.Projection {
	if ratePerWeek == 0 || targetWeightKg == startWeightKg {
		return nil
	}
	weeks := int(math.Ceil(math.Abs(targetWeightKg-startWeightKg) / math.Abs(ratePerWeek)))
	return &model.Projection{
		EstimatedWeeks: weeks,
		ProjectedDate:  from.AddDate(0, 0, weeks*7),
		StartWeightKg:  startWeightKg,
		TargetWeightKg: targetWeightKg,
	}
}

// Projection はバイオメトリクスから達成見込みを計算する。
// 目標体重が未設定の場合はnilを返す。
func Projection(b *model.UserBiometrics, targets model.ComputedTargets, from time.Time) *model.Projection {
	if b.TargetWeightKg == nil {
		return nil
	}
	return Project(b.WeightKg, *b.TargetWeightKg, targets.WeeklyRateKgPerWeek, from)
}

// Explain はターゲットの根拠説明（WhyItWorks）を生成する。
// 計算式の再実装を避けるため、説明文もこのパッケージで一元的に組み立てる。
func Explain(b *model.UserBiometrics, targets model.ComputedTargets) model.WhyItWorks {
	return model.WhyItWorks{
		BMRFormula:         "BMR = 10×体重(kg) + 6.25×身長(cm) − 5×年齢 + 性別オフセット（Mifflin-St Jeor式）",
		ActivityMultiplier: activityMultipliers[b.ActivityLevel],
		TDEEFormula:        fmt.Sprintf("TDEE = BMR(%d) × 活動レベル乗数(%.3f)", targets.BMR, activityMultipliers[b.ActivityLevel]),
		CalorieAdjustment:  calorieAdjustments[b.Goal],
		CalorieExplanation: fmt.Sprintf("目標摂取カロリーはTDEE(%d)に目標別の増減(%+d kcal/日)を加えた値です。", targets.TDEE, calorieAdjustments[b.Goal]),
		ProteinPerKg:       proteinPerKg[b.Goal],
		ProteinExplanation: fmt.Sprintf("タンパク質は体重1kgあたり%.1fgを目安とします。", proteinPerKg[b.Goal]),
		WaterPerKgMl:       waterPerKgMl,
		WaterExplanation:   fmt.Sprintf("水分は体重1kgあたり%dmlを目安とします。", waterPerKgMl),
	}
}
