package calc

import (
	"reflect"
	"testing"
	"time"

	"github.com/hitoshi/fitplan/internal/model"
)

// validBiometrics はテスト用の検証済みバイオメトリクスを生成する。
func validBiometrics() *model.UserBiometrics {
	return &model.UserBiometrics{
		UserID:        "user-1",
		WeightKg:      75,
		HeightCm:      170,
		AgeYears:      30,
		Sex:           model.SexFemale,
		Goal:          model.GoalLoseWeight,
		ActivityLevel: model.ActivityModerate,
	}
}

func TestBMR(t *testing.T) {
	cases := []struct {
		name     string
		weightKg float64
		heightCm float64
		age      int
		sex      model.Sex
		want     int
	}{
		// 10×75 + 6.25×170 − 5×30 − 161 = 1501.5 → 1502
		{"female", 75, 170, 30, model.SexFemale, 1502},
		// 10×80 + 6.25×180 − 5×25 + 5 = 1805
		{"male", 80, 180, 25, model.SexMale, 1805},
		// 10×60 + 6.25×165 − 5×40 − 78 = 1353.25 → 1353
		{"other", 60, 165, 40, model.SexOther, 1353},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := BMR(tc.weightKg, tc.heightCm, tc.age, tc.sex)
			if got != tc.want {
				t.Errorf("BMR(%v, %v, %d, %s) = %d, want %d",
					tc.weightKg, tc.heightCm, tc.age, tc.sex, got, tc.want)
			}
		})
	}
}

func TestTDEE(t *testing.T) {
	cases := []struct {
		name  string
		bmr   int
		level model.ActivityLevel
		want  int
	}{
		{"sedentary", 1805, model.ActivitySedentary, 2166},
		{"moderate", 1502, model.ActivityModerate, 2328}, // 1502×1.55 = 2328.1
		{"extreme", 1353, model.ActivityExtreme, 2571},   // 1353×1.9 = 2570.7
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TDEE(tc.bmr, tc.level)
			if got != tc.want {
				t.Errorf("TDEE(%d, %s) = %d, want %d", tc.bmr, tc.level, got, tc.want)
			}
		})
	}
}

// TestTDEEAtLeastBMR は全活動レベルでTDEE ≥ BMRの不変条件を検証する。
func TestTDEEAtLeastBMR(t *testing.T) {
	for level := range activityMultipliers {
		for _, bmr := range []int{1200, 1502, 1805, 2400} {
			if tdee := TDEE(bmr, level); tdee < bmr {
				t.Errorf("TDEE(%d, %s) = %d は BMR を下回っています", bmr, level, tdee)
			}
		}
	}
}

// TestCalorieTargetOffset は目標摂取カロリーがTDEEと目標別定数分だけ
// 差があることを検証する。
func TestCalorieTargetOffset(t *testing.T) {
	cases := []struct {
		goal model.Goal
		diff int
	}{
		{model.GoalLoseWeight, -500},
		{model.GoalGainMuscle, 400},
		{model.GoalMaintain, 0},
		{model.GoalImproveHealth, 0},
	}

	for _, tc := range cases {
		t.Run(string(tc.goal), func(t *testing.T) {
			tdee := 2328
			got := CalorieTarget(tdee, tc.goal)
			if got-tdee != tc.diff {
				t.Errorf("CalorieTarget(%d, %s) − TDEE = %d, want %d", tdee, tc.goal, got-tdee, tc.diff)
			}
		})
	}
}

func TestProteinTargetGrams(t *testing.T) {
	cases := []struct {
		goal model.Goal
		want int
	}{
		{model.GoalLoseWeight, 165},    // 75×2.2
		{model.GoalGainMuscle, 150},    // 75×2.0
		{model.GoalMaintain, 135},      // 75×1.8
		{model.GoalImproveHealth, 120}, // 75×1.6
	}

	for _, tc := range cases {
		t.Run(string(tc.goal), func(t *testing.T) {
			if got := ProteinTargetGrams(75, tc.goal); got != tc.want {
				t.Errorf("ProteinTargetGrams(75, %s) = %d, want %d", tc.goal, got, tc.want)
			}
		})
	}
}

func TestWaterTargetMl(t *testing.T) {
	if got := WaterTargetMl(75); got != 2625 {
		t.Errorf("WaterTargetMl(75) = %d, want 2625", got)
	}
}

func TestTargets(t *testing.T) {
	b := validBiometrics()
	got := Targets(b)

	want := model.ComputedTargets{
		BMR:                 1502,
		TDEE:                2328,
		CalorieTarget:       1828,
		ProteinTargetGrams:  165,
		WaterTargetMl:       2625,
		WeeklyRateKgPerWeek: -0.5,
	}
	if got != want {
		t.Errorf("Targets() = %+v, want %+v", got, want)
	}
}

// TestTargetsDeterministic は同一入力に対して常に同一の結果が
// 返ること（決定性）を検証する。
func TestTargetsDeterministic(t *testing.T) {
	b := validBiometrics()
	first := Targets(b)
	for i := 0; i < 100; i++ {
		if got := Targets(b); got != first {
			t.Fatalf("Targets() の結果が一致しません: %+v != %+v", got, first)
		}
	}
}

func TestProject(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("10kg減・週0.5kgで20週", func(t *testing.T) {
		p := Project(80, 70, -0.5, from)
		if p == nil {
			t.Fatal("Project() = nil, want projection")
		}
		if p.EstimatedWeeks != 20 {
			t.Errorf("EstimatedWeeks = %d, want 20", p.EstimatedWeeks)
		}
		if want := from.AddDate(0, 0, 140); !p.ProjectedDate.Equal(want) {
			t.Errorf("ProjectedDate = %v, want %v", p.ProjectedDate, want)
		}
	})

	t.Run("端数はceilで切り上げ", func(t *testing.T) {
		p := Project(75, 68, -0.5, from)
		if p == nil {
			t.Fatal("Project() = nil, want projection")
		}
		if p.EstimatedWeeks != 14 {
			t.Errorf("EstimatedWeeks = %d, want 14", p.EstimatedWeeks)
		}
	})

	t.Run("変化率0はnil", func(t *testing.T) {
		if p := Project(80, 70, 0, from); p != nil {
			t.Errorf("Project(rate=0) = %+v, want nil", p)
		}
	})

	t.Run("目標体重が開始体重と同じ場合はnil", func(t *testing.T) {
		if p := Project(80, 80, -0.5, from); p != nil {
			t.Errorf("Project(target=start) = %+v, want nil", p)
		}
	})
}

func TestProjection(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("目標体重未設定はnil", func(t *testing.T) {
		b := validBiometrics()
		targets := Targets(b)
		if p := Projection(b, targets, from); p != nil {
			t.Errorf("Projection() = %+v, want nil", p)
		}
	})

	t.Run("目標体重設定時はProjectionを返す", func(t *testing.T) {
		b := validBiometrics()
		target := 65.0
		b.TargetWeightKg = &target
		targets := Targets(b)

		p := Projection(b, targets, from)
		if p == nil {
			t.Fatal("Projection() = nil, want projection")
		}
		if p.EstimatedWeeks != 20 {
			t.Errorf("EstimatedWeeks = %d, want 20", p.EstimatedWeeks)
		}
		if p.StartWeightKg != 75 || p.TargetWeightKg != 65 {
			t.Errorf("体重フィールドが不正: %+v", p)
		}
	})
}

func TestExplain(t *testing.T) {
	b := validBiometrics()
	targets := Targets(b)
	w := Explain(b, targets)

	if w.ActivityMultiplier != 1.55 {
		t.Errorf("ActivityMultiplier = %v, want 1.55", w.ActivityMultiplier)
	}
	if w.CalorieAdjustment != -500 {
		t.Errorf("CalorieAdjustment = %d, want -500", w.CalorieAdjustment)
	}
	if w.ProteinPerKg != 2.2 {
		t.Errorf("ProteinPerKg = %v, want 2.2", w.ProteinPerKg)
	}
	if w.BMRFormula == "" || w.TDEEFormula == "" {
		t.Error("計算式の説明文字列が空です")
	}

	// 同一入力からは同一の説明が生成される
	if again := Explain(b, targets); !reflect.DeepEqual(w, again) {
		t.Errorf("Explain() の結果が一致しません")
	}
}
