package grades

import (
	"math"

	"github.com/circademic/gradetrack/internal/apperr"
)

// PassingGrade is the minimum final grade that passes a course
const PassingGrade = 55.0

// ShieldMode says which quantity a shield calculation produced
type ShieldMode string

const (
	ShieldFinal    ShieldMode = "final"    // Final grade from both components
	ShieldRequired ShieldMode = "required" // Exam grade needed to pass
)

// ShieldInput describes a two-component grade: coursework (the "shield")
// weighted WeightPercent and an exam weighted the rest. A nil ExamGrade
// asks for the exam grade needed to pass.
type ShieldInput struct {
	ComponentGrade *float64 `json:"component_grade"`
	WeightPercent  *float64 `json:"weight_percent"`
	ExamGrade      *float64 `json:"exam_grade,omitempty"`
}

// ShieldResult is the outcome of a shield calculation
type ShieldResult struct {
	Mode       ShieldMode `json:"mode"`
	Grade      float64    `json:"grade"`
	Threshold  float64    `json:"threshold"`
	Achievable bool       `json:"achievable"`
}

// Shield computes either the final grade (exam grade given) or the minimum
// exam grade reaching PassingGrade.
func Shield(in ShieldInput) (ShieldResult, error) {
	if !present(in.ComponentGrade) || !present(in.WeightPercent) {
		return ShieldResult{}, apperr.New(apperr.CodeShieldMissing, "component grade and weight are required")
	}
	component, weight := *in.ComponentGrade, *in.WeightPercent
	if weight < 0 || weight > 100 {
		return ShieldResult{}, apperr.New(apperr.CodeInvalidInput, "weight must be between 0 and 100")
	}

	componentPart := component * weight / 100
	examWeight := 100 - weight

	if in.ExamGrade != nil {
		if !present(in.ExamGrade) {
			return ShieldResult{}, apperr.New(apperr.CodeShieldMissing, "exam grade is not a number")
		}
		final := componentPart + *in.ExamGrade*examWeight/100
		return ShieldResult{
			Mode:       ShieldFinal,
			Grade:      round(final, 2),
			Threshold:  PassingGrade,
			Achievable: final >= PassingGrade,
		}, nil
	}

	if examWeight == 0 {
		return ShieldResult{}, apperr.New(apperr.CodeShieldFullWeight, "weight cannot be 100% without an exam grade")
	}

	required := (PassingGrade - componentPart) * 100 / examWeight
	return ShieldResult{
		Mode:       ShieldRequired,
		Grade:      round(required, 2),
		Threshold:  PassingGrade,
		Achievable: required <= 100,
	}, nil
}

func present(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
