package service

import (
	"math"

	"github.com/edubase/reportcard-api/internal/models"
)

// ComputeWeightedScore combines the test and exam components of one
// subject into a weighted score. Each component is weighted
// independently and the two contributions are summed; a missing
// component contributes zero rather than having the remaining weight
// renormalised, so a student with only an exam score is capped at the
// exam weight's share. Degenerate inputs (zero max score, non-finite
// results) are coerced to zero so NaN/Inf never reach storage.
func ComputeWeightedScore(testScore, testMaxScore, examScore, examMaxScore *float64, cfg models.GradingConfig) models.WeightedScore {
	var out models.WeightedScore
	if testScore != nil && testMaxScore != nil && *testMaxScore > 0 {
		out.TestWeighted = safeNumber(*testScore / *testMaxScore * cfg.TestWeight)
	}
	if examScore != nil && examMaxScore != nil && *examMaxScore > 0 {
		out.ExamWeighted = safeNumber(*examScore / *examMaxScore * cfg.ExamWeight)
	}
	out.WeightedScore = safeNumber(out.TestWeighted + out.ExamWeighted)
	out.Percentage = out.WeightedScore
	return out
}

// ClassifyGrade maps a percentage onto the highest boundary whose
// minimum does not exceed it. The last boundary acts as the catch-all,
// so every percentage maps to some grade.
func ClassifyGrade(percentage float64, cfg models.GradingConfig) (grade, remarks string) {
	percentage = safeNumber(percentage)
	for _, b := range cfg.Boundaries {
		if percentage >= b.MinPercent {
			return b.Grade, b.Remarks
		}
	}
	if n := len(cfg.Boundaries); n > 0 {
		last := cfg.Boundaries[n-1]
		return last.Grade, last.Remarks
	}
	return "", ""
}

func safeNumber(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
