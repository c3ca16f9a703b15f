package service

import (
	"strings"

	"github.com/edubase/reportcard-api/internal/models"
)

// builtinScale bundles a boundary table with the scale's own default
// component weights.
type builtinScale struct {
	testWeight float64
	examWeight float64
	boundaries []models.GradeBoundary
}

// Boundary tables are kept sorted by MinPercent descending so the
// classifier can take the first match.
var builtinScales = map[string]builtinScale{
	"standard": {
		testWeight: models.DefaultTestWeight,
		examWeight: models.DefaultExamWeight,
		boundaries: []models.GradeBoundary{
			{MinPercent: 90, Grade: "A", Remarks: "Excellent"},
			{MinPercent: 80, Grade: "B", Remarks: "Very Good"},
			{MinPercent: 70, Grade: "C", Remarks: "Good"},
			{MinPercent: 60, Grade: "D", Remarks: "Credit"},
			{MinPercent: 50, Grade: "E", Remarks: "Pass"},
			{MinPercent: 0, Grade: "F", Remarks: "Fail"},
		},
	},
	"waec": {
		testWeight: models.DefaultTestWeight,
		examWeight: models.DefaultExamWeight,
		boundaries: []models.GradeBoundary{
			{MinPercent: 75, Grade: "A1", Remarks: "Excellent"},
			{MinPercent: 70, Grade: "B2", Remarks: "Very Good"},
			{MinPercent: 65, Grade: "B3", Remarks: "Good"},
			{MinPercent: 60, Grade: "C4", Remarks: "Credit"},
			{MinPercent: 55, Grade: "C5", Remarks: "Credit"},
			{MinPercent: 50, Grade: "C6", Remarks: "Credit"},
			{MinPercent: 45, Grade: "D7", Remarks: "Pass"},
			{MinPercent: 40, Grade: "E8", Remarks: "Pass"},
			{MinPercent: 0, Grade: "F9", Remarks: "Fail"},
		},
	},
	"cambridge": {
		testWeight: 50,
		examWeight: 50,
		boundaries: []models.GradeBoundary{
			{MinPercent: 90, Grade: "A*", Remarks: "Outstanding"},
			{MinPercent: 80, Grade: "A", Remarks: "Excellent"},
			{MinPercent: 70, Grade: "B", Remarks: "Very Good"},
			{MinPercent: 60, Grade: "C", Remarks: "Good"},
			{MinPercent: 50, Grade: "D", Remarks: "Satisfactory"},
			{MinPercent: 40, Grade: "E", Remarks: "Pass"},
			{MinPercent: 0, Grade: "U", Remarks: "Ungraded"},
		},
	},
}

// ResolveGradingConfig produces the effective grading configuration for
// a scale. System-wide weight overrides take precedence over the
// scale's defaults; unknown scale identifiers fall back to the standard
// table. It never fails.
func ResolveGradingConfig(scaleID string, weights models.SystemWeights) models.GradingConfig {
	key := strings.ToLower(strings.TrimSpace(scaleID))
	scale, ok := builtinScales[key]
	if !ok {
		key = "standard"
		scale = builtinScales[key]
	}

	cfg := models.GradingConfig{
		Scale:      key,
		TestWeight: scale.testWeight,
		ExamWeight: scale.examWeight,
		Boundaries: scale.boundaries,
	}
	if weights.TestWeight != nil && *weights.TestWeight > 0 {
		cfg.TestWeight = *weights.TestWeight
	}
	if weights.ExamWeight != nil && *weights.ExamWeight > 0 {
		cfg.ExamWeight = *weights.ExamWeight
	}
	return cfg
}
