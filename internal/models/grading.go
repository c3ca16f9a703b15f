package models

// Default component weights applied when neither the grading scale nor
// the system settings specify them.
const (
	DefaultTestWeight = 40.0
	DefaultExamWeight = 60.0
)

// RankingBasis selects the score used to order a class for positions.
type RankingBasis string

const (
	// RankingBasisAverage ranks on average score, so classes whose
	// departments carry different subject counts compare fairly.
	RankingBasisAverage RankingBasis = "average"
	// RankingBasisTotal ranks on summed obtained marks.
	RankingBasisTotal RankingBasis = "total"
)

// GradeBoundary maps a minimum percentage onto a grade letter.
type GradeBoundary struct {
	MinPercent float64 `json:"min_percent"`
	Grade      string  `json:"grade"`
	Remarks    string  `json:"remarks"`
}

// GradingConfig carries the resolved weights and boundary table used by
// every score computation for a report card.
type GradingConfig struct {
	Scale      string          `json:"scale"`
	TestWeight float64         `json:"test_weight"`
	ExamWeight float64         `json:"exam_weight"`
	Boundaries []GradeBoundary `json:"boundaries"`
}

// SystemWeights are the optional school-wide weight overrides held in
// configuration.
type SystemWeights struct {
	TestWeight *float64 `json:"test_weight,omitempty"`
	ExamWeight *float64 `json:"exam_weight,omitempty"`
}

// WeightedScore is the output of combining test and exam components.
type WeightedScore struct {
	TestWeighted  float64 `json:"test_weighted"`
	ExamWeighted  float64 `json:"exam_weighted"`
	WeightedScore float64 `json:"weighted_score"`
	Percentage    float64 `json:"percentage"`
}
