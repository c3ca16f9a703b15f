package models

import "time"

// ReportCardStatus is the lifecycle state of a report card.
type ReportCardStatus string

const (
	StatusDraft     ReportCardStatus = "draft"
	StatusFinalized ReportCardStatus = "finalized"
	StatusPublished ReportCardStatus = "published"
)

// Valid reports whether the status is a known lifecycle state.
func (s ReportCardStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusFinalized, StatusPublished:
		return true
	}
	return false
}

// ReportCard aggregates one student's performance for a term. At most
// one exists per (student, term).
type ReportCard struct {
	ID                   string           `db:"id" json:"id"`
	StudentID            string           `db:"student_id" json:"student_id"`
	ClassID              string           `db:"class_id" json:"class_id"`
	TermID               string           `db:"term_id" json:"term_id"`
	Status               ReportCardStatus `db:"status" json:"status"`
	GradingScale         string           `db:"grading_scale" json:"grading_scale"`
	TotalScore           float64          `db:"total_score" json:"total_score"`
	AverageScore         float64          `db:"average_score" json:"average_score"`
	AveragePercentage    float64          `db:"average_percentage" json:"average_percentage"`
	OverallGrade         string           `db:"overall_grade" json:"overall_grade"`
	Position             *int             `db:"position" json:"position,omitempty"`
	TotalStudentsInClass int              `db:"total_students_in_class" json:"total_students_in_class"`
	Locked               bool             `db:"locked" json:"locked"`
	AutoGenerated        bool             `db:"auto_generated" json:"auto_generated"`
	GeneratedBy          *string          `db:"generated_by" json:"generated_by,omitempty"`
	TeacherRemarks       *string          `db:"teacher_remarks" json:"teacher_remarks,omitempty"`
	PrincipalRemarks     *string          `db:"principal_remarks" json:"principal_remarks,omitempty"`
	TeacherSignature     *string          `db:"teacher_signature" json:"teacher_signature,omitempty"`
	PrincipalSignature   *string          `db:"principal_signature" json:"principal_signature,omitempty"`
	GeneratedAt          time.Time        `db:"generated_at" json:"generated_at"`
	FinalizedAt          *time.Time       `db:"finalized_at" json:"finalized_at,omitempty"`
	PublishedAt          *time.Time       `db:"published_at" json:"published_at,omitempty"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
}

// ReportCardItem is one subject row on a report card. Unique per
// (report card, subject). When IsOverridden is set, automatic score
// sync must leave the row untouched.
type ReportCardItem struct {
	ID           string `db:"id" json:"id"`
	ReportCardID string `db:"report_card_id" json:"report_card_id"`
	SubjectID    string `db:"subject_id" json:"subject_id"`

	TestScore         *float64 `db:"test_score" json:"test_score,omitempty"`
	TestMaxScore      *float64 `db:"test_max_score" json:"test_max_score,omitempty"`
	TestWeightedScore float64  `db:"test_weighted_score" json:"test_weighted_score"`
	ExamScore         *float64 `db:"exam_score" json:"exam_score,omitempty"`
	ExamMaxScore      *float64 `db:"exam_max_score" json:"exam_max_score,omitempty"`
	ExamWeightedScore float64  `db:"exam_weighted_score" json:"exam_weighted_score"`

	ObtainedMarks float64 `db:"obtained_marks" json:"obtained_marks"`
	TotalMarks    float64 `db:"total_marks" json:"total_marks"`
	Percentage    float64 `db:"percentage" json:"percentage"`
	Grade         string  `db:"grade" json:"grade"`
	Remarks       string  `db:"remarks" json:"remarks"`

	IsOverridden bool       `db:"is_overridden" json:"is_overridden"`
	OverriddenBy *string    `db:"overridden_by" json:"overridden_by,omitempty"`
	OverriddenAt *time.Time `db:"overridden_at" json:"overridden_at,omitempty"`

	TestExamID        *string `db:"test_exam_id" json:"test_exam_id,omitempty"`
	TestExamCreatedBy *string `db:"test_exam_created_by" json:"test_exam_created_by,omitempty"`
	ExamExamID        *string `db:"exam_exam_id" json:"exam_exam_id,omitempty"`
	ExamExamCreatedBy *string `db:"exam_exam_created_by" json:"exam_exam_created_by,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	SubjectName string `db:"subject_name" json:"subject_name"`
}

// PositionUpdate carries one report card's computed rank.
type PositionUpdate struct {
	ReportCardID         string
	Position             int
	TotalStudentsInClass int
}

// ReportCardWithItems is the read model returned to consumers.
type ReportCardWithItems struct {
	ReportCard
	StudentName string           `json:"student_name"`
	ClassName   string           `json:"class_name"`
	TermName    string           `json:"term_name"`
	Items       []ReportCardItem `json:"items"`
}
