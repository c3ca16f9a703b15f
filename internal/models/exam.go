package models

import "time"

// Exam type strings as recorded on exams.
const (
	ExamTypeTest       = "test"
	ExamTypeQuiz       = "quiz"
	ExamTypeAssignment = "assignment"
	ExamTypeExam       = "exam"
	ExamTypeFinal      = "final"
	ExamTypeMidterm    = "midterm"
)

// ScoreBucket classifies an exam type into the weighting category it
// contributes to on a report-card item.
type ScoreBucket int

const (
	// BucketTest covers continuous-assessment style exams.
	BucketTest ScoreBucket = iota
	// BucketExam covers main examinations.
	BucketExam
)

// String implements fmt.Stringer.
func (b ScoreBucket) String() string {
	if b == BucketExam {
		return "exam"
	}
	return "test"
}

// Types lists the raw exam type strings belonging to the bucket.
func (b ScoreBucket) Types() []string {
	if b == BucketExam {
		return []string{ExamTypeExam, ExamTypeFinal, ExamTypeMidterm}
	}
	return []string{ExamTypeTest, ExamTypeQuiz, ExamTypeAssignment}
}

// ClassifyExamType maps a raw exam type string onto its score bucket.
// Unrecognised types fall back to the test bucket.
func ClassifyExamType(examType string) ScoreBucket {
	switch examType {
	case ExamTypeExam, ExamTypeFinal, ExamTypeMidterm:
		return BucketExam
	case ExamTypeTest, ExamTypeQuiz, ExamTypeAssignment:
		return BucketTest
	default:
		return BucketTest
	}
}

// Exam represents a scheduled assessment for a class and subject.
type Exam struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	TermID       string    `db:"term_id" json:"term_id"`
	ExamType     string    `db:"exam_type" json:"exam_type"`
	TotalMarks   float64   `db:"total_marks" json:"total_marks"`
	GradingScale string    `db:"grading_scale" json:"grading_scale"`
	CreatedBy    string    `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ExamResult records one student's score on an exam. A retake archives
// the prior row and inserts a replacement, so at most one non-archived
// row exists per (exam, student).
type ExamResult struct {
	ID          string    `db:"id" json:"id"`
	ExamID      string    `db:"exam_id" json:"exam_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Score       float64   `db:"score" json:"score"`
	MaxScore    float64   `db:"max_score" json:"max_score"`
	Archived    bool      `db:"archived" json:"archived"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

// ExamScoreRow joins a result with the exam metadata the aggregator
// needs when backfilling report-card items.
type ExamScoreRow struct {
	ExamID    string    `db:"exam_id" json:"exam_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	ExamType  string    `db:"exam_type" json:"exam_type"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	StudentID string    `db:"student_id" json:"student_id"`
	Score     float64   `db:"score" json:"score"`
	MaxScore  float64   `db:"max_score" json:"max_score"`
	Submitted time.Time `db:"submitted_at" json:"submitted_at"`
}
