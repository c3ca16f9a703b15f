package models

import "time"

// SubjectCategory constants classify subjects.
const (
	SubjectCategoryGeneral    = "general"
	SubjectCategoryDepartment = "department"
)

// Subject represents a taught subject.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassSubjectMapping is the authoritative link between a class
// (optionally narrowed to a department) and a subject. A mapping with a
// nil department applies to every student in the class.
type ClassSubjectMapping struct {
	ID           string    `db:"id" json:"id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	Department   *string   `db:"department" json:"department,omitempty"`
	IsCompulsory bool      `db:"is_compulsory" json:"is_compulsory"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	SubjectName     string `db:"subject_name" json:"subject_name"`
	SubjectCategory string `db:"subject_category" json:"subject_category"`
}

// StudentSubjectAssignment is a per-student override of the subject list.
// When at least one active row exists for a student's current class it
// replaces the class/department mapping entirely.
type StudentSubjectAssignment struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TermID    string    `db:"term_id" json:"term_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	SubjectName     string `db:"subject_name" json:"subject_name"`
	SubjectCategory string `db:"subject_category" json:"subject_category"`
}
