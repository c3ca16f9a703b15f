package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edubase/reportcard-api/internal/models"
)

// StudentSubjectRepository manages per-student subject assignments.
type StudentSubjectRepository struct {
	db *sqlx.DB
}

// NewStudentSubjectRepository constructs repository.
func NewStudentSubjectRepository(db *sqlx.DB) *StudentSubjectRepository {
	return &StudentSubjectRepository{db: db}
}

// ListActiveByStudent returns a student's active subject assignments
// with subject details joined in.
func (r *StudentSubjectRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.StudentSubjectAssignment, error) {
	const query = `SELECT a.id, a.student_id, a.class_id, a.subject_id, a.term_id, a.active, a.created_at,
        s.name AS subject_name, s.category AS subject_category
        FROM student_subject_assignments a
        JOIN subjects s ON s.id = a.subject_id
        WHERE a.student_id = $1 AND a.active = TRUE AND s.active = TRUE
        ORDER BY s.name`
	var assignments []models.StudentSubjectAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student subject assignments: %w", err)
	}
	return assignments, nil
}

// Upsert records an assignment, reactivating a previous one for the
// same student, subject and term when present.
func (r *StudentSubjectRepository) Upsert(ctx context.Context, assignment *models.StudentSubjectAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_subject_assignments (id, student_id, class_id, subject_id, term_id, active, created_at)
        VALUES (:id, :student_id, :class_id, :subject_id, :term_id, :active, :created_at)
        ON CONFLICT (student_id, subject_id, term_id) DO UPDATE SET
        class_id = EXCLUDED.class_id,
        active = EXCLUDED.active`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("upsert student subject assignment: %w", err)
	}
	return nil
}
