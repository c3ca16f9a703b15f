package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/edubase/reportcard-api/internal/models"
)

// ExamRepository manages exam and exam result persistence.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByID returns one exam.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, title, subject_id, class_id, term_id, exam_type, total_marks, grading_scale, created_by, created_at
        FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// LatestScore returns the most recent non-archived result for a
// student, subject and term restricted to the given exam types.
// sql.ErrNoRows when the student has no such result.
func (r *ExamRepository) LatestScore(ctx context.Context, studentID, subjectID, termID string, examTypes []string) (*models.ExamScoreRow, error) {
	if len(examTypes) == 0 {
		return nil, fmt.Errorf("latest score: exam types required")
	}
	placeholders := make([]string, len(examTypes))
	args := make([]interface{}, 0, len(examTypes)+3)
	args = append(args, studentID, subjectID, termID)
	for i, t := range examTypes {
		placeholders[i] = fmt.Sprintf("$%d", i+4)
		args = append(args, t)
	}
	query := fmt.Sprintf(`SELECT e.id AS exam_id, e.subject_id, e.exam_type, e.created_by,
        r.student_id, r.score, r.max_score, r.submitted_at
        FROM exam_results r
        JOIN exams e ON e.id = r.exam_id
        WHERE r.student_id = $1 AND e.subject_id = $2 AND e.term_id = $3
          AND r.archived = FALSE AND e.exam_type IN (%s)
        ORDER BY r.submitted_at DESC LIMIT 1`, strings.Join(placeholders, ","))
	var row models.ExamScoreRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, err
	}
	return &row, nil
}

// ListScoreRowsByExam returns every non-archived result of one exam.
func (r *ExamRepository) ListScoreRowsByExam(ctx context.Context, examID string) ([]models.ExamScoreRow, error) {
	const query = `SELECT e.id AS exam_id, e.subject_id, e.exam_type, e.created_by,
        r.student_id, r.score, r.max_score, r.submitted_at
        FROM exam_results r
        JOIN exams e ON e.id = r.exam_id
        WHERE r.exam_id = $1 AND r.archived = FALSE
        ORDER BY r.submitted_at`
	var rows []models.ExamScoreRow
	if err := r.db.SelectContext(ctx, &rows, query, examID); err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	return rows, nil
}

// ListScoreRowsByTerm returns every non-archived result recorded for a term.
func (r *ExamRepository) ListScoreRowsByTerm(ctx context.Context, termID string) ([]models.ExamScoreRow, error) {
	const query = `SELECT e.id AS exam_id, e.subject_id, e.exam_type, e.created_by,
        r.student_id, r.score, r.max_score, r.submitted_at
        FROM exam_results r
        JOIN exams e ON e.id = r.exam_id
        WHERE e.term_id = $1 AND r.archived = FALSE
        ORDER BY r.submitted_at`
	var rows []models.ExamScoreRow
	if err := r.db.SelectContext(ctx, &rows, query, termID); err != nil {
		return nil, fmt.Errorf("list term results: %w", err)
	}
	return rows, nil
}
