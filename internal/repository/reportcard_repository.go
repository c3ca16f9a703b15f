package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edubase/reportcard-api/internal/models"
)

// ReportCardRepository manages report cards and their items.
type ReportCardRepository struct {
	db *sqlx.DB
}

// NewReportCardRepository constructs repository.
func NewReportCardRepository(db *sqlx.DB) *ReportCardRepository {
	return &ReportCardRepository{db: db}
}

const reportCardColumns = `id, student_id, class_id, term_id, status, grading_scale,
        total_score, average_score, average_percentage, overall_grade,
        position, total_students_in_class, locked, auto_generated, generated_by,
        teacher_remarks, principal_remarks, teacher_signature, principal_signature,
        generated_at, finalized_at, published_at, created_at, updated_at`

const reportCardItemColumns = `id, report_card_id, subject_id,
        test_score, test_max_score, test_weighted_score,
        exam_score, exam_max_score, exam_weighted_score,
        obtained_marks, total_marks, percentage, grade, remarks,
        is_overridden, overridden_by, overridden_at,
        test_exam_id, test_exam_created_by, exam_exam_id, exam_exam_created_by,
        created_at, updated_at`

// FindByID returns one report card.
func (r *ReportCardRepository) FindByID(ctx context.Context, id string) (*models.ReportCard, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_cards WHERE id = $1`, reportCardColumns)
	var card models.ReportCard
	if err := r.db.GetContext(ctx, &card, query, id); err != nil {
		return nil, err
	}
	return &card, nil
}

// FindByStudentAndTerm returns the unique report card for a student and term.
func (r *ReportCardRepository) FindByStudentAndTerm(ctx context.Context, studentID, termID string) (*models.ReportCard, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_cards WHERE student_id = $1 AND term_id = $2`, reportCardColumns)
	var card models.ReportCard
	if err := r.db.GetContext(ctx, &card, query, studentID, termID); err != nil {
		return nil, err
	}
	return &card, nil
}

// Create inserts a new report card. The (student, term) uniqueness is
// enforced by the table constraint.
func (r *ReportCardRepository) Create(ctx context.Context, card *models.ReportCard) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now
	if card.GeneratedAt.IsZero() {
		card.GeneratedAt = now
	}
	if card.Status == "" {
		card.Status = models.StatusDraft
	}
	const query = `INSERT INTO report_cards (id, student_id, class_id, term_id, status, grading_scale,
        total_score, average_score, average_percentage, overall_grade,
        position, total_students_in_class, locked, auto_generated, generated_by,
        teacher_remarks, principal_remarks, teacher_signature, principal_signature,
        generated_at, finalized_at, published_at, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :term_id, :status, :grading_scale,
        :total_score, :average_score, :average_percentage, :overall_grade,
        :position, :total_students_in_class, :locked, :auto_generated, :generated_by,
        :teacher_remarks, :principal_remarks, :teacher_signature, :principal_signature,
        :generated_at, :finalized_at, :published_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, card); err != nil {
		return fmt.Errorf("insert report card: %w", err)
	}
	return nil
}

// ListByClassAndTerm returns every report card in a class and term.
func (r *ReportCardRepository) ListByClassAndTerm(ctx context.Context, classID, termID string) ([]models.ReportCard, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_cards WHERE class_id = $1 AND term_id = $2 ORDER BY created_at`, reportCardColumns)
	var cards []models.ReportCard
	if err := r.db.SelectContext(ctx, &cards, query, classID, termID); err != nil {
		return nil, fmt.Errorf("list report cards: %w", err)
	}
	return cards, nil
}

// ListForRanking returns the report cards considered by the class
// ranker: those belonging to currently-active students.
func (r *ReportCardRepository) ListForRanking(ctx context.Context, classID, termID string) ([]models.ReportCard, error) {
	const query = `SELECT rc.id, rc.student_id, rc.class_id, rc.term_id, rc.status, rc.grading_scale,
        rc.total_score, rc.average_score, rc.average_percentage, rc.overall_grade,
        rc.position, rc.total_students_in_class, rc.locked, rc.auto_generated, rc.generated_by,
        rc.teacher_remarks, rc.principal_remarks, rc.teacher_signature, rc.principal_signature,
        rc.generated_at, rc.finalized_at, rc.published_at, rc.created_at, rc.updated_at
        FROM report_cards rc
        JOIN students st ON st.id = rc.student_id
        WHERE rc.class_id = $1 AND rc.term_id = $2 AND st.active = TRUE
        ORDER BY st.full_name`
	var cards []models.ReportCard
	if err := r.db.SelectContext(ctx, &cards, query, classID, termID); err != nil {
		return nil, fmt.Errorf("list report cards for ranking: %w", err)
	}
	return cards, nil
}

// UpdatePositions writes rank positions for a class in one transaction.
func (r *ReportCardRepository) UpdatePositions(ctx context.Context, updates []models.PositionUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin position update: %w", err)
	}
	const query = `UPDATE report_cards SET position = $1, total_students_in_class = $2, updated_at = $3 WHERE id = $4`
	now := time.Now().UTC()
	for _, update := range updates {
		if _, err := tx.ExecContext(ctx, query, update.Position, update.TotalStudentsInClass, now, update.ReportCardID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("update position: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit position update: %w", err)
	}
	return nil
}

// UpdateTotals writes the aggregate fields recomputed from items.
func (r *ReportCardRepository) UpdateTotals(ctx context.Context, id string, totalScore, averageScore, averagePercentage float64, overallGrade string) error {
	const query = `UPDATE report_cards
        SET total_score = $1, average_score = $2, average_percentage = $3, overall_grade = $4, updated_at = $5
        WHERE id = $6`
	if _, err := r.db.ExecContext(ctx, query, totalScore, averageScore, averagePercentage, overallGrade, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update report card totals: %w", err)
	}
	return nil
}

// UpdateStatusFields persists a lifecycle transition.
func (r *ReportCardRepository) UpdateStatusFields(ctx context.Context, card *models.ReportCard) error {
	const query = `UPDATE report_cards
        SET status = $1, locked = $2, finalized_at = $3, published_at = $4, updated_at = $5
        WHERE id = $6`
	if _, err := r.db.ExecContext(ctx, query, card.Status, card.Locked, card.FinalizedAt, card.PublishedAt, time.Now().UTC(), card.ID); err != nil {
		return fmt.Errorf("update report card status: %w", err)
	}
	return nil
}

// GetWithItems returns the full read model, joining student, class,
// term and subject names.
func (r *ReportCardRepository) GetWithItems(ctx context.Context, id string) (*models.ReportCardWithItems, error) {
	const cardQuery = `SELECT rc.id, rc.student_id, rc.class_id, rc.term_id, rc.status, rc.grading_scale,
        rc.total_score, rc.average_score, rc.average_percentage, rc.overall_grade,
        rc.position, rc.total_students_in_class, rc.locked, rc.auto_generated, rc.generated_by,
        rc.teacher_remarks, rc.principal_remarks, rc.teacher_signature, rc.principal_signature,
        rc.generated_at, rc.finalized_at, rc.published_at, rc.created_at, rc.updated_at,
        st.full_name AS student_name, c.name AS class_name, t.name AS term_name
        FROM report_cards rc
        JOIN students st ON st.id = rc.student_id
        JOIN classes c ON c.id = rc.class_id
        JOIN academic_terms t ON t.id = rc.term_id
        WHERE rc.id = $1`
	var full models.ReportCardWithItems
	if err := r.db.GetContext(ctx, &full, cardQuery, id); err != nil {
		return nil, fmt.Errorf("get report card: %w", err)
	}
	items, err := r.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	full.Items = items
	return &full, nil
}

// ListItems returns a report card's items ordered by subject name.
func (r *ReportCardRepository) ListItems(ctx context.Context, reportCardID string) ([]models.ReportCardItem, error) {
	const query = `SELECT i.id, i.report_card_id, i.subject_id,
        i.test_score, i.test_max_score, i.test_weighted_score,
        i.exam_score, i.exam_max_score, i.exam_weighted_score,
        i.obtained_marks, i.total_marks, i.percentage, i.grade, i.remarks,
        i.is_overridden, i.overridden_by, i.overridden_at,
        i.test_exam_id, i.test_exam_created_by, i.exam_exam_id, i.exam_exam_created_by,
        i.created_at, i.updated_at,
        s.name AS subject_name
        FROM report_card_items i
        JOIN subjects s ON s.id = i.subject_id
        WHERE i.report_card_id = $1
        ORDER BY s.name`
	var items []models.ReportCardItem
	if err := r.db.SelectContext(ctx, &items, query, reportCardID); err != nil {
		return nil, fmt.Errorf("list report card items: %w", err)
	}
	return items, nil
}

// FindItem returns the item for a subject on a report card.
func (r *ReportCardRepository) FindItem(ctx context.Context, reportCardID, subjectID string) (*models.ReportCardItem, error) {
	query := fmt.Sprintf(`SELECT %s, '' AS subject_name FROM report_card_items WHERE report_card_id = $1 AND subject_id = $2`, reportCardItemColumns)
	var item models.ReportCardItem
	if err := r.db.GetContext(ctx, &item, query, reportCardID, subjectID); err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemByID returns one item.
func (r *ReportCardRepository) FindItemByID(ctx context.Context, itemID string) (*models.ReportCardItem, error) {
	query := fmt.Sprintf(`SELECT %s, '' AS subject_name FROM report_card_items WHERE id = $1`, reportCardItemColumns)
	var item models.ReportCardItem
	if err := r.db.GetContext(ctx, &item, query, itemID); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a new item. (report card, subject) uniqueness is
// enforced by the table constraint.
func (r *ReportCardRepository) CreateItem(ctx context.Context, item *models.ReportCardItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	const query = `INSERT INTO report_card_items (id, report_card_id, subject_id,
        test_score, test_max_score, test_weighted_score,
        exam_score, exam_max_score, exam_weighted_score,
        obtained_marks, total_marks, percentage, grade, remarks,
        is_overridden, overridden_by, overridden_at,
        test_exam_id, test_exam_created_by, exam_exam_id, exam_exam_created_by,
        created_at, updated_at)
        VALUES (:id, :report_card_id, :subject_id,
        :test_score, :test_max_score, :test_weighted_score,
        :exam_score, :exam_max_score, :exam_weighted_score,
        :obtained_marks, :total_marks, :percentage, :grade, :remarks,
        :is_overridden, :overridden_by, :overridden_at,
        :test_exam_id, :test_exam_created_by, :exam_exam_id, :exam_exam_created_by,
        :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("insert report card item: %w", err)
	}
	return nil
}

// UpdateItem rewrites one item's score and override fields. The update
// is scoped to the single row, so concurrent syncs of different items
// cannot interfere.
func (r *ReportCardRepository) UpdateItem(ctx context.Context, item *models.ReportCardItem) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE report_card_items SET
        test_score = :test_score, test_max_score = :test_max_score, test_weighted_score = :test_weighted_score,
        exam_score = :exam_score, exam_max_score = :exam_max_score, exam_weighted_score = :exam_weighted_score,
        obtained_marks = :obtained_marks, total_marks = :total_marks, percentage = :percentage,
        grade = :grade, remarks = :remarks,
        is_overridden = :is_overridden, overridden_by = :overridden_by, overridden_at = :overridden_at,
        test_exam_id = :test_exam_id, test_exam_created_by = :test_exam_created_by,
        exam_exam_id = :exam_exam_id, exam_exam_created_by = :exam_exam_created_by,
        updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("update report card item: %w", err)
	}
	return nil
}

// DeleteItems removes the items for the given subjects from a report card.
func (r *ReportCardRepository) DeleteItems(ctx context.Context, reportCardID string, subjectIDs []string) error {
	if len(subjectIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(subjectIDs))
	args := make([]interface{}, 0, len(subjectIDs)+1)
	args = append(args, reportCardID)
	for i, id := range subjectIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf(`DELETE FROM report_card_items WHERE report_card_id = $1 AND subject_id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete report card items: %w", err)
	}
	return nil
}
