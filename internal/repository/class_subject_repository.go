package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edubase/reportcard-api/internal/models"
)

// ClassSubjectRepository manages class-subject mappings, the
// authoritative definition of which subjects a class offers.
type ClassSubjectRepository struct {
	db *sqlx.DB
}

// NewClassSubjectRepository constructs repository.
func NewClassSubjectRepository(db *sqlx.DB) *ClassSubjectRepository {
	return &ClassSubjectRepository{db: db}
}

// ListByClass returns the mappings for a class, including department
// scoped ones, restricted to active subjects.
func (r *ClassSubjectRepository) ListByClass(ctx context.Context, classID string) ([]models.ClassSubjectMapping, error) {
	const query = `
SELECT m.id, m.class_id, m.subject_id, m.department, m.is_compulsory, m.created_at,
       s.name AS subject_name, s.category AS subject_category
FROM class_subject_mappings m
JOIN subjects s ON s.id = m.subject_id
WHERE m.class_id = $1 AND s.active = TRUE
ORDER BY s.name ASC`
	var mappings []models.ClassSubjectMapping
	if err := r.db.SelectContext(ctx, &mappings, query, classID); err != nil {
		return nil, fmt.Errorf("list class subject mappings: %w", err)
	}
	return mappings, nil
}

// Upsert inserts or refreshes one mapping. Uniqueness is per
// (class, subject, department-or-null).
func (r *ClassSubjectRepository) Upsert(ctx context.Context, mapping *models.ClassSubjectMapping) error {
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO class_subject_mappings (id, class_id, subject_id, department, is_compulsory, created_at)
        VALUES (:id, :class_id, :subject_id, :department, :is_compulsory, :created_at)
        ON CONFLICT (class_id, subject_id, COALESCE(department, ''))
        DO UPDATE SET is_compulsory = EXCLUDED.is_compulsory`
	if _, err := r.db.NamedExecContext(ctx, query, mapping); err != nil {
		return fmt.Errorf("upsert class subject mapping: %w", err)
	}
	return nil
}
