package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/edubase/reportcard-api/internal/models"
)

// TermRepository manages academic term persistence.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository constructs repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// Current returns the term flagged as current.
func (r *TermRepository) Current(ctx context.Context) (*models.AcademicTerm, error) {
	const query = `SELECT id, name, session, is_current, start_date, end_date
        FROM academic_terms WHERE is_current = TRUE ORDER BY start_date DESC LIMIT 1`
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, query); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindByID returns one term.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.AcademicTerm, error) {
	const query = `SELECT id, name, session, is_current, start_date, end_date
        FROM academic_terms WHERE id = $1`
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}
