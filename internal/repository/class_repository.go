package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/edubase/reportcard-api/internal/models"
)

// ClassRepository manages class persistence.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns one class.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, level, teacher_id, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}
