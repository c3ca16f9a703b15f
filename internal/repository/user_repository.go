package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edubase/reportcard-api/internal/models"
)

// UserRepository reads staff accounts for report card signatures.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns one user.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, full_name, role, signature, active, created_at FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// AdminsWithSignature returns active administrative users that have a
// stored signature, highest privilege first.
func (r *UserRepository) AdminsWithSignature(ctx context.Context) ([]models.User, error) {
	const query = `SELECT id, full_name, role, signature, active, created_at
        FROM users
        WHERE role IN ($1, $2, $3) AND active = TRUE AND signature IS NOT NULL
        ORDER BY CASE role WHEN $1 THEN 0 WHEN $2 THEN 1 ELSE 2 END, created_at`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.RoleSuperAdmin, models.RoleAdmin, models.RolePrincipal); err != nil {
		return nil, fmt.Errorf("list admins with signature: %w", err)
	}
	return users, nil
}
