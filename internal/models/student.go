package models

import "time"

// Student represents an enrolled student.
type Student struct {
	ID         string    `db:"id" json:"id"`
	FullName   string    `db:"full_name" json:"full_name"`
	ClassID    string    `db:"class_id" json:"class_id"`
	Department *string   `db:"department" json:"department,omitempty"`
	GuardianID *string   `db:"guardian_id" json:"guardian_id,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
