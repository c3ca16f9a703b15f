package models

import "time"

// AcademicTerm represents a term within an academic session.
type AcademicTerm struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Session   string    `db:"session" json:"session"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
}
