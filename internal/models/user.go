package models

import "time"

// User roles in privilege order (highest first).
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RolePrincipal  = "principal"
	RoleTeacher    = "teacher"
)

// User is a staff account. Only the fields the report-card engine needs
// are modelled here; authentication lives with the excluded auth layer.
type User struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      string    `db:"role" json:"role"`
	Signature *string   `db:"signature" json:"signature,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
