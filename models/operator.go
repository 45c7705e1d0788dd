package models

import "time"

type OperatorRole string

const (
	RoleAdmin  OperatorRole = "admin"
	RoleViewer OperatorRole = "viewer"
)

// Operator is a staff account for the race-day control surfaces.
type Operator struct {
	ID           int          `json:"id" db:"id"`
	Username     string       `json:"username" db:"username"`
	PasswordHash string       `json:"-" db:"password_hash"`
	Role         OperatorRole `json:"role" db:"role"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}
