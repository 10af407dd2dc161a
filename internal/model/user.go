package model

import (
	"fmt"
	"time"
)

// Role is the closed set of account roles.
type Role string

// Roles.
const (
	RoleAdmin   Role = "admin"
	RolePartner Role = "partner"
)

// Valid reports whether r is a known role. Unknown roles fail closed.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RolePartner
}

// User is a login account. Partner accounts are linked to exactly one Partner.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	PartnerID    *int64    `db:"partner_id" json:"partner_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks password strength rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
