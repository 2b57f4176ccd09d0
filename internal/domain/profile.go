package domain

import "time"

// Role is the kind of account a profile belongs to.
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// Profile represents a user account in the system.
type Profile struct {
	ID         string
	FullName   string
	Phone      string
	Role       Role
	IsVerified bool
	CreatedAt  time.Time
}
