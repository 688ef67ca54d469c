package model

import (
	"time"

	"projectportal/pkg/rbac"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         rbac.Role `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   rbac.Role
}
