// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
)

// Roles a user may have.
const (
	RoleAdmin     = "admin"
	RoleEvaluator = "evaluator"
)

type User struct {
	ID        int64
	CompanyID int64
	Name      string
	Email     string
	Role      string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}

// API returns the public part of u.
func (u *User) API() api.User {
	return api.User{ID: u.ID, CompanyID: u.CompanyID, Name: u.Name, Email: u.Email, Role: u.Role}
}
