package models

import (
	"strings"
	"time"
)

// Role is the authorization tier carried in every token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a row in the users table (or users collection).
type User struct {
	ID           string    `json:"id"         bson:"_id"`
	Name         string    `json:"name"       bson:"name"`
	Email        string    `json:"email"      bson:"email"`
	PasswordHash string    `json:"-"          bson:"password_hash"` // never serialize
	Role         Role      `json:"role"       bson:"role"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// OwnerSummary is the minimal owner view attached to admin listings.
type OwnerSummary struct {
	ID    string `json:"id"    bson:"_id"`
	Name  string `json:"name"  bson:"name"`
	Email string `json:"email" bson:"email"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,min=2,max=100"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}
