package models

import (
	"slices"
	"strings"
	"time"
)

// Roles carried in tokens.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User is an employee who can hold devices. Admins manage them.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    *string    `json:"first_name,omitempty"`
	LastName     *string    `json:"last_name,omitempty"`
	Roles        []string   `json:"roles"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// DisplayName joins first and last name, falling back to the email.
func (u *User) DisplayName() string {
	var parts []string
	for _, p := range []*string{u.FirstName, u.LastName} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if len(parts) == 0 {
		return u.Email
	}
	return strings.Join(parts, " ")
}

// Redacted returns a copy without the password hash.
func (u *User) Redacted() User {
	c := *u
	c.PasswordHash = ""
	return c
}
