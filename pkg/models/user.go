package models

import (
	"strings"
	"time"
)

// Role is the application role stored on a profile.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	RoleUser  Role = "user"
)

// NormalizeRole treats an empty role as unset and defaults it to user.
func NormalizeRole(r string) Role {
	r = strings.TrimSpace(r)
	if r == "" {
		return RoleUser
	}
	return Role(r)
}

// DefaultName is the name shown when a profile has none: the local part
// of the email.
func DefaultName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// Profile is a row of the users relation in the profile store.
type Profile struct {
	ID           string    `json:"id" db:"id"`
	IdentityID   string    `json:"identity_id" db:"identity_id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	Surname      string    `json:"surname" db:"surname"`
	Role         Role      `json:"role" db:"role"`
	PhoneNumber  *string   `json:"phone_number" db:"phone_number"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	DepartmentID *int64    `json:"department_id" db:"department_id"`
	Provider     *string   `json:"provider" db:"provider"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// SignupRequest is the request body for POST /auth/signup.
type SignupRequest struct {
	Email        string  `json:"email" binding:"required,email,realemail" example:"jane@campus.edu"`
	Password     string  `json:"password" binding:"required,strongpassword" example:"Password123"`
	Name         string  `json:"name" binding:"required" example:"Jane"`
	Surname      string  `json:"surname" binding:"required" example:"Doe"`
	Role         string  `json:"role" binding:"omitempty,oneof=admin staff user" example:"user"`
	PhoneNumber  *string `json:"phone_number" binding:"omitempty,phone" example:"+905551112233"`
	DepartmentID *int64  `json:"department_id" binding:"omitempty,gt=0" example:"3"`
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"jane@campus.edu"`
	Password string `json:"password" binding:"required" example:"Password123"`
	Provider string `json:"provider,omitempty" example:"password"`
}
