package users

import (
	"strings"

	"github.com/mtvts/mtvts/internal/shared"
)

// ListRequest filters the admin user listing.
type ListRequest struct {
	Query   string
	Role    string
	Page    int
	PerPage int
}

func (r ListRequest) normalized() ListRequest {
	r.Query = strings.TrimSpace(r.Query)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	if r.Role == "all" {
		r.Role = ""
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PerPage < 1 {
		r.PerPage = 20
	}
	if r.PerPage > 200 {
		r.PerPage = 200
	}
	return r
}

// ListResponse is a page of users.
type ListResponse struct {
	Data []User `json:"data"`
	shared.Pagination
}

// CreateRequest registers a new account.
type CreateRequest struct {
	FullName   string  `json:"full_name" validate:"required,max=255"`
	Username   string  `json:"username" validate:"required,max=255"`
	Email      string  `json:"email" validate:"required,email,max=255"`
	Password   string  `json:"password" validate:"required,min=8,max=72"`
	Role       string  `json:"role" validate:"required,oneof=admin enforcer cashier"`
	EnforcerNo *string `json:"enforcer_no" validate:"omitempty,max=50"`
	EmployeeID *string `json:"employee_id" validate:"omitempty,max=50"`
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (r *CreateRequest) normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	r.EnforcerNo = optional(r.EnforcerNo)
	r.EmployeeID = optional(r.EmployeeID)
}

// NewUser is a validated account ready to insert.
type NewUser struct {
	FullName     string
	Username     string
	Email        string
	Role         string
	EnforcerNo   *string
	EmployeeID   *string
	PasswordHash string
}

// UpdateRequest patches a user; nil fields are left untouched.
type UpdateRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=255"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin enforcer cashier"`
	Active   *bool   `json:"active"`
}

func (r *UpdateRequest) normalize() {
	if r.FullName != nil {
		v := strings.TrimSpace(*r.FullName)
		r.FullName = &v
	}
	if r.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*r.Email))
		r.Email = &v
	}
	if r.Role != nil {
		v := strings.ToLower(strings.TrimSpace(*r.Role))
		r.Role = &v
	}
}

// Empty reports whether the patch changes nothing.
func (r UpdateRequest) Empty() bool {
	return r.FullName == nil && r.Email == nil && r.Role == nil && r.Active == nil
}

// ResetPasswordRequest sets a new password for a user.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}
