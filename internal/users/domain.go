package users

import "time"

// User is an account holding exactly one role.
type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	EnforcerNo   *string   `json:"enforcer_no,omitempty"`
	EmployeeID   *string   `json:"employee_id,omitempty"`
	RoleID       int64     `json:"role_id"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
