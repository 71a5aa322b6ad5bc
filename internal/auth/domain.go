package auth

import (
	"strings"
	"time"

	"github.com/mtvts/mtvts/internal/users"
)

// LoginRequest accepts either an email address or a username in Login.
type LoginRequest struct {
	Login    string `json:"login" validate:"required,max=255"`
	Email    string `json:"email" validate:"omitempty,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

func (r *LoginRequest) normalize() {
	r.Login = strings.TrimSpace(r.Login)
	if r.Login == "" {
		r.Login = strings.TrimSpace(r.Email)
	}
}

// Profile is the public view of the signed-in user.
type Profile struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Session is returned on successful login.
type Session struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
	Roles     []string  `json:"roles"`
}

func profileOf(u *users.User) Profile {
	return Profile{ID: u.ID, FullName: u.FullName, Username: u.Username, Email: u.Email}
}
