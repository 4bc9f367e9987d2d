package models

import "strings"

type Role string

const (
	RoleNone    Role = ""
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole maps a backend role string onto a known Role. Anything it does not
// recognise is treated as "no role yet".
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleTeacher:
		return RoleTeacher
	case RoleStudent:
		return RoleStudent
	default:
		return RoleNone
	}
}

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
	Role    Role   `json:"role"`
}

func (u *User) HasRole() bool {
	return u != nil && u.Role.Valid()
}

type GoogleLoginRequest struct {
	Credential string `json:"credential" validate:"required"`
}

type SetRoleRequest struct {
	Role Role `json:"role" validate:"oneof=teacher student"`
}

// AuthResponse is the body returned by the login, profile and set-role endpoints.
// Any of the fields may be missing.
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}
