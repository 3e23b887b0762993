package models

import "github.com/golang-jwt/jwt/v5"

// UserRole mirrors the roles issued by the school backend.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleSchool     UserRole = "SCHOOL"
	RoleStaff      UserRole = "STAFF"
)

// CurrentUser is the logged-in console user. It is resolved once per console
// session and handed to controllers read-only.
type CurrentUser struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	SchoolID string   `json:"school_id,omitempty"`
}

// ScopedToSchool reports whether listings should default their school filter.
func (u *CurrentUser) ScopedToSchool() bool {
	return u != nil && u.SchoolID != "" && u.Role != RoleSuperAdmin
}

// JWTClaims represents the access token payload issued by the school backend.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
