package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// User roles. Managers and admins are the privileged roles: they create
// tasks, review completed work, resolve edit requests, and edit directly.
const (
	RoleMember  = "member"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

type User struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Username string    `json:"username" gorm:"unique;not null"`
	Email    string    `json:"email" gorm:"unique;not null"`
	Password string    `json:"-" gorm:"not null"`
	Role     string    `json:"role" gorm:"not null;default:'member'"`

	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Department  string     `json:"department"`
	Position    string     `json:"position"`
	AvatarPath  string     `json:"avatar_path,omitempty"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// IsPrivileged reports whether the user may create tasks, review completed
// work, resolve edit requests, and use the direct-edit path.
func (u *User) IsPrivileged() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PrivilegedRole reports whether a role string names a privileged role,
// for callers that only have the JWT claim.
func PrivilegedRole(role string) bool {
	return role == RoleManager || role == RoleAdmin
}

type Token struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	RefreshToken uuid.UUID `json:"refresh_token" gorm:"type:uuid;not null;uniqueIndex"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
