package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is a registered citizen or administrator.
// Complaints reference users by email.
type User struct {
	ID        string     `gorm:"primaryKey" json:"id"` // UUID
	Email     string     `gorm:"uniqueIndex;not null" json:"email"`
	Name      string     `json:"name"`
	Role      string     `gorm:"type:varchar(8);not null;default:USER" json:"role"`
	Active    bool       `gorm:"not null;default:true" json:"active"`
	LastLogin *time.Time `gorm:"index" json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// BeforeCreate assigns a UUID when the ID is not set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Privileged reports whether the user may act on complaints filed by others.
func (u *User) Privileged() bool {
	return u.Role == RoleAdmin
}

// Snapshot returns the map form used by dashboard envelopes. The email is
// included; the dashboard is admin-only.
func (u *User) Snapshot() map[string]any {
	return map[string]any{
		"id":        u.ID,
		"email":     u.Email,
		"name":      u.Name,
		"role":      u.Role,
		"createdAt": u.CreatedAt.UnixMilli(),
	}
}
