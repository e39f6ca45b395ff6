// Package models contains data structures for the application's domain models.
package models

import "time"

// User represents an account in the chat service. Accounts are provisioned
// lazily on first authenticated visit; externally-authenticated users carry
// an empty Password.
type User struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ExternalID string `gorm:"size:128;not null;uniqueIndex" json:"external_id"`
	Email      string `gorm:"size:254;not null;uniqueIndex" json:"email"`
	Username   string `gorm:"size:32;not null;uniqueIndex" json:"username"`
	Name       string `gorm:"size:120" json:"name"`
	AvatarURL  string `gorm:"type:text" json:"avatar_url"`
	Password   string `gorm:"size:120" json:"-"`

	IsBanned   bool       `gorm:"not null;default:false;index" json:"is_banned"`
	BannedByID *uint      `json:"banned_by_id,omitempty"`
	BannedAt   *time.Time `json:"banned_at,omitempty"`
	BanReason  string     `gorm:"type:text" json:"ban_reason,omitempty"`

	// Connection speed preference, surfaced to the client on login.
	ConnectionSpeed *float64 `json:"connection_speed,omitempty"`
	ShowSpeedDialog bool     `gorm:"not null;default:true" json:"show_speed_dialog"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}
