package models

import "time"

// RoomMute suppresses a member's ability to send messages in one room.
// A nil ExpiresAt means the mute is indefinite.
type RoomMute struct {
	RoomID    uint       `gorm:"primaryKey;autoIncrement:false" json:"room_id"`
	UserID    uint       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	MutedByID uint       `gorm:"not null;index" json:"muted_by_id"`
	Reason    string     `gorm:"type:text" json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User    *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MutedBy *User `gorm:"foreignKey:MutedByID" json:"muted_by,omitempty"`
}

// TableName specifies the table name for GORM.
func (RoomMute) TableName() string {
	return "room_mutes"
}

// Active reports whether the mute is in effect at the given instant.
func (m *RoomMute) Active(now time.Time) bool {
	return m.ExpiresAt == nil || m.ExpiresAt.After(now)
}
