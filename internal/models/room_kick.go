package models

import "time"

// RoomKick records a kick so that rejoining can be held off for a cooldown
// window. The newest record per (room, user) pair is authoritative.
type RoomKick struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RoomID     uint      `gorm:"not null;index:idx_kicks_room_user" json:"room_id"`
	UserID     uint      `gorm:"not null;index:idx_kicks_room_user" json:"user_id"`
	KickedByID uint      `gorm:"not null" json:"kicked_by_id"`
	Reason     string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (RoomKick) TableName() string {
	return "room_kicks"
}
