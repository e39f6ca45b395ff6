package models

import "time"

// Room limits enforced at creation time. Platform admins are exempt from the
// length limits but not the creation cooldown.
const (
	RoomNameMaxLen        = 80
	RoomDescriptionMaxLen = 500
)

// Room represents a named chat channel with a single owner.
type Room struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:80;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	OwnerID     uint   `gorm:"not null;index" json:"owner_id"`
	Owner       *User  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	IsActive    bool   `gorm:"not null;default:true;index" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Room) TableName() string {
	return "rooms"
}

// RoomSummary is a room enriched with owner and membership information for
// listing endpoints.
type RoomSummary struct {
	Room
	OwnerUsername string `json:"owner_username"`
	MemberCount   int64  `json:"member_count"`
}
