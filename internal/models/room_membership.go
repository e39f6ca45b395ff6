package models

import "time"

// RoomRole is the effective role of a user in a room. Stored memberships only
// ever carry member, admin or owner; visitor and blocked are computed by the
// role resolver so that "no row" and "blocked row" are explicit values rather
// than re-derived conventions.
type RoomRole string

const (
	// RoomRoleOwner is held by exactly one membership per room, assigned at
	// room creation.
	RoomRoleOwner RoomRole = "owner"
	// RoomRoleAdmin is a promoted member with moderation rights.
	RoomRoleAdmin RoomRole = "admin"
	// RoomRoleMember is the default role granted on join.
	RoomRoleMember RoomRole = "member"
	// RoomRoleVisitor is the effective role of a user with no membership row.
	RoomRoleVisitor RoomRole = "visitor"
	// RoomRoleBlocked is the effective role of a blocked membership,
	// regardless of the stored role.
	RoomRoleBlocked RoomRole = "blocked"
)

// Precedence returns the sort order used for member listings: owner first,
// unknown roles last.
func (r RoomRole) Precedence() int {
	switch r {
	case RoomRoleOwner:
		return 0
	case RoomRoleAdmin:
		return 1
	case RoomRoleMember:
		return 2
	default:
		return 3
	}
}

// RoomMembership maps users to rooms and tracks role and block state. Block
// state is orthogonal to the stored role: a blocked admin still carries
// role=admin but resolves to RoomRoleBlocked.
type RoomMembership struct {
	RoomID   uint      `gorm:"primaryKey;autoIncrement:false" json:"room_id"`
	Room     *Room     `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role     RoomRole  `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	IsBlocked   bool       `gorm:"not null;default:false" json:"is_blocked"`
	BlockedByID *uint      `json:"blocked_by_id,omitempty"`
	BlockedAt   *time.Time `json:"blocked_at,omitempty"`
	BlockReason string     `gorm:"type:text" json:"block_reason,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (RoomMembership) TableName() string {
	return "room_memberships"
}

// RoomMember is a membership enriched with user profile fields for listings.
type RoomMember struct {
	RoomMembership
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}
