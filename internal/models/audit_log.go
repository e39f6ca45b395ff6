package models

import (
	"encoding/json"
	"time"
)

// AuditAction enumerates the moderation actions recorded in the audit log.
type AuditAction string

const (
	AuditPromoteAdmin  AuditAction = "promote_admin"
	AuditDemoteAdmin   AuditAction = "demote_admin"
	AuditKickUser      AuditAction = "kick_user"
	AuditBlockUser     AuditAction = "block_user"
	AuditUnblockUser   AuditAction = "unblock_user"
	AuditBanUser       AuditAction = "ban_user"
	AuditUnbanUser     AuditAction = "unban_user"
	AuditMuteUser      AuditAction = "mute_user"
	AuditUnmuteUser    AuditAction = "unmute_user"
	AuditDeleteMessage AuditAction = "delete_message"
	AuditFileUpload    AuditAction = "file_upload"
)

// AuditLog is an append-only record of a moderation or upload action.
// RoomID is nil for global actions (account ban/unban).
type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	RoomID       *uint           `gorm:"index" json:"room_id,omitempty"`
	ActorID      uint            `gorm:"not null;index" json:"actor_id"`
	Actor        *User           `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Action       AuditAction     `gorm:"type:varchar(32);not null;index" json:"action"`
	TargetUserID uint            `gorm:"not null;index" json:"target_user_id"`
	Reason       string          `gorm:"type:text" json:"reason,omitempty"`
	Metadata     json.RawMessage `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
