package models

import "time"

// MessageDeleteScope distinguishes the two soft-delete tiers.
type MessageDeleteScope string

const (
	// DeleteForMe hides a message from a single viewer via a per-user
	// suppression row; the message itself is untouched.
	DeleteForMe MessageDeleteScope = "me"
	// DeleteForEveryone sets the shared deletion flag on the message row.
	DeleteForEveryone MessageDeleteScope = "everyone"
)

// MaxMessageContentLen caps message bodies.
const MaxMessageContentLen = 10000

// Message represents a chat message in a room. The reply fields are a
// snapshot captured at send time; edits or deletes of the original do not
// propagate.
type Message struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	RoomID  uint   `gorm:"not null;index:idx_messages_room_created" json:"room_id"`
	Room    *Room  `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	User    *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content string `gorm:"type:text;not null" json:"content"`

	ReplyToID       *uint  `json:"reply_to_id,omitempty"`
	ReplyToContent  string `gorm:"type:text" json:"reply_to_content,omitempty"`
	ReplyToUsername string `gorm:"size:32" json:"reply_to_username,omitempty"`

	FileID      *string `gorm:"size:36;index" json:"file_id,omitempty"`
	FileName    string  `gorm:"size:255" json:"file_name,omitempty"`
	FileType    string  `gorm:"size:128" json:"file_type,omitempty"`
	FileSize    int64   `json:"file_size,omitempty"`
	ThumbnailID *string `gorm:"size:36" json:"thumbnail_id,omitempty"`
	UseMarkdown bool    `gorm:"not null;default:false" json:"use_markdown"`

	IsDeleted   bool                `gorm:"not null;default:false" json:"is_deleted"`
	DeletedByID *uint               `json:"deleted_by_id,omitempty"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty"`
	DeletedFor  *MessageDeleteScope `gorm:"type:varchar(10)" json:"deleted_for,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_messages_room_created" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Message) TableName() string {
	return "messages"
}

// MessageDeletion is the per-viewer "delete for me" overlay row.
type MessageDeletion struct {
	MessageID uint      `gorm:"primaryKey;autoIncrement:false" json:"message_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	DeletedAt time.Time `gorm:"autoCreateTime" json:"deleted_at"`
}

// TableName specifies the table name for GORM.
func (MessageDeletion) TableName() string {
	return "message_deletions"
}

// MessageView is a message as seen by one viewer: author display fields
// attached and the two deletion tiers folded into a single flag.
type MessageView struct {
	Message
	Username       string              `json:"username"`
	UserAvatarURL  string              `json:"user_avatar_url"`
	ViewDeleted    bool                `json:"view_deleted"`
	ViewDeletedFor *MessageDeleteScope `json:"view_deleted_for,omitempty"`
}
