package models

import "time"

// File is the metadata row for a disk-stored blob. The ID doubles as the
// storage key.
type File struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	ContentType string    `gorm:"size:128;not null" json:"content_type"`
	Size        int64     `gorm:"not null" json:"size"`
	ThumbnailID *string   `gorm:"size:36" json:"thumbnail_id,omitempty"`
	UploaderID  uint      `gorm:"not null;index" json:"uploader_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (File) TableName() string {
	return "files"
}
