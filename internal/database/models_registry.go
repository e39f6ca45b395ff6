package database

import "parley/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Room{},
		&models.RoomMembership{},
		&models.Message{},
		&models.MessageDeletion{},
		&models.RoomMute{},
		&models.RoomKick{},
		&models.AuditLog{},
		&models.File{},
	}
}
