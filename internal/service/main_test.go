package service

import (
	"context"
	"testing"

	"parley/internal/database"
	"parley/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		ExternalID: "test|" + username,
		Email:      username + "@example.com",
		Username:   username,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func neverAdmin(context.Context, uint) (bool, error) {
	return false, nil
}

// adminOnly marks the given user IDs as platform admins.
func adminOnly(ids ...uint) func(context.Context, uint) (bool, error) {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(_ context.Context, userID uint) (bool, error) {
		_, ok := set[userID]
		return ok, nil
	}
}
