package repository

import (
	"context"
	"encoding/json"
	"testing"

	"parley/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	actor := createTestUser(t, db, "actor")
	target := createTestUser(t, db, "target")

	room := &models.Room{Name: "general", OwnerID: actor.ID, IsActive: true}
	require.NoError(t, db.Create(room).Error)

	meta, _ := json.Marshal(map[string]any{"file_name": "cat.png", "file_size": 1234})
	entries := []*models.AuditLog{
		{RoomID: &room.ID, ActorID: actor.ID, Action: models.AuditKickUser, TargetUserID: target.ID, Reason: "spam"},
		{ActorID: actor.ID, Action: models.AuditBanUser, TargetUserID: target.ID, Reason: "abuse"},
		{RoomID: &room.ID, ActorID: actor.ID, Action: models.AuditFileUpload, TargetUserID: actor.ID, Metadata: meta},
	}
	for _, e := range entries {
		require.NoError(t, repo.Create(ctx, e))
	}

	t.Run("List all", func(t *testing.T) {
		got, err := repo.List(ctx, AuditFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("Filter by action", func(t *testing.T) {
		got, err := repo.List(ctx, AuditFilter{Action: models.AuditBanUser})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "abuse", got[0].Reason)
		assert.Nil(t, got[0].RoomID)
	})

	t.Run("Filter by room", func(t *testing.T) {
		got, err := repo.List(ctx, AuditFilter{RoomID: &room.ID})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("Metadata round trip", func(t *testing.T) {
		got, err := repo.List(ctx, AuditFilter{Action: models.AuditFileUpload})
		require.NoError(t, err)
		require.Len(t, got, 1)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(got[0].Metadata, &decoded))
		assert.Equal(t, "cat.png", decoded["file_name"])
	})
}
