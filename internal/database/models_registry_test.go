package database

import (
	"testing"

	modelspkg "parley/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesMessageDeletion(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*modelspkg.MessageDeletion); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include MessageDeletion")
}

func TestPersistentModels_IncludesAuditLog(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*modelspkg.AuditLog); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include AuditLog")
}
