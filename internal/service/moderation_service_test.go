package service

import (
	"context"
	"testing"
	"time"

	"parley/internal/models"
	"parley/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type moderationFixture struct {
	db        *gorm.DB
	roomRepo  repository.RoomRepository
	auditRepo repository.AuditRepository
	svc       *ModerationService
	rooms     *RoomService

	room     *models.Room
	owner    *models.User
	admin    *models.User
	member   *models.User
	platform *models.User
}

func newModerationFixture(t *testing.T) *moderationFixture {
	t.Helper()
	db := setupServiceDB(t)
	roomRepo := repository.NewRoomRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	owner := seedUser(t, db, "owner")
	admin := seedUser(t, db, "roomadmin")
	member := seedUser(t, db, "member")
	platform := seedUser(t, db, "platform")

	isAdmin := adminOnly(platform.ID)
	rooms := NewRoomService(roomRepo, isAdmin, 0, 0)
	svc := NewModerationService(roomRepo, userRepo, auditRepo, isAdmin)
	ctx := context.Background()

	room, err := rooms.CreateRoom(ctx, CreateRoomInput{OwnerID: owner.ID, Name: "lobby"})
	require.NoError(t, err)
	_, err = rooms.JoinRoom(ctx, room.ID, admin.ID)
	require.NoError(t, err)
	_, err = rooms.JoinRoom(ctx, room.ID, member.ID)
	require.NoError(t, err)
	_, err = svc.PromoteToAdmin(ctx, room.ID, owner.ID, admin.ID)
	require.NoError(t, err)

	return &moderationFixture{
		db:        db,
		roomRepo:  roomRepo,
		auditRepo: auditRepo,
		svc:       svc,
		rooms:     rooms,
		room:      room,
		owner:     owner,
		admin:     admin,
		member:    member,
		platform:  platform,
	}
}

func (f *moderationFixture) auditActions(t *testing.T) []models.AuditAction {
	t.Helper()
	logs, err := f.auditRepo.List(context.Background(), repository.AuditFilter{})
	require.NoError(t, err)
	actions := make([]models.AuditAction, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	return actions
}

func TestModerationService_PromoteToAdmin(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	membership, err := f.svc.PromoteToAdmin(ctx, f.room.ID, f.owner.ID, f.member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomRoleAdmin, membership.Role)

	// Promoting an admin again is rejected.
	_, err = f.svc.PromoteToAdmin(ctx, f.room.ID, f.owner.ID, f.member.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeConflict, err.(*models.AppError).Code)

	_, err = f.svc.PromoteToAdmin(ctx, f.room.ID, f.owner.ID, f.owner.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, err.(*models.AppError).Code)

	_, err = f.svc.PromoteToAdmin(ctx, f.room.ID, f.member.ID, f.member.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeForbidden, err.(*models.AppError).Code)

	assert.Contains(t, f.auditActions(t), models.AuditPromoteAdmin)
}

func TestModerationService_KickUser(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.KickUser(ctx, f.room.ID, f.admin.ID, f.member.ID, "spamming"))

	membership, err := f.roomRepo.GetMembership(ctx, f.room.ID, f.member.ID)
	require.NoError(t, err)
	assert.Nil(t, membership)

	kick, err := f.roomRepo.LatestKick(ctx, f.room.ID, f.member.ID)
	require.NoError(t, err)
	require.NotNil(t, kick)
	assert.Equal(t, "spamming", kick.Reason)

	err = f.svc.KickUser(ctx, f.room.ID, f.owner.ID, f.owner.ID, "")
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, err.(*models.AppError).Code)

	err = f.svc.KickUser(ctx, f.room.ID, f.admin.ID, f.owner.ID, "")
	require.Error(t, err)
	assert.Equal(t, models.CodeForbidden, err.(*models.AppError).Code)

	// A platform admin may remove the owner.
	require.NoError(t, f.svc.KickUser(ctx, f.room.ID, f.platform.ID, f.owner.ID, "room closed"))
}

func TestModerationService_KickUser_PlatformAdminUntouchable(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	_, err := f.rooms.JoinRoom(ctx, f.room.ID, f.platform.ID)
	require.NoError(t, err)

	err = f.svc.KickUser(ctx, f.room.ID, f.owner.ID, f.platform.ID, "")
	require.Error(t, err)
	assert.Equal(t, models.CodeForbidden, err.(*models.AppError).Code)
}

func TestModerationService_BlockUnblock(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	// Room admins cannot block; only the owner can.
	err := f.svc.BlockUser(ctx, f.room.ID, f.admin.ID, f.member.ID, "")
	require.Error(t, err)
	assert.Equal(t, models.CodeForbidden, err.(*models.AppError).Code)

	require.NoError(t, f.svc.BlockUser(ctx, f.room.ID, f.owner.ID, f.member.ID, "abuse"))

	membership, err := f.roomRepo.GetMembership(ctx, f.room.ID, f.member.ID)
	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.True(t, membership.IsBlocked)
	assert.Equal(t, "abuse", membership.BlockReason)

	err = f.svc.BlockUser(ctx, f.room.ID, f.owner.ID, f.platform.ID, "")
	require.Error(t, err)
	assert.Equal(t, models.CodeForbidden, err.(*models.AppError).Code)

	require.NoError(t, f.svc.UnblockUser(ctx, f.room.ID, f.owner.ID, f.member.ID))
	membership, err = f.roomRepo.GetMembership(ctx, f.room.ID, f.member.ID)
	require.NoError(t, err)
	assert.False(t, membership.IsBlocked)

	err = f.svc.UnblockUser(ctx, f.room.ID, f.owner.ID, f.member.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, err.(*models.AppError).Code)
}

func TestModerationService_BlockUser_RequiresMembership(t *testing.T) {
	f := newModerationFixture(t)
	stranger := seedUser(t, f.db, "stranger")
	ctx := context.Background()

	err := f.svc.BlockUser(ctx, f.room.ID, f.owner.ID, stranger.ID, "")
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, err.(*models.AppError).Code)
}

func TestModerationService_BlockOwner(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	// A room admin lacks block rights entirely; the owner target is moot.
	err := f.svc.BlockUser(ctx, f.room.ID, f.admin.ID, f.owner.ID, "")
	require.Error(t, err)
	assert.Equal(t, models.CodeForbidden, err.(*models.AppError).Code)

	// A platform admin may block the owner.
	require.NoError(t, f.svc.BlockUser(ctx, f.room.ID, f.platform.ID, f.owner.ID, "room shut down"))

	membership, err := f.roomRepo.GetMembership(ctx, f.room.ID, f.owner.ID)
	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.True(t, membership.IsBlocked)
}

func TestModerationService_MuteUnmute(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour)
	mute, err := f.svc.MuteUser(ctx, f.room.ID, f.admin.ID, f.member.ID, "cool off", &expires)
	require.NoError(t, err)
	assert.True(t, mute.Active(time.Now()))

	// A later mute replaces the earlier one.
	mute, err = f.svc.MuteUser(ctx, f.room.ID, f.owner.ID, f.member.ID, "indefinite", nil)
	require.NoError(t, err)
	assert.Nil(t, mute.ExpiresAt)

	mutes, err := f.svc.ListMutes(ctx, f.room.ID, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, mutes, 1)
	assert.Equal(t, "indefinite", mutes[0].Reason)

	past := time.Now().Add(-time.Minute)
	_, err = f.svc.MuteUser(ctx, f.room.ID, f.owner.ID, f.member.ID, "", &past)
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, err.(*models.AppError).Code)

	_, err = f.svc.MuteUser(ctx, f.room.ID, f.admin.ID, f.owner.ID, "", nil)
	require.Error(t, err)
	assert.Equal(t, models.CodeForbidden, err.(*models.AppError).Code)

	require.NoError(t, f.svc.UnmuteUser(ctx, f.room.ID, f.owner.ID, f.member.ID))
	err = f.svc.UnmuteUser(ctx, f.room.ID, f.owner.ID, f.member.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, err.(*models.AppError).Code)

	_, err = f.svc.ListMutes(ctx, f.room.ID, f.member.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeForbidden, err.(*models.AppError).Code)
}

func TestModerationService_BanUnban(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	err := f.svc.BanUser(ctx, f.owner.ID, f.member.ID, "")
	require.Error(t, err)
	assert.Equal(t, models.CodeForbidden, err.(*models.AppError).Code)

	require.NoError(t, f.svc.BanUser(ctx, f.platform.ID, f.member.ID, "toxic"))

	var banned models.User
	require.NoError(t, f.db.First(&banned, f.member.ID).Error)
	assert.True(t, banned.IsBanned)
	assert.Equal(t, "toxic", banned.BanReason)

	err = f.svc.BanUser(ctx, f.platform.ID, f.member.ID, "again")
	require.Error(t, err)
	assert.Equal(t, models.CodeConflict, err.(*models.AppError).Code)

	err = f.svc.BanUser(ctx, f.platform.ID, f.platform.ID, "")
	require.Error(t, err)
	assert.Equal(t, models.CodeForbidden, err.(*models.AppError).Code)

	require.NoError(t, f.svc.UnbanUser(ctx, f.platform.ID, f.member.ID))
	require.NoError(t, f.db.First(&banned, f.member.ID).Error)
	assert.False(t, banned.IsBanned)

	err = f.svc.UnbanUser(ctx, f.platform.ID, f.member.ID)
	require.Error(t, err)
	assert.Equal(t, models.CodeConflict, err.(*models.AppError).Code)

	actions := f.auditActions(t)
	assert.Contains(t, actions, models.AuditBanUser)
	assert.Contains(t, actions, models.AuditUnbanUser)
}
