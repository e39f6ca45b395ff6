package service

import (
	"context"
	"encoding/json"
	"time"

	"parley/internal/models"
	"parley/internal/observability"
	"parley/internal/repository"
)

// ModerationService implements in-room moderation (promote, kick, block,
// mute) and global account bans, writing an audit record for every action.
type ModerationService struct {
	roomRepo  repository.RoomRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository

	isPlatformAdmin func(ctx context.Context, userID uint) (bool, error)
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	roomRepo repository.RoomRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	isPlatformAdmin func(ctx context.Context, userID uint) (bool, error),
) *ModerationService {
	return &ModerationService{
		roomRepo:        roomRepo,
		userRepo:        userRepo,
		auditRepo:       auditRepo,
		isPlatformAdmin: isPlatformAdmin,
	}
}

// moderatorRole returns the actor's effective role if it grants moderation
// rights in the room. Platform admins act as owner everywhere.
func (s *ModerationService) moderatorRole(ctx context.Context, roomID, actorID uint) (models.RoomRole, error) {
	admin, err := s.isPlatformAdmin(ctx, actorID)
	if err != nil {
		return "", err
	}
	if admin {
		return models.RoomRoleOwner, nil
	}

	membership, err := s.roomRepo.GetMembership(ctx, roomID, actorID)
	if err != nil {
		return "", err
	}
	if membership == nil || membership.IsBlocked {
		return "", models.NewForbiddenError("not a moderator of this room")
	}
	switch membership.Role {
	case models.RoomRoleOwner, models.RoomRoleAdmin:
		return membership.Role, nil
	default:
		return "", models.NewForbiddenError("not a moderator of this room")
	}
}

func (s *ModerationService) audit(ctx context.Context, roomID *uint, actorID uint, action models.AuditAction, targetID uint, reason string, metadata json.RawMessage) {
	entry := &models.AuditLog{
		RoomID:       roomID,
		ActorID:      actorID,
		Action:       action,
		TargetUserID: targetID,
		Reason:       reason,
		Metadata:     metadata,
	}
	// Audit failures must not roll back the moderation action itself.
	_ = s.auditRepo.Create(ctx, entry)
	observability.RecordModerationAction(string(action))
}

// PromoteToAdmin raises a member to admin. Requires owner, admin or platform
// admin; the target must be an unblocked member.
func (s *ModerationService) PromoteToAdmin(ctx context.Context, roomID, actorID, targetID uint) (*models.RoomMembership, error) {
	if _, err := s.moderatorRole(ctx, roomID, actorID); err != nil {
		return nil, err
	}

	membership, err := s.roomRepo.GetMembership(ctx, roomID, targetID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, models.NewNotFoundError("membership")
	}
	if membership.IsBlocked {
		return nil, models.NewValidationError("cannot promote a blocked user")
	}
	if membership.Role == models.RoomRoleOwner {
		return nil, models.NewValidationError("owner already holds the highest role")
	}
	if membership.Role == models.RoomRoleAdmin {
		return nil, models.NewConflictError("user is already an admin")
	}

	membership.Role = models.RoomRoleAdmin
	if err := s.roomRepo.UpdateMembership(ctx, membership); err != nil {
		return nil, err
	}
	s.audit(ctx, &roomID, actorID, models.AuditPromoteAdmin, targetID, "", nil)
	return membership, nil
}

// KickUser removes the target's membership and records the kick for the
// rejoin cooldown. Kicking the owner requires a platform admin, and platform
// admins themselves cannot be kicked.
func (s *ModerationService) KickUser(ctx context.Context, roomID, actorID, targetID uint, reason string) error {
	if _, err := s.moderatorRole(ctx, roomID, actorID); err != nil {
		return err
	}
	if actorID == targetID {
		return models.NewValidationError("cannot kick yourself")
	}

	targetAdmin, err := s.isPlatformAdmin(ctx, targetID)
	if err != nil {
		return err
	}
	if targetAdmin {
		return models.NewForbiddenError("platform admins cannot be kicked")
	}

	membership, err := s.roomRepo.GetMembership(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if membership == nil {
		return models.NewNotFoundError("membership")
	}
	if membership.Role == models.RoomRoleOwner {
		actorAdmin, err := s.isPlatformAdmin(ctx, actorID)
		if err != nil {
			return err
		}
		if !actorAdmin {
			return models.NewForbiddenError("only a platform admin can kick the owner")
		}
	}

	if err := s.roomRepo.DeleteMembership(ctx, roomID, targetID); err != nil {
		return err
	}
	if err := s.roomRepo.CreateKick(ctx, &models.RoomKick{
		RoomID:     roomID,
		UserID:     targetID,
		KickedByID: actorID,
		Reason:     reason,
	}); err != nil {
		return err
	}
	s.audit(ctx, &roomID, actorID, models.AuditKickUser, targetID, reason, nil)
	return nil
}

// BlockUser marks the target's membership as blocked so they cannot rejoin
// or participate. Restricted to the room owner or a platform admin.
func (s *ModerationService) BlockUser(ctx context.Context, roomID, actorID, targetID uint, reason string) error {
	role, err := s.moderatorRole(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if role != models.RoomRoleOwner {
		return models.NewForbiddenError("only the owner can block users")
	}
	if actorID == targetID {
		return models.NewValidationError("cannot block yourself")
	}

	targetAdmin, err := s.isPlatformAdmin(ctx, targetID)
	if err != nil {
		return err
	}
	if targetAdmin {
		return models.NewForbiddenError("platform admins cannot be blocked")
	}

	membership, err := s.roomRepo.GetMembership(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if membership == nil {
		return models.NewNotFoundError("membership")
	}
	if membership.Role == models.RoomRoleOwner {
		actorAdmin, err := s.isPlatformAdmin(ctx, actorID)
		if err != nil {
			return err
		}
		if !actorAdmin {
			return models.NewForbiddenError("only a platform admin can block the owner")
		}
	}

	now := time.Now()
	membership.IsBlocked = true
	membership.BlockedByID = &actorID
	membership.BlockedAt = &now
	membership.BlockReason = reason
	if err := s.roomRepo.UpdateMembership(ctx, membership); err != nil {
		return err
	}
	s.audit(ctx, &roomID, actorID, models.AuditBlockUser, targetID, reason, nil)
	return nil
}

// UnblockUser clears block state. Restricted to the room owner or a platform
// admin.
func (s *ModerationService) UnblockUser(ctx context.Context, roomID, actorID, targetID uint) error {
	role, err := s.moderatorRole(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if role != models.RoomRoleOwner {
		return models.NewForbiddenError("only the owner can unblock users")
	}

	membership, err := s.roomRepo.GetMembership(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if membership == nil || !membership.IsBlocked {
		return models.NewNotFoundError("block")
	}

	membership.IsBlocked = false
	membership.BlockedByID = nil
	membership.BlockedAt = nil
	membership.BlockReason = ""
	if err := s.roomRepo.UpdateMembership(ctx, membership); err != nil {
		return err
	}
	s.audit(ctx, &roomID, actorID, models.AuditUnblockUser, targetID, "", nil)
	return nil
}

// MuteUser silences the target in the room, optionally until expiresAt. A
// nil expiry mutes indefinitely. The owner cannot be muted.
func (s *ModerationService) MuteUser(ctx context.Context, roomID, actorID, targetID uint, reason string, expiresAt *time.Time) (*models.RoomMute, error) {
	if _, err := s.moderatorRole(ctx, roomID, actorID); err != nil {
		return nil, err
	}
	if actorID == targetID {
		return nil, models.NewValidationError("cannot mute yourself")
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return nil, models.NewValidationError("mute expiry must be in the future")
	}

	targetAdmin, err := s.isPlatformAdmin(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if targetAdmin {
		return nil, models.NewForbiddenError("platform admins cannot be muted")
	}

	membership, err := s.roomRepo.GetMembership(ctx, roomID, targetID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, models.NewNotFoundError("membership")
	}
	if membership.Role == models.RoomRoleOwner {
		return nil, models.NewForbiddenError("the owner cannot be muted")
	}

	mute := &models.RoomMute{
		RoomID:    roomID,
		UserID:    targetID,
		MutedByID: actorID,
		Reason:    reason,
		ExpiresAt: expiresAt,
	}
	if err := s.roomRepo.UpsertMute(ctx, mute); err != nil {
		return nil, err
	}
	s.audit(ctx, &roomID, actorID, models.AuditMuteUser, targetID, reason, nil)
	return mute, nil
}

// UnmuteUser lifts a mute.
func (s *ModerationService) UnmuteUser(ctx context.Context, roomID, actorID, targetID uint) error {
	if _, err := s.moderatorRole(ctx, roomID, actorID); err != nil {
		return err
	}

	mute, err := s.roomRepo.GetMute(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if mute == nil {
		return models.NewNotFoundError("mute")
	}

	if err := s.roomRepo.DeleteMute(ctx, roomID, targetID); err != nil {
		return err
	}
	s.audit(ctx, &roomID, actorID, models.AuditUnmuteUser, targetID, "", nil)
	return nil
}

// ListMutes returns the room's mutes for moderators.
func (s *ModerationService) ListMutes(ctx context.Context, roomID, actorID uint) ([]models.RoomMute, error) {
	if _, err := s.moderatorRole(ctx, roomID, actorID); err != nil {
		return nil, err
	}
	return s.roomRepo.ListMutes(ctx, roomID)
}

// BanUser globally bans an account. Platform admin only; platform admins
// cannot ban each other.
func (s *ModerationService) BanUser(ctx context.Context, actorID, targetID uint, reason string) error {
	actorAdmin, err := s.isPlatformAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if !actorAdmin {
		return models.NewForbiddenError("platform admin required")
	}

	targetAdmin, err := s.isPlatformAdmin(ctx, targetID)
	if err != nil {
		return err
	}
	if targetAdmin {
		return models.NewForbiddenError("platform admins cannot be banned")
	}

	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if user.IsBanned {
		return models.NewConflictError("user is already banned")
	}

	now := time.Now()
	user.IsBanned = true
	user.BannedByID = &actorID
	user.BannedAt = &now
	user.BanReason = reason
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	s.audit(ctx, nil, actorID, models.AuditBanUser, targetID, reason, nil)
	return nil
}

// UnbanUser lifts a global ban. Platform admin only.
func (s *ModerationService) UnbanUser(ctx context.Context, actorID, targetID uint) error {
	actorAdmin, err := s.isPlatformAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if !actorAdmin {
		return models.NewForbiddenError("platform admin required")
	}

	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !user.IsBanned {
		return models.NewConflictError("user is not banned")
	}

	user.IsBanned = false
	user.BannedByID = nil
	user.BannedAt = nil
	user.BanReason = ""
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	s.audit(ctx, nil, actorID, models.AuditUnbanUser, targetID, "", nil)
	return nil
}

// ListAuditLogs returns audit entries. Authorization is enforced by the
// calling handler.
func (s *ModerationService) ListAuditLogs(ctx context.Context, filter repository.AuditFilter) ([]models.AuditLog, error) {
	return s.auditRepo.List(ctx, filter)
}
