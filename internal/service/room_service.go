package service

import (
	"context"
	"strings"
	"time"

	"parley/internal/models"
	"parley/internal/repository"
	"parley/internal/validation"
)

// RoomService provides room lifecycle, membership and role resolution logic.
type RoomService struct {
	roomRepo repository.RoomRepository

	// isPlatformAdmin is injected so the service stays decoupled from the
	// identity layer.
	isPlatformAdmin func(ctx context.Context, userID uint) (bool, error)

	createCooldown time.Duration
	kickCooldown   time.Duration
}

// CreateRoomInput carries the fields for room creation.
type CreateRoomInput struct {
	OwnerID     uint
	Name        string
	Description string
}

// NewRoomService returns a new RoomService.
func NewRoomService(
	roomRepo repository.RoomRepository,
	isPlatformAdmin func(ctx context.Context, userID uint) (bool, error),
	createCooldown, kickCooldown time.Duration,
) *RoomService {
	return &RoomService{
		roomRepo:        roomRepo,
		isPlatformAdmin: isPlatformAdmin,
		createCooldown:  createCooldown,
		kickCooldown:    kickCooldown,
	}
}

// CreateRoom creates a room and its owner membership. Platform admins skip
// the length limits but not the creation cooldown; the cooldown is derived
// from the owner's newest room so it survives restarts.
func (s *RoomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*models.Room, error) {
	exempt, err := s.isPlatformAdmin(ctx, in.OwnerID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if err := validation.ValidateRoomName(name, exempt); err != nil {
		return nil, err
	}
	if err := validation.ValidateRoomDescription(in.Description, exempt); err != nil {
		return nil, err
	}

	if s.createCooldown > 0 {
		newest, err := s.roomRepo.NewestByOwner(ctx, in.OwnerID)
		if err != nil {
			return nil, err
		}
		if newest != nil {
			elapsed := time.Since(newest.CreatedAt)
			if elapsed < s.createCooldown {
				return nil, models.NewRateLimitError("room creation", s.createCooldown-elapsed)
			}
		}
	}

	room := &models.Room{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		OwnerID:     in.OwnerID,
		IsActive:    true,
	}
	membership := &models.RoomMembership{
		UserID: in.OwnerID,
		Role:   models.RoomRoleOwner,
	}
	if err := s.roomRepo.Create(ctx, room, membership); err != nil {
		return nil, err
	}
	return room, nil
}

// ListRooms returns active rooms newest-first with owner and member counts.
func (s *RoomService) ListRooms(ctx context.Context, limit, offset int) ([]models.RoomSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.roomRepo.List(ctx, limit, offset)
}

// GetRoom returns the room by ID.
func (s *RoomService) GetRoom(ctx context.Context, id uint) (*models.Room, error) {
	return s.roomRepo.GetByID(ctx, id)
}

// GetRoomSummary returns the room with the owner-username and member-count
// enrichment the listing carries.
func (s *RoomService) GetRoomSummary(ctx context.Context, id uint) (*models.RoomSummary, error) {
	return s.roomRepo.GetSummary(ctx, id)
}

// JoinRoom adds the user as a member. Blocked users cannot rejoin, existing
// members get a conflict, and recently kicked users must wait out the
// cooldown window.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, userID uint) (*models.RoomMembership, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, models.NewNotFoundError("room")
	}

	existing, err := s.roomRepo.GetMembership(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.IsBlocked {
			return nil, models.NewForbiddenError("you are blocked from this room")
		}
		return nil, models.NewConflictError("already a member of this room")
	}

	if s.kickCooldown > 0 {
		kick, err := s.roomRepo.LatestKick(ctx, roomID, userID)
		if err != nil {
			return nil, err
		}
		if kick != nil {
			elapsed := time.Since(kick.CreatedAt)
			if elapsed < s.kickCooldown {
				return nil, models.NewRateLimitError("rejoin", s.kickCooldown-elapsed)
			}
		}
	}

	membership := &models.RoomMembership{
		RoomID: roomID,
		UserID: userID,
		Role:   models.RoomRoleMember,
	}
	if err := s.roomRepo.UpsertMembership(ctx, membership); err != nil {
		return nil, err
	}
	return membership, nil
}

// ResolveRole computes the effective role of a user in a room. Absence means
// visitor, a blocked membership overrides the stored role, and platform
// admins always resolve to owner.
func (s *RoomService) ResolveRole(ctx context.Context, roomID, userID uint) (models.RoomRole, error) {
	admin, err := s.isPlatformAdmin(ctx, userID)
	if err != nil {
		return "", err
	}
	if admin {
		return models.RoomRoleOwner, nil
	}

	membership, err := s.roomRepo.GetMembership(ctx, roomID, userID)
	if err != nil {
		return "", err
	}
	if membership == nil {
		return models.RoomRoleVisitor, nil
	}
	if membership.IsBlocked {
		return models.RoomRoleBlocked, nil
	}
	return membership.Role, nil
}

// ListMembers returns room members with profile fields, ordered by role.
func (s *RoomService) ListMembers(ctx context.Context, roomID uint) ([]models.RoomMember, error) {
	if _, err := s.roomRepo.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	return s.roomRepo.ListMembers(ctx, roomID)
}
