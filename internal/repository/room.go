package repository

import (
	"context"
	"errors"
	"time"

	"parley/internal/cache"
	"parley/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomRepository defines persistence operations for rooms, memberships,
// kicks and mutes.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room, ownerMembership *models.RoomMembership) error
	GetByID(ctx context.Context, id uint) (*models.Room, error)
	GetSummary(ctx context.Context, id uint) (*models.RoomSummary, error)
	List(ctx context.Context, limit, offset int) ([]models.RoomSummary, error)
	NewestByOwner(ctx context.Context, ownerID uint) (*models.Room, error)

	GetMembership(ctx context.Context, roomID, userID uint) (*models.RoomMembership, error)
	UpsertMembership(ctx context.Context, m *models.RoomMembership) error
	UpdateMembership(ctx context.Context, m *models.RoomMembership) error
	DeleteMembership(ctx context.Context, roomID, userID uint) error
	ListMembers(ctx context.Context, roomID uint) ([]models.RoomMember, error)

	CreateKick(ctx context.Context, kick *models.RoomKick) error
	LatestKick(ctx context.Context, roomID, userID uint) (*models.RoomKick, error)

	UpsertMute(ctx context.Context, mute *models.RoomMute) error
	DeleteMute(ctx context.Context, roomID, userID uint) error
	GetMute(ctx context.Context, roomID, userID uint) (*models.RoomMute, error)
	ListMutes(ctx context.Context, roomID uint) ([]models.RoomMute, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository returns a new RoomRepository implementation.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

// Create inserts the room and its owner membership in one transaction so a
// room never exists without an owner row.
func (r *roomRepository) Create(ctx context.Context, room *models.Room, ownerMembership *models.RoomMembership) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		ownerMembership.RoomID = room.ID
		return tx.Create(ownerMembership).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.RoomListKey)
	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	key := cache.RoomKey(id)

	err := cache.Aside(ctx, key, &room, cache.RoomTTL, func() error {
		if err := r.db.WithContext(ctx).Preload("Owner").First(&room, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("room")
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetSummary returns one room with the same owner/member-count enrichment as
// List. Not cached; the member count changes on every join.
func (r *roomRepository) GetSummary(ctx context.Context, id uint) (*models.RoomSummary, error) {
	var summary models.RoomSummary
	err := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Select(`rooms.*, users.username AS owner_username,
			(SELECT COUNT(*) FROM room_memberships rm
			 WHERE rm.room_id = rooms.id AND rm.is_blocked = ?) AS member_count`, false).
		Joins("JOIN users ON users.id = rooms.owner_id").
		Where("rooms.id = ?", id).
		Scan(&summary).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if summary.ID == 0 {
		return nil, models.NewNotFoundError("room")
	}
	return &summary, nil
}

// List returns active rooms newest-first with owner username and the count of
// non-blocked members.
func (r *roomRepository) List(ctx context.Context, limit, offset int) ([]models.RoomSummary, error) {
	var summaries []models.RoomSummary
	err := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Select(`rooms.*, users.username AS owner_username,
			(SELECT COUNT(*) FROM room_memberships rm
			 WHERE rm.room_id = rooms.id AND rm.is_blocked = ?) AS member_count`, false).
		Joins("JOIN users ON users.id = rooms.owner_id").
		Where("rooms.is_active = ?", true).
		Order("rooms.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&summaries).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return summaries, nil
}

func (r *roomRepository) NewestByOwner(ctx context.Context, ownerID uint) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &room, nil
}

func (r *roomRepository) GetMembership(ctx context.Context, roomID, userID uint) (*models.RoomMembership, error) {
	var m models.RoomMembership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &m, nil
}

// UpsertMembership inserts the membership, silently ignoring a duplicate row.
func (r *roomRepository) UpsertMembership(ctx context.Context, m *models.RoomMembership) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateRole(ctx, m.RoomID, m.UserID)
	return nil
}

func (r *roomRepository) UpdateMembership(ctx context.Context, m *models.RoomMembership) error {
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateRole(ctx, m.RoomID, m.UserID)
	return nil
}

func (r *roomRepository) DeleteMembership(ctx context.Context, roomID, userID uint) error {
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.RoomMembership{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateRole(ctx, roomID, userID)
	return nil
}

// ListMembers returns memberships with profile fields, owner first, then
// admins, then members by join time.
func (r *roomRepository) ListMembers(ctx context.Context, roomID uint) ([]models.RoomMember, error) {
	var members []models.RoomMember
	err := r.db.WithContext(ctx).
		Model(&models.RoomMembership{}).
		Select("room_memberships.*, users.username, users.name, users.avatar_url").
		Joins("JOIN users ON users.id = room_memberships.user_id").
		Where("room_memberships.room_id = ?", roomID).
		Order(`CASE room_memberships.role
			WHEN 'owner' THEN 0
			WHEN 'admin' THEN 1
			ELSE 2 END, room_memberships.joined_at ASC`).
		Scan(&members).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}

func (r *roomRepository) CreateKick(ctx context.Context, kick *models.RoomKick) error {
	if err := r.db.WithContext(ctx).Create(kick).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *roomRepository) LatestKick(ctx context.Context, roomID, userID uint) (*models.RoomKick, error) {
	var kick models.RoomKick
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Order("created_at DESC").
		First(&kick).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &kick, nil
}

// UpsertMute replaces any existing mute for the pair so re-muting extends or
// shortens the window.
func (r *roomRepository) UpsertMute(ctx context.Context, mute *models.RoomMute) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"muted_by_id": mute.MutedByID,
				"reason":      mute.Reason,
				"expires_at":  mute.ExpiresAt,
				"updated_at":  time.Now(),
			}),
		}).
		Create(mute).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *roomRepository) DeleteMute(ctx context.Context, roomID, userID uint) error {
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.RoomMute{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *roomRepository) GetMute(ctx context.Context, roomID, userID uint) (*models.RoomMute, error) {
	var mute models.RoomMute
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&mute).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &mute, nil
}

func (r *roomRepository) ListMutes(ctx context.Context, roomID uint) ([]models.RoomMute, error) {
	var mutes []models.RoomMute
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("MutedBy").
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Find(&mutes).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return mutes, nil
}
