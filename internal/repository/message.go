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

// MessageRepository defines persistence operations for messages and their
// per-viewer deletion overlay.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	ListForViewer(ctx context.Context, roomID, viewerID uint, limit int) ([]models.MessageView, error)
	MarkDeletedForEveryone(ctx context.Context, msgID, deletedByID uint) error
	CreateViewerDeletion(ctx context.Context, msgID, userID uint) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.MessageHistoryKey(msg.RoomID))
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("message")
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

// ListForViewer returns the newest messages in chronological order with the
// viewer's personal deletions folded in. A message deleted for everyone wins
// over a personal deletion.
func (r *messageRepository) ListForViewer(ctx context.Context, roomID, viewerID uint, limit int) ([]models.MessageView, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var views []models.MessageView
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Select("messages.*, users.username, users.avatar_url AS user_avatar_url").
		Joins("JOIN users ON users.id = messages.user_id").
		Where("messages.room_id = ?", roomID).
		Order("messages.created_at DESC, messages.id DESC").
		Limit(limit).
		Scan(&views).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	// Fetched DESC to get the latest window; clients expect oldest -> newest.
	for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
		views[i], views[j] = views[j], views[i]
	}

	if len(views) == 0 {
		return views, nil
	}

	ids := make([]uint, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}

	var deletions []models.MessageDeletion
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND message_id IN ?", viewerID, ids).
		Find(&deletions).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	deletedForMe := make(map[uint]struct{}, len(deletions))
	for _, d := range deletions {
		deletedForMe[d.MessageID] = struct{}{}
	}

	everyone := models.DeleteForEveryone
	me := models.DeleteForMe
	for i := range views {
		switch {
		case views[i].IsDeleted:
			views[i].ViewDeleted = true
			views[i].ViewDeletedFor = &everyone
		default:
			if _, ok := deletedForMe[views[i].ID]; ok {
				views[i].ViewDeleted = true
				views[i].ViewDeletedFor = &me
			}
		}
	}

	return views, nil
}

func (r *messageRepository) MarkDeletedForEveryone(ctx context.Context, msgID, deletedByID uint) error {
	now := time.Now()
	scope := models.DeleteForEveryone
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", msgID).
		Updates(map[string]interface{}{
			"is_deleted":    true,
			"deleted_by_id": deletedByID,
			"deleted_at":    now,
			"deleted_for":   scope,
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// CreateViewerDeletion is idempotent: deleting an already-hidden message for
// yourself is a no-op.
func (r *messageRepository) CreateViewerDeletion(ctx context.Context, msgID, userID uint) error {
	deletion := models.MessageDeletion{
		MessageID: msgID,
		UserID:    userID,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&deletion).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
