package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"parley/internal/models"
	"parley/internal/observability"
	"parley/internal/repository"
	"parley/internal/validation"
)

// RoomNotifier publishes room events for connected WebSocket clients.
type RoomNotifier interface {
	PublishRoomEvent(ctx context.Context, roomID uint, eventType string, payload any)
}

// MessageService implements sending, listing and the two-tier deletion of
// room messages.
type MessageService struct {
	msgRepo   repository.MessageRepository
	roomRepo  repository.RoomRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	fileRepo  repository.FileRepository
	notifier  RoomNotifier

	isPlatformAdmin func(ctx context.Context, userID uint) (bool, error)
}

// SendMessageInput carries the fields for sending a text message.
type SendMessageInput struct {
	RoomID      uint
	UserID      uint
	Content     string
	ReplyToID   *uint
	UseMarkdown bool
}

// SendFileMessageInput carries the fields for sending a file message.
type SendFileMessageInput struct {
	RoomID      uint
	UserID      uint
	FileID      string
	Caption     string
	UseMarkdown bool
}

// NewMessageService returns a new MessageService.
func NewMessageService(
	msgRepo repository.MessageRepository,
	roomRepo repository.RoomRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	fileRepo repository.FileRepository,
	notifier RoomNotifier,
	isPlatformAdmin func(ctx context.Context, userID uint) (bool, error),
) *MessageService {
	return &MessageService{
		msgRepo:         msgRepo,
		roomRepo:        roomRepo,
		userRepo:        userRepo,
		auditRepo:       auditRepo,
		fileRepo:        fileRepo,
		notifier:        notifier,
		isPlatformAdmin: isPlatformAdmin,
	}
}

// senderGate verifies the user may post in the room: an unblocked membership
// and no active mute. Platform admins pass the membership check.
func (s *MessageService) senderGate(ctx context.Context, roomID, userID uint) error {
	membership, err := s.roomRepo.GetMembership(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if membership == nil {
		admin, adminErr := s.isPlatformAdmin(ctx, userID)
		if adminErr != nil {
			return adminErr
		}
		if !admin {
			return models.NewForbiddenError("join the room before posting")
		}
	} else if membership.IsBlocked {
		return models.NewForbiddenError("you are blocked from this room")
	}

	mute, err := s.roomRepo.GetMute(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if mute != nil && mute.Active(time.Now()) {
		return models.NewForbiddenError("you are muted in this room")
	}
	return nil
}

// Send posts a text message. Replies snapshot the original's content and
// author at send time.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if _, err := s.roomRepo.GetByID(ctx, in.RoomID); err != nil {
		return nil, err
	}
	if err := s.senderGate(ctx, in.RoomID, in.UserID); err != nil {
		return nil, err
	}
	if err := validation.ValidateMessageContent(in.Content, false); err != nil {
		return nil, err
	}

	msg := &models.Message{
		RoomID:      in.RoomID,
		UserID:      in.UserID,
		Content:     strings.TrimSpace(in.Content),
		UseMarkdown: in.UseMarkdown,
	}

	if in.ReplyToID != nil {
		original, err := s.msgRepo.GetByID(ctx, *in.ReplyToID)
		if err != nil {
			return nil, err
		}
		if original.RoomID != in.RoomID {
			return nil, models.NewValidationError("reply target is in another room")
		}
		if original.IsDeleted {
			return nil, models.NewValidationError("cannot reply to a deleted message")
		}
		author, err := s.userRepo.GetByID(ctx, original.UserID)
		if err != nil {
			return nil, err
		}
		msg.ReplyToID = in.ReplyToID
		msg.ReplyToContent = original.Content
		msg.ReplyToUsername = author.Username
	}

	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	observability.RecordMessage(fmt.Sprintf("%d", in.RoomID), "text")
	if s.notifier != nil {
		s.notifier.PublishRoomEvent(ctx, in.RoomID, "message_created", msg)
	}
	return msg, nil
}

// SendFile posts a message carrying a file attachment, denormalizing the
// file metadata onto the message row, and records a file_upload audit entry.
func (s *MessageService) SendFile(ctx context.Context, in SendFileMessageInput) (*models.Message, error) {
	if _, err := s.roomRepo.GetByID(ctx, in.RoomID); err != nil {
		return nil, err
	}
	if err := s.senderGate(ctx, in.RoomID, in.UserID); err != nil {
		return nil, err
	}
	if err := validation.ValidateMessageContent(in.Caption, true); err != nil {
		return nil, err
	}

	file, err := s.fileRepo.GetByID(ctx, in.FileID)
	if err != nil {
		return nil, err
	}
	if file.UploaderID != in.UserID {
		return nil, models.NewForbiddenError("file belongs to another user")
	}

	msg := &models.Message{
		RoomID:      in.RoomID,
		UserID:      in.UserID,
		Content:     strings.TrimSpace(in.Caption),
		FileID:      &file.ID,
		FileName:    file.Name,
		FileType:    file.ContentType,
		FileSize:    file.Size,
		ThumbnailID: file.ThumbnailID,
		UseMarkdown: in.UseMarkdown,
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]any{
		"file_id":   file.ID,
		"file_name": file.Name,
		"file_type": file.ContentType,
		"file_size": file.Size,
	})
	_ = s.auditRepo.Create(ctx, &models.AuditLog{
		RoomID:       &in.RoomID,
		ActorID:      in.UserID,
		Action:       models.AuditFileUpload,
		TargetUserID: in.UserID,
		Metadata:     meta,
	})

	observability.RecordMessage(fmt.Sprintf("%d", in.RoomID), "file")
	if s.notifier != nil {
		s.notifier.PublishRoomEvent(ctx, in.RoomID, "message_created", msg)
	}
	return msg, nil
}

// List returns the newest messages in chronological order as seen by the
// viewer. Blocked users cannot read the room.
func (s *MessageService) List(ctx context.Context, roomID, viewerID uint, limit int) ([]models.MessageView, error) {
	if _, err := s.roomRepo.GetByID(ctx, roomID); err != nil {
		return nil, err
	}

	membership, err := s.roomRepo.GetMembership(ctx, roomID, viewerID)
	if err != nil {
		return nil, err
	}
	if membership != nil && membership.IsBlocked {
		return nil, models.NewForbiddenError("you are blocked from this room")
	}

	return s.msgRepo.ListForViewer(ctx, roomID, viewerID, limit)
}

// Delete removes a message in one of two tiers. "me" hides it for the caller
// only and is idempotent; "everyone" needs the author, a room moderator or a
// platform admin and flags the shared row.
func (s *MessageService) Delete(ctx context.Context, messageID, actorID uint, scope models.MessageDeleteScope) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	switch scope {
	case models.DeleteForMe:
		// Hiding a message for yourself needs no standing in the room.
		return s.msgRepo.CreateViewerDeletion(ctx, messageID, actorID)

	case models.DeleteForEveryone:
		if msg.IsDeleted {
			return models.NewConflictError("message is already deleted")
		}
		if msg.UserID != actorID {
			allowed, err := s.canModerateMessages(ctx, msg.RoomID, actorID)
			if err != nil {
				return err
			}
			if !allowed {
				return models.NewForbiddenError("only the author or a moderator can delete for everyone")
			}
			_ = s.auditRepo.Create(ctx, &models.AuditLog{
				RoomID:       &msg.RoomID,
				ActorID:      actorID,
				Action:       models.AuditDeleteMessage,
				TargetUserID: msg.UserID,
			})
		}
		if err := s.msgRepo.MarkDeletedForEveryone(ctx, messageID, actorID); err != nil {
			return err
		}
		if s.notifier != nil {
			s.notifier.PublishRoomEvent(ctx, msg.RoomID, "message_deleted", map[string]uint{"message_id": messageID})
		}
		return nil

	default:
		return models.NewValidationError("delete scope must be 'me' or 'everyone'")
	}
}

func (s *MessageService) canModerateMessages(ctx context.Context, roomID, actorID uint) (bool, error) {
	admin, err := s.isPlatformAdmin(ctx, actorID)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}
	membership, err := s.roomRepo.GetMembership(ctx, roomID, actorID)
	if err != nil {
		return false, err
	}
	if membership == nil || membership.IsBlocked {
		return false, nil
	}
	return membership.Role == models.RoomRoleOwner || membership.Role == models.RoomRoleAdmin, nil
}
