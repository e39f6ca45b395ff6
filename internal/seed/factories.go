// Package seed provides helpers to create demo and test data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"parley/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, opts: opts}
}

// CreateUser constructs and persists a sample user. Optional override
// functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	username := strings.ToLower(gofakeit.Username()) + fmt.Sprintf("%d", gofakeit.Number(100, 999))
	user := &models.User{
		ExternalID: "seed|" + gofakeit.UUID(),
		Email:      gofakeit.Email(),
		Username:   username,
		Name:       gofakeit.Name(),
		AvatarURL:  fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateRoom constructs and persists a room owned by the given user,
// including the owner membership row.
func (f *Factory) CreateRoom(owner *models.User, overrides ...func(*models.Room)) (*models.Room, error) {
	room := &models.Room{
		Name:        gofakeit.HipsterWord() + " " + gofakeit.NounAbstract(),
		Description: gofakeit.Sentence(8),
		OwnerID:     owner.ID,
		IsActive:    true,
	}

	for _, override := range overrides {
		override(room)
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		membership := &models.RoomMembership{
			RoomID: room.ID,
			UserID: owner.ID,
			Role:   models.RoomRoleOwner,
		}
		return tx.Create(membership).Error
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// AddMember persists a membership for the user in the room with the given role.
func (f *Factory) AddMember(room *models.Room, user *models.User, role models.RoomRole) error {
	membership := &models.RoomMembership{
		RoomID: room.ID,
		UserID: user.ID,
		Role:   role,
	}
	return f.db.Create(membership).Error
}

// CreateMessage constructs and persists a sample message in the room from the
// given sender. CreatedAt is spread backwards over MaxDays for a realistic
// history.
func (f *Factory) CreateMessage(room *models.Room, sender *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	message := &models.Message{
		RoomID:  room.ID,
		UserID:  sender.ID,
		Content: gofakeit.Sentence(gofakeit.Number(4, 18)),
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	minsBack := r.Intn(60)
	message.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)

	for _, override := range overrides {
		override(message)
	}

	if err := f.db.Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// CreateReply persists a message quoting the given original, with the reply
// snapshot fields filled the way the service does at send time.
func (f *Factory) CreateReply(room *models.Room, sender *models.User, original *models.Message, authorUsername string) (*models.Message, error) {
	return f.CreateMessage(room, sender, func(m *models.Message) {
		m.ReplyToID = &original.ID
		m.ReplyToContent = original.Content
		m.ReplyToUsername = authorUsername
		if m.CreatedAt.Before(original.CreatedAt) {
			m.CreatedAt = original.CreatedAt.Add(time.Minute)
		}
	})
}

// CreateMute persists a room mute for the user, expiring within MaxDays.
func (f *Factory) CreateMute(room *models.Room, target *models.User, moderator *models.User) error {
	expires := time.Now().Add(time.Duration(gofakeit.Number(1, 72)) * time.Hour)
	mute := &models.RoomMute{
		RoomID:    room.ID,
		UserID:    target.ID,
		MutedByID: moderator.ID,
		Reason:    gofakeit.HackerPhrase(),
		ExpiresAt: &expires,
	}
	return f.db.Create(mute).Error
}

// CreateAuditEntry persists an audit log row for a moderation action.
func (f *Factory) CreateAuditEntry(room *models.Room, actor, target *models.User, action models.AuditAction) error {
	var roomID *uint
	if room != nil {
		roomID = &room.ID
	}
	entry := &models.AuditLog{
		RoomID:       roomID,
		ActorID:      actor.ID,
		Action:       action,
		TargetUserID: target.ID,
		Reason:       gofakeit.HackerPhrase(),
	}
	return f.db.Create(entry).Error
}

// MustCreateUsers creates n users, logging and skipping individual failures
// (duplicate generated usernames are possible and harmless).
func (f *Factory) MustCreateUsers(n int) []*models.User {
	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		user, err := f.CreateUser()
		if err != nil {
			log.Printf("seed: skipping user %d: %v", i, err)
			continue
		}
		users = append(users, user)
	}
	return users
}
