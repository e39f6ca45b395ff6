package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"parley/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumRooms    int
	NumMessages int
	ShouldClean bool
	SkipBcrypt  bool
	// MaxDays spreads generated message timestamps over this many days back.
	MaxDays int
}

var roomNames = []string{
	"General", "Movies", "Music", "Gaming", "Fitness",
	"Sports", "Technology", "Anime", "Books", "Food",
	"Travel", "Programming", "Linux", "DevOps", "Cloud",
	"AI", "Startups", "Homelab", "Art", "Science",
}

// Seed populates the database with demo data: users, rooms with owner and
// member roles, message history with some replies, and a sprinkling of
// moderation state.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Seeding %d users, %d rooms, %d messages...", opts.NumUsers, opts.NumRooms, opts.NumMessages)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Printf("Warning: could not clear existing data, continuing anyway: %v", err)
		}
	}

	f := NewFactory(db, opts)

	users := f.MustCreateUsers(opts.NumUsers)
	if len(users) < 3 {
		return fmt.Errorf("not enough users created: got %d", len(users))
	}
	log.Printf("Created %d users", len(users))

	rooms, err := createRooms(f, users, opts.NumRooms)
	if err != nil {
		return fmt.Errorf("failed to create rooms: %w", err)
	}
	log.Printf("Created %d rooms", len(rooms))

	if err := populateRooms(f, db, rooms, users, opts.NumMessages); err != nil {
		return fmt.Errorf("failed to populate rooms: %w", err)
	}
	log.Printf("Created %d messages", opts.NumMessages)

	if err := seedModeration(f, db, rooms, users); err != nil {
		return fmt.Errorf("failed to seed moderation state: %w", err)
	}

	log.Println("Seeding completed")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	sql := `TRUNCATE TABLE message_deletions, messages, room_mutes, room_kicks, room_memberships, audit_logs, files, rooms, users RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func createRooms(f *Factory, users []*models.User, n int) ([]*models.Room, error) {
	if n > len(roomNames) {
		n = len(roomNames)
	}
	rooms := make([]*models.Room, 0, n)
	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < n; i++ {
		owner := users[r.Intn(len(users))]
		name := roomNames[i]
		room, err := f.CreateRoom(owner, func(rm *models.Room) {
			rm.Name = name
		})
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func populateRooms(f *Factory, db *gorm.DB, rooms []*models.Room, users []*models.User, numMessages int) error {
	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Each room gets a random slice of the user base as members, with one
	// promoted to room admin.
	members := make(map[uint][]*models.User)
	for _, room := range rooms {
		joined := []*models.User{}
		for _, user := range users {
			if user.ID == room.OwnerID {
				continue
			}
			if r.Intn(100) < 40 {
				role := models.RoomRoleMember
				if len(joined) == 0 {
					role = models.RoomRoleAdmin
				}
				if err := f.AddMember(room, user, role); err != nil {
					return err
				}
				joined = append(joined, user)
			}
		}
		members[room.ID] = joined
	}

	usernames := make(map[uint]string, len(users))
	for _, user := range users {
		usernames[user.ID] = user.Username
	}

	lastInRoom := make(map[uint]*models.Message)
	for i := 0; i < numMessages; i++ {
		room := rooms[r.Intn(len(rooms))]
		pool := members[room.ID]

		var sender *models.User
		if len(pool) == 0 || r.Intn(100) < 25 {
			var owner models.User
			if err := db.First(&owner, room.OwnerID).Error; err != nil {
				return err
			}
			sender = &owner
		} else {
			sender = pool[r.Intn(len(pool))]
		}

		// Roughly one in eight messages quotes the previous one.
		if prev := lastInRoom[room.ID]; prev != nil && r.Intn(8) == 0 {
			msg, err := f.CreateReply(room, sender, prev, usernames[prev.UserID])
			if err != nil {
				return err
			}
			lastInRoom[room.ID] = msg
			continue
		}

		msg, err := f.CreateMessage(room, sender)
		if err != nil {
			return err
		}
		lastInRoom[room.ID] = msg
	}
	return nil
}

func seedModeration(f *Factory, db *gorm.DB, rooms []*models.Room, users []*models.User) error {
	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, room := range rooms {
		if r.Intn(100) >= 30 {
			continue
		}

		var memberships []models.RoomMembership
		if err := db.Where("room_id = ? AND role = ?", room.ID, models.RoomRoleMember).
			Limit(2).Find(&memberships).Error; err != nil {
			return err
		}
		if len(memberships) == 0 {
			continue
		}

		var owner models.User
		if err := db.First(&owner, room.OwnerID).Error; err != nil {
			return err
		}

		target := users[0]
		for _, u := range users {
			if u.ID == memberships[0].UserID {
				target = u
				break
			}
		}

		if err := f.CreateMute(room, target, &owner); err != nil {
			return err
		}
		if err := f.CreateAuditEntry(room, &owner, target, models.AuditMuteUser); err != nil {
			return err
		}
	}
	return nil
}
