// Command main runs the database seeder for Parley.
package main

import (
	"flag"
	"log"

	"parley/internal/config"
	"parley/internal/database"
	"parley/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 30, "Number of users to create")
	numRooms := flag.Int("rooms", 8, "Number of rooms to create")
	numMessages := flag.Int("messages", 400, "Number of messages to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	skipBcrypt := flag.Bool("fast", false, "Skip bcrypt hashing for faster seeding (dev only)")
	maxDays := flag.Int("days", 30, "Spread message history over this many days")
	flag.Parse()

	log.Println("Parley database seeder")
	log.Printf("Target: %d users, %d rooms, %d messages, clean=%v", *numUsers, *numRooms, *numMessages, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumUsers:    *numUsers,
		NumRooms:    *numRooms,
		NumMessages: *numMessages,
		ShouldClean: *shouldClean,
		SkipBcrypt:  *skipBcrypt,
		MaxDays:     *maxDays,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
