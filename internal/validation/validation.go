// Package validation holds input validation and normalization helpers shared
// by the services.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"parley/internal/models"
)

// UsernameMaxLen caps the sanitized username base. Dedupe suffixes may push
// the stored value past this by a few characters.
const UsernameMaxLen = 20

var usernameRegex = regexp.MustCompile(`^[a-z0-9]+(-[0-9]+)?$`)

// SanitizeUsername derives a username from a display name or email local
// part: lowercase, alphanumerics only, truncated to UsernameMaxLen. Returns
// "user" when nothing survives.
func SanitizeUsername(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLower(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			if b.Len() >= UsernameMaxLen {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

// ValidateUsername checks a stored username shape, including dedupe suffixes.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be lowercase letters and numbers, optionally ending in a numeric suffix")
	}
	return nil
}

// ValidateEmail checks basic email shape.
func ValidateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePassword enforces the minimum password length for local accounts.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

// ValidateRoomName checks the room name against the length limit. exempt
// skips the limit for platform admins.
func ValidateRoomName(name string, exempt bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.NewValidationError("room name is required")
	}
	if !exempt && len([]rune(name)) > models.RoomNameMaxLen {
		return models.NewTooLongError(models.CodeNameTooLong, "room name", len([]rune(name)), models.RoomNameMaxLen)
	}
	return nil
}

// ValidateRoomDescription checks the description length limit. exempt skips
// the limit for platform admins.
func ValidateRoomDescription(description string, exempt bool) error {
	if !exempt && len([]rune(description)) > models.RoomDescriptionMaxLen {
		return models.NewTooLongError(models.CodeDescTooLong, "room description", len([]rune(description)), models.RoomDescriptionMaxLen)
	}
	return nil
}

// ValidateMessageContent checks message body constraints. Messages with an
// attached file may have an empty body.
func ValidateMessageContent(content string, hasFile bool) error {
	if strings.TrimSpace(content) == "" && !hasFile {
		return models.NewValidationError("message content is required")
	}
	if len([]rune(content)) > models.MaxMessageContentLen {
		return models.NewValidationError(fmt.Sprintf("message exceeds %d characters", models.MaxMessageContentLen))
	}
	return nil
}
