package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// UsernameRegex validates username format
	UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// RoomCodeRegex validates room code format
	RoomCodeRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// ValidateUsername validates a participant username
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) < 2 {
		return fmt.Errorf("username must be at least 2 characters")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateRoomCode validates a classroom join code
func ValidateRoomCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("room code is required")
	}
	if len(code) < 4 || len(code) > 16 {
		return fmt.Errorf("room code must be between 4 and 16 characters")
	}
	if !RoomCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid room code format")
	}
	return nil
}

// ValidateRoomTitle validates a classroom title
func ValidateRoomTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if len(title) > 200 {
		return fmt.Errorf("title is too long (max 200 characters)")
	}
	return nil
}

// ValidateChatMessage validates an outbound chat message
func ValidateChatMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message is empty")
	}
	if len(message) > 2000 {
		return fmt.Errorf("message is too long (max 2000 characters)")
	}
	return nil
}
