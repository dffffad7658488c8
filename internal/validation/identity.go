package validation

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// UserIDPattern допустимый формат идентификатора фермера:
// латинские буквы, цифры, дефис и подчеркивание, 3-64 символа
var UserIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

const (
	// MinSecretLen минимальная длина секрета устройства
	MinSecretLen = 16
	// MaxSecretLen bcrypt учитывает только первые 72 байта
	MaxSecretLen = 72
)

// ValidateDeviceID проверяет, что идентификатор устройства - UUID
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device id cannot be empty")
	}
	if _, err := uuid.Parse(deviceID); err != nil {
		return fmt.Errorf("device id must be a UUID: %w", err)
	}
	return nil
}

// ValidateUserID проверяет формат идентификатора фермера
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if !UserIDPattern.MatchString(userID) {
		return fmt.Errorf("user id can only contain letters, numbers, '-' and '_' (3-64 characters)")
	}
	return nil
}

// ValidateSecret проверяет длину секрета устройства
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretLen {
		return fmt.Errorf("device secret must be at least %d characters long", MinSecretLen)
	}
	if len(secret) > MaxSecretLen {
		return fmt.Errorf("device secret must not exceed %d bytes", MaxSecretLen)
	}
	return nil
}
