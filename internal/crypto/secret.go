package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// SecretLength длина случайного секрета устройства в байтах
	SecretLength = 32
)

// ErrSecretMismatch секрет не соответствует сохраненному хешу
var ErrSecretMismatch = errors.New("secret mismatch")

// GenerateSecret генерирует случайный секрет устройства (base64, без паддинга)
func GenerateSecret() (string, error) {
	b := make([]byte, SecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSecret хеширует секрет устройства bcrypt для хранения на сервере
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret проверяет секрет по bcrypt хешу
func VerifySecret(secret, hash string) error {
	if secret == "" || hash == "" {
		return ErrSecretMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrSecretMismatch
		}
		return fmt.Errorf("failed to verify secret: %w", err)
	}
	return nil
}

// KeysEqual сравнивает общие ключи (регистрации, администратора) за постоянное время.
// Пустой ожидаемый ключ никогда не совпадает.
func KeysEqual(expected, provided string) bool {
	if expected == "" {
		return false
	}
	a := sha256.Sum256([]byte(expected))
	b := sha256.Sum256([]byte(provided))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
