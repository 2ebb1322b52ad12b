package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// messageIDBytes encodes to exactly 20 URL-safe characters.
const messageIDBytes = 15

// GenerateSecureToken creates a cryptographically secure random token.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewMessageID returns a random 20-character message id.
func NewMessageID() (string, error) {
	return GenerateSecureToken(messageIDBytes)
}
