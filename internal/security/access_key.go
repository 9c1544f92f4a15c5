package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// accessKeyPrefix is the prefix used for generated access keys.
const accessKeyPrefix = "key_"

// GenerateAccessKey creates a new random access key string.
func GenerateAccessKey() (string, error) {
	secret := make([]byte, 12)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate access key: %w", err)
	}
	return accessKeyPrefix + hex.EncodeToString(secret), nil
}

// GenerateRandomString returns a hex-encoded random string of the given length.
func GenerateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", fmt.Errorf("generate random string: %w", err)
	}
	return hex.EncodeToString(bytes)[:length], nil
}
