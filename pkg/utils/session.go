package utils

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewSessionID generates a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidateSessionID checks that a caller-supplied session ID is a UUID.
func ValidateSessionID(sessionID string) bool {
	_, err := uuid.Parse(sessionID)
	return err == nil
}

// MD5Hash generates the MD5 hash of input, used for content dedup.
func MD5Hash(input string) string {
	hash := md5.Sum([]byte(input))
	return hex.EncodeToString(hash[:])
}
