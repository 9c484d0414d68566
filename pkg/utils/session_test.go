package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionIDIsValid(t *testing.T) {
	id := NewSessionID()
	assert.True(t, ValidateSessionID(id))
	assert.NotEqual(t, id, NewSessionID())
}

func TestValidateSessionIDRejectsGarbage(t *testing.T) {
	assert.False(t, ValidateSessionID(""))
	assert.False(t, ValidateSessionID("not-a-uuid"))
	assert.False(t, ValidateSessionID("12345678"))
	assert.True(t, ValidateSessionID("a2b4c6d8-1234-4abc-9def-0123456789ab"))
}

func TestMD5HashIsStable(t *testing.T) {
	assert.Equal(t, MD5Hash("hello"), MD5Hash("hello"))
	assert.NotEqual(t, MD5Hash("hello"), MD5Hash("world"))
	assert.Len(t, MD5Hash("hello"), 32)
}
