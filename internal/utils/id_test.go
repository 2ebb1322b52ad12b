package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageID(t *testing.T) {
	urlSafe := regexp.MustCompile(`^[A-Za-z0-9_-]{20}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewMessageID()
		require.NoError(t, err)
		assert.Regexp(t, urlSafe, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
