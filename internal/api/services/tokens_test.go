package services

import (
	"testing"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("s3cret")
	user := &models.User{ID: "u1", Username: "alice"}

	raw, exp, err := tokens.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(SessionTTL), exp, time.Minute)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestTokensRejectForeignAndExpired(t *testing.T) {
	user := &models.User{ID: "u1", Username: "alice"}

	raw, _, err := NewTokens("other").Issue(user)
	require.NoError(t, err)
	_, err = NewTokens("s3cret").Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	old := NewTokens("s3cret")
	old.now = func() time.Time { return time.Now().Add(-SessionTTL - time.Hour) }
	raw, _, err = old.Issue(user)
	require.NoError(t, err)
	_, err = NewTokens("s3cret").Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokens("s3cret").Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
