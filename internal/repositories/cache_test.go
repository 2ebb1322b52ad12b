package repositories_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/repositories"
	"github.com/Staby-Guy/pidgeon/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingUsers struct {
	*memory.DB
	byID atomic.Int32
}

func (c *countingUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	c.byID.Add(1)
	return c.DB.GetUserByID(ctx, id)
}

func TestCachedUsersServesRepeatLookups(t *testing.T) {
	ctx := context.Background()
	backing := &countingUsers{DB: memory.New()}
	require.NoError(t, backing.CreateUser(ctx, &models.User{ID: "u1", Username: "alice", Email: "alice@example.com", PasswordHash: "x"}))

	users, err := repositories.NewCachedUsers(backing, 100)
	require.NoError(t, err)
	defer users.Close()

	// Admission is asynchronous; keep asking until a lookup skips the store.
	require.Eventually(t, func() bool {
		before := backing.byID.Load()
		u, err := users.GetUserByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Username)
		return backing.byID.Load() == before
	}, 2*time.Second, 5*time.Millisecond)

	// Callers get their own copy.
	u, err := users.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	u.Username = "mallory"
	again, err := users.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username)

	_, err = users.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	byEmail, err := users.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)
}

func TestCachedUsersHoldsFullCapacity(t *testing.T) {
	ctx := context.Background()
	backing := &countingUsers{DB: memory.New()}
	const n = 100
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("u%d", i)
		require.NoError(t, backing.CreateUser(ctx, &models.User{ID: id, Username: id, Email: id + "@example.com", PasswordHash: "x"}))
	}

	users, err := repositories.NewCachedUsers(backing, n)
	require.NoError(t, err)
	defer users.Close()

	for i := 0; i < n; i++ {
		_, err := users.GetUserByID(ctx, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
	}
	users.Wait()
	require.EqualValues(t, n, backing.byID.Load())

	for i := 0; i < n; i++ {
		_, err := users.GetUserByID(ctx, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
	}
	assert.EqualValues(t, n, backing.byID.Load(), "second pass should be served from the cache")
}
