//go:build integration

package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/accord/internal/models"
	"github.com/BradenHooton/accord/internal/repositories"
)

func TestUserRepository_Constraints(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := repositories.NewUserRepository(testDB.Pool)

	email := UniqueEmail("constraints")
	created, err := repo.Create(ctx, &models.User{Email: email, Username: "ada"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = repo.Create(ctx, &models.User{Email: UniqueEmail("other"), Username: "ada"})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	_, err = repo.Create(ctx, &models.User{Email: email, Username: "someone_else"})
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.NotErrorIs(t, err, models.ErrUsernameTaken)

	found, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.False(t, found.HasSession())
}

func TestUserRepository_SwapRefreshTokenHash(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := repositories.NewUserRepository(testDB.Pool)

	user, err := repo.Create(ctx, &models.User{Email: UniqueEmail("swap"), Username: "swapper"})
	require.NoError(t, err)

	first := "hash-1"
	require.NoError(t, repo.SetRefreshTokenHash(ctx, user.ID, &first))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.SwapRefreshTokenHash(ctx, user.ID, first, "hash-next")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	require.NoError(t, repo.SetRefreshTokenHash(ctx, user.ID, nil))
	ok, err := repo.SwapRefreshTokenHash(ctx, user.ID, "hash-next", "hash-3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMagicCodeRepository_ConsumeOnce(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := repositories.NewMagicCodeRepository(testDB.Pool)
	email := UniqueEmail("consume")
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, &models.MagicCode{Email: email, Code: "abc123", ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now}))

	ok, err := repo.ConsumeIfMatch(ctx, email, "ffffff", now)
	require.NoError(t, err)
	assert.False(t, ok)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ConsumeIfMatch(ctx, email, "abc123", now)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMagicCodeRepository_ExpiryAndCleanup(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := repositories.NewMagicCodeRepository(testDB.Pool)
	email := UniqueEmail("expired")
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, &models.MagicCode{Email: email, Code: "abc123", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-11 * time.Minute)}))

	ok, err := repo.ConsumeIfMatch(ctx, email, "abc123", now)
	require.NoError(t, err)
	assert.False(t, ok)

	purged, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}
