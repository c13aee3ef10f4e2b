//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/BradenHooton/accord/internal/models"
	"github.com/BradenHooton/accord/internal/repositories/mongostore"
)

func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)

	client, err := mongo.Connect(options.Client().ApplyURI(fmt.Sprintf("mongodb://%s:%s", host, port.Port())))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	db := client.Database("accord_test")
	require.NoError(t, mongostore.EnsureIndexes(ctx, db))
	return db
}

func TestMongoStores(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()
	users := mongostore.NewUserStore(db)
	codes := mongostore.NewMagicCodeStore(db)

	t.Run("user constraints", func(t *testing.T) {
		email := UniqueEmail("mongo")
		created, err := users.Create(ctx, &models.User{Email: email, Username: "mongo_ada", IsOAuthAccount: true})
		require.NoError(t, err)

		_, err = users.Create(ctx, &models.User{Email: UniqueEmail("mongo2"), Username: "mongo_ada"})
		assert.ErrorIs(t, err, models.ErrUsernameTaken)

		_, err = users.Create(ctx, &models.User{Email: email, Username: "mongo_other"})
		assert.ErrorIs(t, err, models.ErrConflict)

		found, err := users.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, found.IsOAuthAccount)
	})

	t.Run("refresh hash swap", func(t *testing.T) {
		created, err := users.Create(ctx, &models.User{Email: UniqueEmail("swap"), Username: "mongo_swap"})
		require.NoError(t, err)

		first := "h1"
		require.NoError(t, users.SetRefreshTokenHash(ctx, created.ID, &first))

		ok, err := users.SwapRefreshTokenHash(ctx, created.ID, "h1", "h2")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = users.SwapRefreshTokenHash(ctx, created.ID, "h1", "h3")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("magic code consume", func(t *testing.T) {
		email := UniqueEmail("mongo-code")
		now := time.Now().UTC()
		require.NoError(t, codes.Upsert(ctx, &models.MagicCode{Email: email, Code: "a1b2c3", ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now}))

		ok, err := codes.ConsumeIfMatch(ctx, email, "ffffff", now)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = codes.ConsumeIfMatch(ctx, email, "a1b2c3", now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = codes.ConsumeIfMatch(ctx, email, "a1b2c3", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
