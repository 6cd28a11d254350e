package postgres

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbembed "github.com/memohai/msgbridge/db"
	"github.com/memohai/msgbridge/internal/logger"
	"github.com/memohai/msgbridge/internal/storage"
)

// TestStoreAgainstPostgres runs only when TEST_POSTGRES_DSN points at a disposable database.
func TestStoreAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	schema, err := fs.ReadFile(dbembed.Migrations(), "0001_init.up.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	store := New(logger.Discard(), pool)
	userID := uuid.NewString()

	_, err = store.GetUser(ctx, userID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = store.MergeUser(ctx, userID, storage.Profile{
		Name:     storage.String("Ana"),
		Metadata: map[string]string{"a": "1", "b": "1"},
	})
	require.NoError(t, err)
	user, err := store.MergeUser(ctx, userID, storage.Profile{
		PhoneNumber: storage.String("5511999999999"),
		Metadata:    map[string]string{"b": "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, "5511999999999", user.PhoneNumber)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, user.Metadata)

	_, err = store.GetKV(ctx, userID, "#web-password")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	require.NoError(t, store.SetKV(ctx, userID, "#web-password", "x"))
	require.NoError(t, store.SetKV(ctx, userID, "#web-password", "y"))
	value, err := store.GetKV(ctx, userID, "#web-password")
	require.NoError(t, err)
	assert.Equal(t, "y", value)

	require.NoError(t, store.Track(ctx, userID, "message_received", map[string]any{"type": "text"}))
	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM events WHERE user_id = $1`, userID).Scan(&count))
	assert.Equal(t, 1, count)
}
