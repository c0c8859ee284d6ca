// Package storetest holds behaviour every repository driver must share.
// Driver packages run it from their own tests; the database-backed drivers
// skip unless a connection string is set in the environment.
package storetest

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Environment variables that enable the database-backed runs
const (
	PostgresEnv = "SPARK_TEST_DATABASE_URL"
	MongoEnv    = "SPARK_TEST_MONGO_URI"
)

// RequireEnv returns the value of name or skips the test
func RequireEnv(t *testing.T, name string) string {
	t.Helper()
	v := os.Getenv(name)
	if v == "" {
		t.Skipf("%s not set", name)
	}
	return v
}

// newMatch creates a match with fresh ids so runs against a shared
// database never collide
func newMatch(t *testing.T, ctx context.Context, stores *repository.Stores) (*models.Match, string, string) {
	t.Helper()
	a, b := "u-"+uuid.NewString(), "u-"+uuid.NewString()
	m := &models.Match{
		ID:        uuid.NewString(),
		Users:     []string{a, b},
		SeenBy:    []string{},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, stores.Matches.Create(ctx, m))
	t.Cleanup(func() {
		_, _ = stores.Matches.DeleteForUser(context.Background(), a)
	})
	return m, a, b
}

// RunMatchStore exercises the seen-by and summary updates of a MatchStore
func RunMatchStore(t *testing.T, stores *repository.Stores) {
	t.Run("MarkSeenIsSetUnion", func(t *testing.T) {
		ctx := context.Background()
		m, a, b := newMatch(t, ctx, stores)

		require.NoError(t, stores.Matches.MarkSeen(ctx, m.ID, a))
		require.NoError(t, stores.Matches.MarkSeen(ctx, m.ID, a))

		got, err := stores.Matches.GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{a}, got.SeenBy)

		// concurrent opens by both users never duplicate or lose an entry
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); assert.NoError(t, stores.Matches.MarkSeen(ctx, m.ID, a)) }()
			go func() { defer wg.Done(); assert.NoError(t, stores.Matches.MarkSeen(ctx, m.ID, b)) }()
		}
		wg.Wait()

		got, err = stores.Matches.GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a, b}, got.SeenBy)
	})

	t.Run("MarkSeenUnknownMatch", func(t *testing.T) {
		err := stores.Matches.MarkSeen(context.Background(), "missing-"+uuid.NewString(), "x")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("UpdateSummaryResetsSeenBy", func(t *testing.T) {
		ctx := context.Background()
		m, a, b := newMatch(t, ctx, stores)
		require.NoError(t, stores.Matches.MarkSeen(ctx, m.ID, a))
		require.NoError(t, stores.Matches.MarkSeen(ctx, m.ID, b))

		ts := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, stores.Matches.UpdateSummary(ctx, m.ID, "hello", ts, b))

		got, err := stores.Matches.GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{b}, got.SeenBy)
		require.NotNil(t, got.LastMessage)
		assert.Equal(t, "hello", *got.LastMessage)
		require.NotNil(t, got.LastMessageSenderID)
		assert.Equal(t, b, *got.LastMessageSenderID)
		require.NotNil(t, got.LastMessageTimestamp)
		assert.WithinDuration(t, ts, *got.LastMessageTimestamp, time.Millisecond)

		// the recipient opening the chat joins the sender
		require.NoError(t, stores.Matches.MarkSeen(ctx, m.ID, a))
		got, err = stores.Matches.GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a, b}, got.SeenBy)
	})

	t.Run("UpdateSummaryUnknownMatch", func(t *testing.T) {
		err := stores.Matches.UpdateSummary(context.Background(), "missing-"+uuid.NewString(), "x", time.Now(), "x")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("CreateDuplicateID", func(t *testing.T) {
		ctx := context.Background()
		m, _, _ := newMatch(t, ctx, stores)
		err := stores.Matches.Create(ctx, &models.Match{ID: m.ID, Users: m.Users, SeenBy: []string{}, CreatedAt: m.CreatedAt})
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})
}
