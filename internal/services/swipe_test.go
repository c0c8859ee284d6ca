package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"spark-backend/internal/apperr"
	"spark-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(users []*models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestLoadCandidatesFiltersDirectory(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "me", "f", "m")
	e.addUser(t, "m1", "m", "f")
	e.addUser(t, "m2", "m", "f")
	e.addUser(t, "m3", "m", "f")
	e.addUser(t, "f1", "f", "m")
	ctx := context.Background()

	_, err := e.swipes.RecordSwipe(ctx, "me", "m1", models.SwipePass)
	require.NoError(t, err)
	e.like(t, "m2", "me")
	_, err = e.matcher.LikeBack(ctx, "me", "m2")
	require.NoError(t, err)

	cands, err := e.swipes.LoadCandidates(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, []string{"m3"}, ids(cands))
	assert.Equal(t, []string{"m3"}, ids(e.swipes.Deck("me")))
}

func TestLoadCandidatesRequiresProfile(t *testing.T) {
	e := newTestEnv(t, false)

	_, err := e.swipes.LoadCandidates(context.Background(), "nobody")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestRecordSwipeRemovesCard(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "me", "f", "m")
	e.addUser(t, "m1", "m", "f")
	e.addUser(t, "m2", "m", "f")
	ctx := context.Background()

	_, err := e.swipes.LoadCandidates(ctx, "me")
	require.NoError(t, err)

	res, err := e.swipes.RecordSwipe(ctx, "me", "m1", models.SwipePass)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, models.SwipePass, res.Swipe.Type)
	assert.Equal(t, []string{"m2"}, ids(e.swipes.Deck("me")))
}

func TestFailedAppendKeepsCardRemoved(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "me", "f", "m")
	e.addUser(t, "m1", "m", "f")
	ctx := context.Background()

	_, err := e.swipes.LoadCandidates(ctx, "me")
	require.NoError(t, err)

	e.db.FailNext("swipes.Append", errors.New("connection reset"))
	_, err = e.swipes.RecordSwipe(ctx, "me", "m1", models.SwipeLike)

	assert.True(t, apperr.Is(err, apperr.Database))
	assert.Empty(t, e.swipes.Deck("me"), "optimistic removal is not rolled back")

	targets, err := e.stores.Swipes.TargetsOf(ctx, "me")
	require.NoError(t, err)
	assert.Empty(t, targets)

	// reloading the deck brings the card back
	cands, err := e.swipes.LoadCandidates(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids(cands))
}

func TestRecordSwipeValidation(t *testing.T) {
	e := newTestEnv(t, false)
	ctx := context.Background()

	tests := []struct {
		name   string
		target string
		kind   models.SwipeType
	}{
		{"unknown type", "x", models.SwipeType("superlike")},
		{"missing target", "", models.SwipeLike},
		{"self", "me", models.SwipeLike},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.swipes.RecordSwipe(ctx, "me", tt.target, tt.kind)
			assert.True(t, apperr.Is(err, apperr.InvalidInput))
		})
	}
}

func TestSwipesAreNotDeduplicated(t *testing.T) {
	e := newTestEnv(t, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := e.swipes.RecordSwipe(ctx, "a", "b", models.SwipePass)
		require.NoError(t, err)
	}
	_, err := e.swipes.RecordSwipe(ctx, "a", "b", models.SwipeLike)
	require.NoError(t, err)

	all := e.stores.Swipes.(interface{ All() []*models.Swipe }).All()
	assert.Len(t, all, 4)
}

func TestDeckIsBounded(t *testing.T) {
	d := NewDeck(2, time.Hour)
	card := []*models.User{{ID: "x"}}

	d.Set("a", card)
	d.Set("b", card)
	d.Set("c", card)

	assert.Equal(t, 2, d.Len())
	assert.Empty(t, d.Get("a"), "least recently loaded user is evicted")
	assert.Len(t, d.Get("c"), 1)
	assert.False(t, d.Remove("a", "x"))
}

func TestDeckEntriesExpire(t *testing.T) {
	d := NewDeck(10, 20*time.Millisecond)
	d.Set("a", []*models.User{{ID: "x"}})
	require.Len(t, d.Get("a"), 1)

	assert.Eventually(t, func() bool { return len(d.Get("a")) == 0 }, time.Second, 10*time.Millisecond)
}
