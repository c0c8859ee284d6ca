package services

import (
	"context"
	"fmt"
	"testing"

	"spark-backend/internal/apperr"
	"spark-backend/internal/matching"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeWithoutReciprocalCreatesNoMatch(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "a", "f", "m")
	e.addUser(t, "b", "m", "f")

	res := e.like(t, "a", "b")

	assert.False(t, res.Matched)
	assert.Nil(t, res.Match)
	assert.Empty(t, e.matchesOf(t, "a"))

	state, err := e.matcher.PairState(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, matching.OneSidedLike, state)
}

func TestFailedMatchCreateLeavesMutualLike(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "a", "f", "m")
	e.addUser(t, "b", "m", "f")
	ctx := context.Background()

	e.like(t, "a", "b")
	e.db.FailNext("matches.Create", fmt.Errorf("connection reset"))
	_, err := e.swipes.RecordSwipe(ctx, "b", "a", models.SwipeLike)
	require.Error(t, err)

	state, err := e.matcher.PairState(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, matching.MutualLike, state)

	// a like back closes the gap
	m, err := e.matcher.LikeBack(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, m.Users)

	state, err = e.matcher.PairState(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, matching.Matched, state)
}

func TestReciprocalLikeCreatesExactlyOneMatch(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "a", "f", "m")
	e.addUser(t, "b", "m", "f")
	ctx := context.Background()

	e.like(t, "a", "b")
	res := e.like(t, "b", "a")

	require.True(t, res.Matched)
	require.NotNil(t, res.MatchedUser)
	assert.Equal(t, "a", res.MatchedUser.ID)
	assert.Equal(t, []string{"a", "b"}, res.Match.Users)
	assert.Empty(t, res.Match.SeenBy)
	assert.Nil(t, res.Match.LastMessage)

	// running reconciliation again reuses the same match
	again, err := e.matcher.Reconcile(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, matching.ActionReuse, again.Action)
	assert.Equal(t, res.Match.ID, again.Match.ID)

	// and so does a later like back from the other side
	back, err := e.matcher.LikeBack(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, res.Match.ID, back.ID)

	assert.Len(t, e.matchesOf(t, "a"), 1)
	assert.Len(t, e.matchesOf(t, "b"), 1)

	state, err := e.matcher.PairState(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, matching.Matched, state)
}

func TestMatchIsAnnouncedToBothUsers(t *testing.T) {
	e := newTestEnv(t, false)
	a := e.addUser(t, "a", "f", "m")
	e.addUser(t, "b", "m", "f")
	ctx := context.Background()
	tok := "device-a"
	require.NoError(t, e.stores.Users.UpdatePushToken(ctx, a.ID, &tok))

	m := e.matchPair(t, "a", "b")

	sent := e.pusher.Sent()
	require.Len(t, sent, 1, "only a registered a push token")
	assert.Equal(t, "device-a", sent[0].Token)
	assert.Equal(t, m.ID, sent[0].Data["match_id"])
	assert.Contains(t, sent[0].Body, "user b")
}

func TestLikeBackAppendsLikeAndCreatesMatch(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "u", "f", "m")
	e.addUser(t, "p", "m", "f")
	ctx := context.Background()

	e.like(t, "p", "u")

	m, err := e.matcher.LikeBack(ctx, "u", "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"p", "u"}, m.Users)

	liked, err := e.stores.Swipes.HasLike(ctx, "u", "p")
	require.NoError(t, err)
	assert.True(t, liked)

	likes, err := e.matcher.LikesReceived(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, likes)
}

func TestLikeBackValidation(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "u", "f", "m")
	ctx := context.Background()

	_, err := e.matcher.LikeBack(ctx, "u", "u")
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	_, err = e.matcher.LikeBack(ctx, "u", "ghost")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestLikeBackRequiresIncomingLike(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "u", "f", "m")
	e.addUser(t, "p", "m", "f")
	ctx := context.Background()

	// u likes p, but p never liked u
	e.like(t, "u", "p")

	_, err := e.matcher.LikeBack(ctx, "u", "p")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	assert.Empty(t, e.matchesOf(t, "u"))
	assert.Empty(t, e.matchesOf(t, "p"))
	assert.Len(t, e.stores.Swipes.(interface{ All() []*models.Swipe }).All(), 1, "no like is written")
	assert.Empty(t, e.pusher.Sent())
}

func TestLikesReceivedExcludesMatchedUsers(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "u", "f", "m")
	e.addUser(t, "c", "m", "f")
	e.addUser(t, "d", "m", "f")
	ctx := context.Background()

	e.like(t, "c", "u")
	e.like(t, "d", "u")
	_, err := e.matcher.LikeBack(ctx, "u", "d")
	require.NoError(t, err)
	// d keeps an outstanding like after matching
	e.like(t, "d", "u")

	likes, err := e.matcher.LikesReceived(ctx, "u")
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, "c", likes[0].ID)
}

func TestLikesReceivedBatchesLookupsInOrder(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "u", "f", "m")

	var want []string
	for i := 0; i < 23; i++ {
		id := fmt.Sprintf("liker-%02d", 22-i)
		e.addUser(t, id, "m", "f")
		e.like(t, id, "u")
		want = append(want, id)
	}
	// deleted profiles are skipped
	require.NoError(t, e.stores.Users.Delete(context.Background(), "liker-10"))
	want = append(want[:12:12], want[13:]...)

	likes, err := e.matcher.LikesReceived(context.Background(), "u")
	require.NoError(t, err)

	got := make([]string, 0, len(likes))
	for _, u := range likes {
		got = append(got, u.ID)
	}
	assert.Equal(t, want, got)
}

// staleMatches hides existing matches from ListForUser, like a read that
// raced with another instance's create
type staleMatches struct {
	repository.MatchStore
}

func (staleMatches) ListForUser(context.Context, string) ([]*models.Match, error) {
	return nil, nil
}

func racingMatcher(e *testEnv, deterministic bool) *MatchService {
	stores := *e.stores
	stores.Matches = staleMatches{e.stores.Matches}
	return NewMatchService(&stores, e.broker, e.broker, nil, e.clock, deterministic)
}

func TestDuplicateMatchRaceWithRandomIDs(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "a", "f", "m")
	e.addUser(t, "b", "m", "f")
	e.matchPair(t, "a", "b")

	d, err := racingMatcher(e, false).Reconcile(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, matching.ActionCreate, d.Action)
	assert.Len(t, e.matchesOf(t, "a"), 2, "random ids let the race produce a second match")

	chats, err := e.chat.ChatList(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, chats, 1, "the chat list still shows one entry per partner")
}

func TestDeterministicIDsTurnRaceIntoReuse(t *testing.T) {
	e := newTestEnv(t, true)
	e.addUser(t, "a", "f", "m")
	e.addUser(t, "b", "m", "f")
	first := e.matchPair(t, "a", "b")
	assert.Equal(t, matching.PairID("a", "b"), first.ID)

	d, err := racingMatcher(e, true).Reconcile(context.Background(), "b", "a")
	require.NoError(t, err)
	assert.Equal(t, matching.ActionReuse, d.Action)
	assert.Equal(t, first.ID, d.Match.ID)
	assert.Len(t, e.matchesOf(t, "a"), 1)
}

func TestWatchLikesReloadsOnNewLike(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "u", "f", "m")
	e.addUser(t, "c", "m", "f")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := e.matcher.WatchLikes(ctx, "u")
	defer sub.Close()

	assert.Empty(t, recv(t, sub))

	e.like(t, "c", "u")
	likes := recv(t, sub)
	require.Len(t, likes, 1)
	assert.Equal(t, "c", likes[0].ID)
}
