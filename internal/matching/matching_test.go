package matching

import (
	"testing"
	"time"

	"spark-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func like(from, to string) *models.Swipe {
	return &models.Swipe{SwiperID: from, TargetID: to, Type: models.SwipeLike}
}

func pass(from, to string) *models.Swipe {
	return &models.Swipe{SwiperID: from, TargetID: to, Type: models.SwipePass}
}

func strPtr(s string) *string { return &s }

func TestSortedPair(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SortedPair("b", "a"))
	assert.Equal(t, []string{"a", "b"}, SortedPair("a", "b"))
}

func TestPairIDOrderIndependent(t *testing.T) {
	assert.Equal(t, PairID("alice", "bob"), PairID("bob", "alice"))
	assert.NotEqual(t, PairID("alice", "bob"), PairID("alice", "carol"))
}

func TestHasReciprocalLike(t *testing.T) {
	swipes := []*models.Swipe{like("a", "b"), pass("b", "a")}
	assert.False(t, HasReciprocalLike(swipes, "a", "b"), "a pass is not a like")

	swipes = append(swipes, like("b", "a"))
	assert.True(t, HasReciprocalLike(swipes, "a", "b"))
	assert.False(t, HasReciprocalLike(swipes, "a", "c"))
}

func TestReconcile(t *testing.T) {
	existing := &models.Match{ID: "m1", Users: []string{"a", "b"}}
	other := &models.Match{ID: "m2", Users: []string{"a", "c"}}

	d := Reconcile(false, []*models.Match{existing}, "a", "b")
	assert.Equal(t, ActionNone, d.Action)

	d = Reconcile(true, []*models.Match{other}, "a", "b")
	assert.Equal(t, ActionCreate, d.Action)
	assert.Nil(t, d.Match)

	d = Reconcile(true, []*models.Match{other, existing}, "a", "b")
	require.Equal(t, ActionReuse, d.Action)
	assert.Equal(t, "m1", d.Match.ID)
}

func TestFindExistingFirstDuplicateWins(t *testing.T) {
	matches := []*models.Match{
		{ID: "dup1", Users: []string{"a", "b"}},
		{ID: "dup2", Users: []string{"a", "b"}},
	}
	assert.Equal(t, "dup1", FindExisting(matches, "b", "a").ID)
}

func TestNewMatchSortsUsers(t *testing.T) {
	now := time.Unix(100, 0)
	m := NewMatch("id", "zed", "amy", now)

	assert.Equal(t, []string{"amy", "zed"}, m.Users)
	assert.Empty(t, m.SeenBy)
	assert.NotNil(t, m.SeenBy)
	assert.Nil(t, m.LastMessage)
	assert.Equal(t, now, m.CreatedAt)
}

func TestPendingLikersExcludesMatched(t *testing.T) {
	likes := []*models.Swipe{
		like("x", "u"),
		like("y", "u"),
		like("x", "u"),
		like("z", "u"),
		pass("w", "u"),
	}
	matches := []*models.Match{{ID: "m", Users: []string{"u", "y"}}}

	assert.Equal(t, []string{"x", "z"}, PendingLikers(likes, matches, "u"))
}

func TestChunk(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}
	chunks := Chunk(ids, 10)

	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 10)
	assert.Equal(t, []string{"11", "12"}, chunks[1])
	assert.Empty(t, Chunk(nil, 10))
}

func TestCandidates(t *testing.T) {
	pool := []*models.User{{ID: "me"}, {ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	matches := []*models.Match{{Users: []string{"c", "me"}}}

	got := Candidates(pool, "me", []string{"a"}, matches)

	var ids []string
	for _, u := range got {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"b", "d"}, ids)
}

func TestIsUnread(t *testing.T) {
	m := &models.Match{Users: []string{"a", "b"}}
	assert.False(t, IsUnread(m, "a"), "no messages means nothing unread")
	assert.False(t, IsUnread(m, "b"))
	assert.Equal(t, ChatPlaceholder, Preview(m))

	m = ApplyMessage(m, "a", "hi", time.Unix(10, 0))
	assert.False(t, IsUnread(m, "a"), "sender never has unread")
	assert.True(t, IsUnread(m, "b"))
	assert.Equal(t, "hi", Preview(m))

	m = ApplySeen(m, "b")
	assert.False(t, IsUnread(m, "b"))
}

func TestApplyMessageResetsSeenBy(t *testing.T) {
	m := &models.Match{Users: []string{"a", "b"}, SeenBy: []string{"a", "b"}}
	out := ApplyMessage(m, "b", "yo", time.Unix(5, 0))

	assert.Equal(t, []string{"b"}, out.SeenBy)
	assert.Equal(t, "b", *out.LastMessageSenderID)
	assert.Equal(t, "yo", *out.LastMessage)
	assert.Equal(t, []string{"a", "b"}, m.SeenBy, "input is not mutated")
}

func TestApplySeenIsUnion(t *testing.T) {
	m := &models.Match{SeenBy: []string{"a"}}

	out := ApplySeen(m, "b")
	assert.Equal(t, []string{"a", "b"}, out.SeenBy)

	out = ApplySeen(out, "b")
	assert.Equal(t, []string{"a", "b"}, out.SeenBy)
}

func TestNormalizeMessage(t *testing.T) {
	txt, ok := NormalizeMessage("  hello \n")
	assert.True(t, ok)
	assert.Equal(t, "hello", txt)

	_, ok = NormalizeMessage(" \t\n ")
	assert.False(t, ok)
}

func TestChatListOrderingAndDedupe(t *testing.T) {
	t1 := time.Unix(100, 0)
	t2 := time.Unix(200, 0)

	matches := []*models.Match{
		{ID: "m-empty", Users: []string{"me", "p3"}},
		{ID: "m-old", Users: []string{"me", "p1"}, LastMessageTimestamp: &t1, LastMessage: strPtr("old"), LastMessageSenderID: strPtr("p1")},
		{ID: "m-new", Users: []string{"me", "p2"}, LastMessageTimestamp: &t2, LastMessage: strPtr("new"), LastMessageSenderID: strPtr("me")},
		{ID: "m-dup", Users: []string{"me", "p1"}},
		{ID: "m-ghost", Users: []string{"me", "gone"}, LastMessageTimestamp: &t2},
	}
	partners := map[string]*models.User{
		"p1": {ID: "p1"}, "p2": {ID: "p2"}, "p3": {ID: "p3"},
	}

	list := ChatList(matches, partners, "me")

	require.Len(t, list, 3)
	assert.Equal(t, "m-new", list[0].Match.ID)
	assert.Equal(t, "m-old", list[1].Match.ID)
	assert.Equal(t, "m-empty", list[2].Match.ID)
	assert.True(t, list[1].Unread)
	assert.False(t, list[0].Unread)
	assert.Equal(t, ChatPlaceholder, list[2].Preview)
	assert.Equal(t, 1, UnreadCount(matches, "me"))
}

func TestSortByActivityTieBreak(t *testing.T) {
	matches := []*models.Match{{ID: "b"}, {ID: "a"}, {ID: "c"}}
	SortByActivity(matches)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)
	assert.Equal(t, "c", matches[2].ID)
}

func TestStateOf(t *testing.T) {
	var swipes []*models.Swipe
	assert.Equal(t, NoInteraction, StateOf(swipes, nil, "a", "b", "a"))

	swipes = append(swipes, like("a", "b"))
	assert.Equal(t, OneSidedLike, StateOf(swipes, nil, "a", "b", "a"))
	assert.Equal(t, OneSidedLike, StateOf(swipes, nil, "a", "b", "b"))

	// both likes recorded but the match was never written
	swipes = append(swipes, like("b", "a"))
	assert.Equal(t, MutualLike, StateOf(swipes, nil, "a", "b", "a"))
	assert.Equal(t, "mutual_like", MutualLike.String())

	m := NewMatch("m", "a", "b", time.Unix(1, 0))
	assert.Equal(t, Matched, StateOf(swipes, []*models.Match{m}, "a", "b", "a"))

	m = ApplyMessage(m, "a", "hey", time.Unix(2, 0))
	assert.Equal(t, Conversing, StateOf(swipes, []*models.Match{m}, "a", "b", "a"))
	assert.Equal(t, Unseen, StateOf(swipes, []*models.Match{m}, "a", "b", "b"))

	m = ApplySeen(m, "b")
	assert.Equal(t, Conversing, StateOf(swipes, []*models.Match{m}, "a", "b", "b"))
}
