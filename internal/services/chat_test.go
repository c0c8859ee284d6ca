package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"spark-backend/internal/apperr"
	"spark-backend/internal/matching"
	"spark-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMatchedEnv(t *testing.T) (*testEnv, *models.Match) {
	t.Helper()
	e := newTestEnv(t, false)
	e.addUser(t, "a", "f", "m")
	e.addUser(t, "b", "m", "f")
	return e, e.matchPair(t, "a", "b")
}

func (e *testEnv) match(t *testing.T, id string) *models.Match {
	t.Helper()
	m, err := e.stores.Matches.GetByID(context.Background(), id)
	require.NoError(t, err)
	return m
}

func TestNewMatchHasPlaceholderAndNoUnread(t *testing.T) {
	e, m := newMatchedEnv(t)
	ctx := context.Background()

	for _, u := range []string{"a", "b"} {
		list, err := e.chat.ChatList(ctx, u)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.False(t, list[0].Unread)
		assert.Equal(t, matching.ChatPlaceholder, list[0].Preview)
		assert.Equal(t, m.ID, list[0].Match.ID)

		n, err := e.chat.UnreadCount(ctx, u)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}

func TestSendMessageUpdatesSummary(t *testing.T) {
	e, m := newMatchedEnv(t)
	ctx := context.Background()

	require.NoError(t, e.chat.MarkSeen(ctx, "b", m.ID))

	msg, err := e.chat.SendMessage(ctx, "a", m.ID, "  hello there \n")
	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Text)

	got := e.match(t, m.ID)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, "hello there", *got.LastMessage)
	assert.Equal(t, "a", *got.LastMessageSenderID)
	assert.Equal(t, msg.Timestamp, *got.LastMessageTimestamp)
	assert.Equal(t, []string{"a"}, got.SeenBy, "previous readers are dropped")

	assert.True(t, matching.IsUnread(got, "b"))
	assert.False(t, matching.IsUnread(got, "a"))

	n, err := e.chat.UnreadCount(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSendBlankMessageIsNoop(t *testing.T) {
	e, m := newMatchedEnv(t)
	ctx := context.Background()

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := e.chat.SendMessage(ctx, "a", m.ID, text)
		assert.ErrorIs(t, err, ErrBlankMessage)
	}

	msgs, err := e.chat.Messages(ctx, "a", m.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	got := e.match(t, m.ID)
	assert.Nil(t, got.LastMessage)
	assert.Nil(t, got.LastMessageSenderID)
	assert.Nil(t, got.LastMessageTimestamp)
	assert.Empty(t, got.SeenBy)
}

func TestSendMessageKeepsMessageWhenSummaryFails(t *testing.T) {
	e, m := newMatchedEnv(t)
	ctx := context.Background()

	e.db.FailNext("matches.UpdateSummary", errors.New("timeout"))
	msg, err := e.chat.SendMessage(ctx, "a", m.ID, "hi")

	require.NotNil(t, msg)
	assert.True(t, apperr.Is(err, apperr.Database))

	msgs, err := e.chat.Messages(ctx, "b", m.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Nil(t, e.match(t, m.ID).LastMessage)
}

func TestSendMessageRequiresMembership(t *testing.T) {
	e, m := newMatchedEnv(t)
	ctx := context.Background()

	_, err := e.chat.SendMessage(ctx, "intruder", m.ID, "hi")
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	_, err = e.chat.SendMessage(ctx, "a", "missing", "hi")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestMessagePushesRecipient(t *testing.T) {
	e, m := newMatchedEnv(t)
	ctx := context.Background()
	tok := "device-b"
	require.NoError(t, e.stores.Users.UpdatePushToken(ctx, "b", &tok))

	_, err := e.chat.SendMessage(ctx, "a", m.ID, "hey")
	require.NoError(t, err)

	sent := e.pusher.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "device-b", sent[0].Token)
	assert.Equal(t, "user a", sent[0].Title)
	assert.Equal(t, "hey", sent[0].Body)
}

func TestOpenConversationMarksSeenAndStreams(t *testing.T) {
	e, m := newMatchedEnv(t)
	ctx := context.Background()

	_, err := e.chat.SendMessage(ctx, "a", m.ID, "first")
	require.NoError(t, err)

	conv, err := e.chat.OpenConversation(ctx, "b", m.ID)
	require.NoError(t, err)
	defer conv.Close()

	require.NotNil(t, conv.Partner)
	assert.Equal(t, "a", conv.Partner.ID)
	assert.ElementsMatch(t, []string{"a", "b"}, conv.Match.SeenBy)

	stored := e.match(t, m.ID)
	assert.ElementsMatch(t, []string{"a", "b"}, stored.SeenBy, "seen-by is a union")
	assert.False(t, matching.IsUnread(stored, "b"))

	msgs := recv(t, conv.Messages)
	require.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0].Text)

	_, err = e.chat.SendMessage(ctx, "b", m.ID, "second")
	require.NoError(t, err)

	msgs = recv(t, conv.Messages)
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"first", "second"}, []string{msgs[0].Text, msgs[1].Text})
}

func TestCloseConversationStopsStreamWithoutSeenChange(t *testing.T) {
	e, m := newMatchedEnv(t)
	ctx := context.Background()

	conv, err := e.chat.OpenConversation(ctx, "a", m.ID)
	require.NoError(t, err)
	recv(t, conv.Messages)
	conv.Close()

	select {
	case <-conv.Messages.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription still running")
	}

	_, err = e.chat.SendMessage(ctx, "b", m.ID, "after close")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, e.match(t, m.ID).SeenBy)
}

func TestOpenConversationForbiddenForOutsiders(t *testing.T) {
	e, m := newMatchedEnv(t)

	_, err := e.chat.OpenConversation(context.Background(), "c", m.ID)
	assert.True(t, apperr.Is(err, apperr.Forbidden))
}

func TestOpenConversationFailsWhenMarkSeenFails(t *testing.T) {
	e, m := newMatchedEnv(t)

	e.db.FailNext("matches.MarkSeen", errors.New("down"))
	_, err := e.chat.OpenConversation(context.Background(), "a", m.ID)
	assert.True(t, apperr.Is(err, apperr.Database))
}

func TestChatListOrdersByLastMessage(t *testing.T) {
	e := newTestEnv(t, false)
	e.addUser(t, "me", "f", "m")
	for _, id := range []string{"p1", "p2", "p3"} {
		e.addUser(t, id, "m", "f")
	}
	ctx := context.Background()

	m1 := e.matchPair(t, "me", "p1")
	e.matchPair(t, "me", "p2")
	m3 := e.matchPair(t, "me", "p3")

	_, err := e.chat.SendMessage(ctx, "p1", m1.ID, "older")
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	_, err = e.chat.SendMessage(ctx, "me", m3.ID, "newer")
	require.NoError(t, err)

	list, err := e.chat.ChatList(ctx, "me")
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "p3", list[0].User.ID)
	assert.False(t, list[0].Unread, "own message is never unread")
	assert.Equal(t, "newer", list[0].Preview)

	assert.Equal(t, "p1", list[1].User.ID)
	assert.True(t, list[1].Unread)

	assert.Equal(t, "p2", list[2].User.ID)
	assert.Equal(t, matching.ChatPlaceholder, list[2].Preview)
}

func TestChatListSkipsMissingPartners(t *testing.T) {
	e, _ := newMatchedEnv(t)
	ctx := context.Background()

	require.NoError(t, e.stores.Users.Delete(ctx, "b"))

	list, err := e.chat.ChatList(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWatchChatListFollowsMessages(t *testing.T) {
	e, m := newMatchedEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := e.chat.WatchChatList(ctx, "b")
	defer sub.Close()

	first := recv(t, sub)
	require.Len(t, first, 1)
	assert.False(t, first[0].Unread)

	_, err := e.chat.SendMessage(context.Background(), "a", m.ID, "ping")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case snap := <-sub.C:
			return len(snap.Value) == 1 && snap.Value[0].Unread && snap.Value[0].Preview == "ping"
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
