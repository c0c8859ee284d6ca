package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"spark-backend/internal/changefeed"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"
	"spark-backend/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

// stepClock returns a fixed start time advanced by one second per call
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeUploader struct {
	mu     sync.Mutex
	calls  []string
	failOn int // 1-based call number that fails; 0 never fails
}

func (u *fakeUploader) Upload(_ context.Context, userID string, photo PhotoFile) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, photo.Filename)
	if u.failOn == len(u.calls) {
		return "", errors.New("status 500")
	}
	return fmt.Sprintf("https://cdn.test/%s/%s", userID, photo.Filename), nil
}

type sentPush struct {
	Token string
	PushNotification
}

type fakePusher struct {
	mu   sync.Mutex
	sent []sentPush
}

func (p *fakePusher) Push(_ context.Context, token string, n PushNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentPush{Token: token, PushNotification: n})
	return nil
}

func (p *fakePusher) Sent() []sentPush {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentPush(nil), p.sent...)
}

type testEnv struct {
	db       *memory.DB
	stores   *repository.Stores
	broker   *changefeed.Broker
	clock    *stepClock
	pusher   *fakePusher
	uploader *fakeUploader
	deck     *Deck

	users    *UserService
	profiles *ProfileService
	matcher  *MatchService
	swipes   *SwipeService
	chat     *ChatService
}

func newTestEnv(t *testing.T, deterministicIDs bool) *testEnv {
	t.Helper()

	db := memory.New()
	e := &testEnv{
		db:       db,
		stores:   db.Stores(),
		broker:   changefeed.NewBroker(),
		clock:    newStepClock(),
		pusher:   &fakePusher{},
		uploader: &fakeUploader{},
		deck:     NewDeck(100, time.Hour),
	}

	announcer := NewAnnouncer(NewWSHub(), e.stores.Users, NewNotifier(e.stores.Users, e.pusher))
	e.users = NewUserService(e.stores, e.broker, e.deck, e.clock, "test-secret", 30)
	e.profiles = NewProfileService(e.stores, e.uploader, e.broker, e.clock)
	e.matcher = NewMatchService(e.stores, e.broker, e.broker, announcer, e.clock, deterministicIDs)
	e.swipes = NewSwipeService(e.stores, e.matcher, e.deck, e.broker, e.clock)
	e.chat = NewChatService(e.stores, e.broker, e.broker, announcer, e.clock)
	return e
}

func (e *testEnv) addUser(t *testing.T, id, gender, interestedIn string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           id,
		Name:         "user " + id,
		Gender:       gender,
		Birthday:     "01/01/1995",
		InterestedIn: interestedIn,
		Photos:       []string{"https://cdn.test/" + id + ".jpg"},
		CreatedAt:    e.clock.Now(),
	}
	require.NoError(t, e.stores.Users.Save(context.Background(), u))
	return u
}

func (e *testEnv) like(t *testing.T, from, to string) *SwipeResult {
	t.Helper()
	res, err := e.swipes.RecordSwipe(context.Background(), from, to, models.SwipeLike)
	require.NoError(t, err)
	return res
}

func (e *testEnv) matchPair(t *testing.T, a, b string) *models.Match {
	t.Helper()
	e.like(t, a, b)
	res := e.like(t, b, a)
	require.True(t, res.Matched)
	return res.Match
}

func (e *testEnv) matchesOf(t *testing.T, userID string) []*models.Match {
	t.Helper()
	ms, err := e.stores.Matches.ListForUser(context.Background(), userID)
	require.NoError(t, err)
	return ms
}

func recv[T any](t *testing.T, sub *changefeed.Subscription[T]) T {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		require.NoError(t, snap.Err)
		return snap.Value
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}
