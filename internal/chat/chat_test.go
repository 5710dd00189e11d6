package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/classroom-chat/internal/data"
	"github.com/PaulBabatuyi/classroom-chat/internal/events"
	"github.com/PaulBabatuyi/classroom-chat/internal/feed"
	"github.com/PaulBabatuyi/classroom-chat/internal/moderation"
)

var (
	alice = Identity{UserID: "alice", TenantID: "school", Name: "Alice"}
	bob   = Identity{UserID: "bob", TenantID: "school", Name: "Bob"}
	carol = Identity{UserID: "carol", TenantID: "school", Name: "Carol"}
	dave  = Identity{UserID: "dave", TenantID: "school", Name: "Dave"}
)

type recordingAlerts struct {
	mu     sync.Mutex
	alerts []events.Alert
	err    error
}

func (r *recordingAlerts) PublishAlert(_ context.Context, a events.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recordingAlerts) Close() error { return nil }

func (r *recordingAlerts) all() []events.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Alert(nil), r.alerts...)
}

type recordingNotices struct {
	ch chan Notice
}

func (r *recordingNotices) Notify(userID string, n Notice) {
	n.ID = userID + ":" + n.ID
	r.ch <- n
}

func newTestService(t *testing.T, opts Options) (*Service, *data.MemoryStore) {
	t.Helper()
	store := data.NewMemoryStore(feed.NewBroker(), nil)
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	s := NewService(store, opts)
	t.Cleanup(func() { _ = s.Wait(context.Background()) })
	return s, store
}

func TestResolveDirect_IsSymmetric(t *testing.T) {
	pairs := [][2]string{{"alice", "bob"}, {"z", "a"}, {"u1", "u10"}}
	for _, p := range pairs {
		assert.Equal(t, ResolveDirect(p[0], p[1]), ResolveDirect(p[1], p[0]))
	}
	assert.Equal(t, "alice_bob", ResolveDirect("bob", "alice"))
}

func TestKindOf(t *testing.T) {
	k, other := kindOf(alice, "alice_bob")
	assert.Equal(t, data.KindDirect, k)
	assert.Equal(t, "bob", other)

	k, other = kindOf(bob, "alice_bob")
	assert.Equal(t, data.KindDirect, k)
	assert.Equal(t, "alice", other)

	k, _ = kindOf(carol, "alice_bob")
	assert.Equal(t, data.KindGroup, k)

	k, _ = kindOf(alice, "school")
	assert.Equal(t, data.KindGeneral, k)

	// not in canonical order, so not a direct room id
	k, _ = kindOf(bob, "bob_alice")
	assert.Equal(t, data.KindGroup, k)
}

func TestIsUnread(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	room := &data.Room{UpdatedAt: t0}
	assert.True(t, IsUnread(room, "bob"), "activity but never opened")

	assert.False(t, IsUnread(&data.Room{}, "bob"), "no activity at all")

	room.LastMessage = &data.LastMessage{SenderID: "bob", Timestamp: t0}
	assert.False(t, IsUnread(room, "bob"), "own message")

	room.LastMessage.SenderID = "alice"
	room.LastSeen = map[string]time.Time{"bob": t0}
	assert.False(t, IsUnread(room, "bob"))

	room.UpdatedAt = t0.Add(time.Millisecond)
	assert.True(t, IsUnread(room, "bob"))
}

func TestScenario_DirectSendMarkReadSendAgain(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, room, err := s.Send(ctx, alice, Target{ToUserID: "bob"}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "alice_bob", room.ID)
	assert.Equal(t, "hi", room.LastMessage.Text)
	assert.True(t, IsUnread(room, "bob"))
	assert.False(t, IsUnread(room, "alice"))

	room, err = s.MarkRead(ctx, bob, "alice_bob", time.Time{})
	require.NoError(t, err)
	assert.False(t, IsUnread(room, "bob"))

	_, room, err = s.Send(ctx, alice, Target{RoomID: "alice_bob"}, "still there?")
	require.NoError(t, err)
	assert.True(t, IsUnread(room, "bob"))
	assert.False(t, IsUnread(room, "alice"))

	// bob replies through the room id
	_, room, err = s.Send(ctx, bob, Target{RoomID: "alice_bob"}, "yes")
	require.NoError(t, err)
	assert.False(t, IsUnread(room, "bob"))
	assert.True(t, IsUnread(room, "alice"))
}

func TestSend_LastMessageMatchesNewestMessage(t *testing.T) {
	s, store := newTestService(t, Options{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _, err := s.Send(ctx, alice, Target{RoomID: "school"}, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	room, err := store.GetRoom(ctx, "school")
	require.NoError(t, err)
	log, err := store.ListMessages(ctx, "school")
	require.NoError(t, err)

	require.Len(t, log, 4)
	assert.True(t, room.LastMessage.Timestamp.Equal(log[len(log)-1].CreatedAt))
	assert.Equal(t, "m3", room.LastMessage.Text)
	assert.Equal(t, data.KindGeneral, room.Kind)
}

func TestSend_Validation(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, _, err := s.Send(ctx, alice, Target{ToUserID: "bob"}, "   ")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = s.Send(ctx, alice, Target{ToUserID: "alice"}, "me")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = s.Send(ctx, alice, Target{}, "where")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSend_GroupRequiresMembership(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, alice, "Study group")
	require.NoError(t, err)

	_, _, err = s.Send(ctx, bob, Target{RoomID: g.ID}, "let me in")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = s.Send(ctx, bob, Target{RoomID: "no-such-group"}, "hello?")
	assert.ErrorIs(t, err, ErrRoomUnavailable)
}

func TestScenario_ConcurrentInviteJoins(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, alice, "Lab")
	require.NoError(t, err)
	assert.False(t, IsUnread(g, "alice"), "a fresh group is not unread for its owner")

	var wg sync.WaitGroup
	for _, who := range []Identity{bob, carol, bob, carol} {
		wg.Add(1)
		go func(who Identity) {
			defer wg.Done()
			_, err := s.JoinGroup(ctx, who, g.ID)
			assert.NoError(t, err)
		}(who)
	}
	wg.Wait()

	room, err := s.JoinGroup(ctx, bob, g.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, room.Participants)
}

func TestJoinGroup_NotFound(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := s.JoinGroup(ctx, bob, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = s.Send(ctx, alice, Target{ToUserID: "bob"}, "hi")
	require.NoError(t, err)
	_, err = s.JoinGroup(ctx, carol, "alice_bob")
	assert.ErrorIs(t, err, ErrNotFound, "direct rooms cannot be joined")

	g, err := s.CreateGroup(ctx, alice, "Lab")
	require.NoError(t, err)
	outsider := Identity{UserID: "eve", TenantID: "other-school"}
	_, err = s.JoinGroup(ctx, outsider, g.ID)
	assert.ErrorIs(t, err, ErrNotFound, "invite links do not cross tenants")
}

func TestLeaveGroup(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, alice, "Lab")
	require.NoError(t, err)
	_, err = s.JoinGroup(ctx, bob, g.ID)
	require.NoError(t, err)

	_, err = s.LeaveGroup(ctx, alice, g.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	room, err := s.LeaveGroup(ctx, bob, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, room.Participants)
}

func TestDeleteGroup(t *testing.T) {
	s, store := newTestService(t, Options{})
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, alice, "Lab")
	require.NoError(t, err)
	_, err = s.JoinGroup(ctx, bob, g.ID)
	require.NoError(t, err)
	_, _, err = s.Send(ctx, bob, Target{RoomID: g.ID}, "hello")
	require.NoError(t, err)

	err = s.DeleteGroup(ctx, bob, g.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, s.DeleteGroup(ctx, alice, g.ID))

	_, err = store.GetRoom(ctx, g.ID)
	assert.ErrorIs(t, err, data.ErrNotFound)
	log, err := store.ListMessages(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, log, "message log is deleted with the group")

	// a participant still in the room view sends after the delete
	_, _, err = s.Send(ctx, bob, Target{RoomID: g.ID}, "anyone?")
	assert.ErrorIs(t, err, ErrRoomUnavailable)
	log, err = store.ListMessages(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, log, "no partially written room")
}

type failingDeleteMessages struct {
	data.Store
}

func (failingDeleteMessages) DeleteMessages(context.Context, string) (int64, error) {
	return 0, errors.New("disk on fire")
}

func TestDeleteGroup_OrphanedLogIsNotAnError(t *testing.T) {
	store := failingDeleteMessages{data.NewMemoryStore(nil, nil)}
	s := NewService(store, Options{})
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, alice, "Lab")
	require.NoError(t, err)
	require.NoError(t, s.DeleteGroup(ctx, alice, g.ID))
}

// deleteOnCommit removes a group just before a send to it commits.
type deleteOnCommit struct {
	data.Store
	roomID string
}

func (d *deleteOnCommit) CommitSend(ctx context.Context, b data.SendBatch) (*data.Message, *data.Room, error) {
	if b.RoomID == d.roomID {
		if _, err := d.Store.DeleteRoom(ctx, b.RoomID); err != nil {
			return nil, nil, err
		}
		if _, err := d.Store.DeleteMessages(ctx, b.RoomID); err != nil {
			return nil, nil, err
		}
	}
	return d.Store.CommitSend(ctx, b)
}

func TestSend_GroupDeletedWhileSending(t *testing.T) {
	mem := data.NewMemoryStore(nil, nil)
	store := &deleteOnCommit{Store: mem}
	s := NewService(store, Options{})
	t.Cleanup(func() { _ = s.Wait(context.Background()) })
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, alice, "Lab")
	require.NoError(t, err)
	_, err = s.JoinGroup(ctx, bob, g.ID)
	require.NoError(t, err)

	store.roomID = g.ID
	_, _, err = s.Send(ctx, bob, Target{RoomID: g.ID}, "anyone?")
	assert.ErrorIs(t, err, ErrRoomUnavailable)

	_, err = mem.GetRoom(ctx, g.ID)
	assert.ErrorIs(t, err, data.ErrNotFound, "the send did not recreate the group")
	log, err := mem.ListMessages(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestMarkRead_IsMonotonic(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, _, err := s.Send(ctx, alice, Target{ToUserID: "bob"}, "hi")
	require.NoError(t, err)

	room, err := s.MarkRead(ctx, bob, "alice_bob", time.Time{})
	require.NoError(t, err)
	marker := room.LastSeen["bob"]

	room, err = s.MarkRead(ctx, bob, "alice_bob", marker.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, room.LastSeen["bob"].Equal(marker))
	assert.False(t, IsUnread(room, "bob"))
}

func TestMarkRead_AccessAndLazyRooms(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	room, err := s.MarkRead(ctx, alice, "school", time.Time{})
	require.NoError(t, err)
	assert.Nil(t, room, "general room not created yet")

	_, err = s.MarkRead(ctx, alice, "missing-group", time.Time{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = s.Send(ctx, alice, Target{ToUserID: "bob"}, "private")
	require.NoError(t, err)
	_, err = s.MarkRead(ctx, carol, "alice_bob", time.Time{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

type flakyLastSeen struct {
	data.Store
	calls atomic.Int32
	fails int32
}

func (f *flakyLastSeen) AdvanceLastSeen(ctx context.Context, roomID, userID string, at time.Time) (*data.Room, error) {
	if f.calls.Add(1) <= f.fails {
		return nil, fmt.Errorf("%w: connection reset", data.ErrTransient)
	}
	return f.Store.AdvanceLastSeen(ctx, roomID, userID, at)
}

func TestMarkRead_RetriesTransientOnce(t *testing.T) {
	ctx := context.Background()

	store := &flakyLastSeen{Store: data.NewMemoryStore(nil, nil), fails: 1}
	s := NewService(store, Options{RetryDelay: time.Millisecond})
	_, _, err := s.Send(ctx, alice, Target{ToUserID: "bob"}, "hi")
	require.NoError(t, err)

	room, err := s.MarkRead(ctx, bob, "alice_bob", time.Time{})
	require.NoError(t, err)
	assert.False(t, IsUnread(room, "bob"))
	assert.EqualValues(t, 2, store.calls.Load())

	// two failures in a row surface as transient
	store.calls.Store(0)
	store.fails = 2
	_, err = s.MarkRead(ctx, bob, "alice_bob", time.Time{})
	assert.True(t, data.IsTransient(err))
	assert.EqualValues(t, 2, store.calls.Load())
}

func TestStreamMessages_LiveAndOrdered(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := s.StreamMessages(ctx, bob, "alice_bob")
	first := <-stream
	require.NoError(t, first.Err)
	assert.Empty(t, first.Value)

	_, _, err := s.Send(ctx, alice, Target{ToUserID: "bob"}, "one")
	require.NoError(t, err)
	_, _, err = s.Send(ctx, bob, Target{ToUserID: "alice"}, "two")
	require.NoError(t, err)

	var last []*data.Message
	require.Eventually(t, func() bool {
		select {
		case snap := <-stream:
			if snap.Err != nil {
				return false
			}
			last = snap.Value
		default:
		}
		return len(last) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "one", last[0].Text)
	assert.Equal(t, "two", last[1].Text)
	assert.True(t, last[1].CreatedAt.After(last[0].CreatedAt))

	// re-subscribing replays the full ordered log
	replay := <-s.StreamMessages(ctx, alice, "alice_bob")
	require.NoError(t, replay.Err)
	require.Len(t, replay.Value, 2)
	assert.Equal(t, last[0].ID, replay.Value[0].ID)
}

func TestStreamMessages_EndsWhenGroupDeleted(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, err := s.CreateGroup(ctx, alice, "Lab")
	require.NoError(t, err)

	stream := s.StreamMessages(ctx, alice, g.ID)
	snap := <-stream
	require.NoError(t, snap.Err)

	require.NoError(t, s.DeleteGroup(ctx, alice, g.ID))

	var final error
	for snap := range stream {
		final = snap.Err
	}
	assert.ErrorIs(t, final, ErrNotFound)

	missing := <-s.StreamMessages(ctx, alice, "never-existed")
	assert.ErrorIs(t, missing.Err, ErrNotFound)

	private := <-s.StreamMessages(ctx, carol, g.ID)
	assert.Error(t, private.Err)
}

func TestListRoomsFor(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rooms := s.ListRoomsFor(ctx, bob)
	snap := <-rooms
	require.NoError(t, snap.Err)
	require.Len(t, snap.Value, 1)
	assert.Equal(t, "school", snap.Value[0].Room.ID)
	assert.Equal(t, data.KindGeneral, snap.Value[0].Room.Kind)
	assert.False(t, snap.Value[0].Unread, "placeholder general room is never unread")

	_, _, err := s.Send(ctx, alice, Target{ToUserID: "bob"}, "hi")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case snap = <-rooms:
		default:
		}
		return len(snap.Value) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "alice_bob", snap.Value[0].Room.ID)
	assert.True(t, snap.Value[0].Unread)

	// carol's traffic in the general room reaches bob's list too
	_, _, err = s.Send(ctx, carol, Target{RoomID: "school"}, "announcement")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		select {
		case snap = <-rooms:
		default:
		}
		return snap.Value[0].Room.ID == "school" && snap.Value[0].Unread
	}, time.Second, 5*time.Millisecond)
}

func TestSetMuted_GatesAlertsNotUnread(t *testing.T) {
	alerts := &recordingAlerts{}
	s, _ := newTestService(t, Options{Alerts: alerts})
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, alice, "Lab")
	require.NoError(t, err)
	for _, who := range []Identity{bob, carol} {
		_, err := s.JoinGroup(ctx, who, g.ID)
		require.NoError(t, err)
	}
	_, err = s.SetMuted(ctx, carol, g.ID, true)
	require.NoError(t, err)
	_, err = s.SetMuted(ctx, dave, "school", true)
	require.NoError(t, err)

	_, room, err := s.Send(ctx, alice, Target{RoomID: g.ID}, "quiz tomorrow")
	require.NoError(t, err)
	assert.True(t, IsUnread(room, "carol"), "muting does not hide unread state")

	_, _, err = s.Send(ctx, bob, Target{RoomID: "school"}, "hello everyone")
	require.NoError(t, err)
	require.NoError(t, s.Wait(ctx))

	got := alerts.all()
	require.Len(t, got, 2)
	byRoom := map[string]events.Alert{}
	for _, a := range got {
		byRoom[a.RoomID] = a
	}
	assert.Equal(t, []string{"bob"}, byRoom[g.ID].Recipients)
	assert.ElementsMatch(t, []string{"dave", "bob"}, byRoom["school"].Excluded)
	assert.Empty(t, byRoom["school"].Recipients)

	// unmuting takes effect immediately on this instance
	_, err = s.SetMuted(ctx, carol, g.ID, false)
	require.NoError(t, err)
	_, _, err = s.Send(ctx, alice, Target{RoomID: g.ID}, "reminder")
	require.NoError(t, err)
	require.NoError(t, s.Wait(ctx))
	last := alerts.all()[2]
	assert.ElementsMatch(t, []string{"bob", "carol"}, last.Recipients)
}

func TestSend_AlertFailureDoesNotFailSend(t *testing.T) {
	alerts := &recordingAlerts{err: errors.New("broker down")}
	s, _ := newTestService(t, Options{Alerts: alerts})

	_, _, err := s.Send(context.Background(), alice, Target{ToUserID: "bob"}, "hi")
	require.NoError(t, err)
}

func TestScenario_ClassifierFailureKeepsMessage(t *testing.T) {
	gw := moderation.NewGateway(moderation.ClassifierFunc(func(ctx context.Context, _, _ string) (moderation.Verdict, error) {
		return moderation.Verdict{}, errors.New("classifier timeout")
	}), moderation.Options{}, zap.NewNop())
	notices := &recordingNotices{ch: make(chan Notice, 1)}
	s, store := newTestService(t, Options{Moderation: gw, Notices: notices})
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, alice, "Lab")
	require.NoError(t, err)
	_, err = s.JoinGroup(ctx, bob, g.ID)
	require.NoError(t, err)

	msg, _, err := s.Send(ctx, alice, Target{RoomID: g.ID}, "hello")
	require.NoError(t, err)
	require.NoError(t, s.Wait(ctx))

	log, err := store.ListMessages(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, msg.ID, log[0].ID)
	assert.Empty(t, notices.ch)
}

func TestSend_FlaggedMessageNotifiesSenderOnly(t *testing.T) {
	gw := moderation.NewGateway(moderation.ClassifierFunc(func(_ context.Context, text, hint string) (moderation.Verdict, error) {
		return moderation.Verdict{IsOffTopic: true, Reason: "not about " + hint}, nil
	}), moderation.Options{}, zap.NewNop())
	notices := &recordingNotices{ch: make(chan Notice, 4)}
	s, _ := newTestService(t, Options{Moderation: gw, Notices: notices})
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, alice, "Algebra")
	require.NoError(t, err)
	msg, _, err := s.Send(ctx, alice, Target{RoomID: g.ID}, "who wants pizza")
	require.NoError(t, err)

	select {
	case n := <-notices.ch:
		assert.Contains(t, n.ID, "alice:")
		assert.Equal(t, msg.ID, n.MessageID)
		assert.Equal(t, "off_topic", n.Kind)
		assert.Equal(t, "not about Algebra", n.Reason)
	case <-time.After(time.Second):
		t.Fatal("no notice delivered")
	}

	// direct messages are not moderated
	_, _, err = s.Send(ctx, alice, Target{ToUserID: "bob"}, "pizza later?")
	require.NoError(t, err)
	require.NoError(t, s.Wait(ctx))
	assert.Empty(t, notices.ch)
}
