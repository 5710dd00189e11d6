package main

import (
	"errors"
	"testing"
	"time"

	v1 "github.com/PaulBabatuyi/classroom-chat/api/chat/v1"
	"github.com/PaulBabatuyi/classroom-chat/internal/chat"
)

type fakeSender struct {
	last *v1.Notice
	fail bool
}

func (f *fakeSender) Send(n *v1.Notice) error {
	if f.fail {
		return errors.New("send fail")
	}
	f.last = n
	return nil
}

func TestConnectionHub_RegisterAndSend(t *testing.T) {
	hub := NewConnectionHub(nil)

	senderA := &fakeSender{}
	senderB := &fakeSender{}

	idA := hub.Register("alice", senderA)
	_ = hub.Register("alice", senderB) // second session

	if n := hub.SendToUser("alice", &v1.Notice{ID: "n1"}); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if senderA.last == nil || senderA.last.ID != "n1" {
		t.Fatalf("sender A did not receive notice")
	}

	hub.Unregister("alice", idA)

	if n := hub.SendToUser("alice", &v1.Notice{ID: "n2"}); n != 1 {
		t.Fatalf("expected 1 delivery after unregister, got %d", n)
	}
	if senderA.last.ID == "n2" {
		t.Fatalf("sender A should not have received second notice after unregister")
	}
	if senderB.last.ID != "n2" {
		t.Fatalf("sender B missed the second notice")
	}
}

func TestConnectionHub_SendToOffline(t *testing.T) {
	hub := NewConnectionHub(nil)

	if n := hub.SendToUser("nobody", &v1.Notice{}); n != 0 {
		t.Fatalf("expected no delivery to offline user, got %d", n)
	}
	// Notify must not fail for offline users
	hub.Notify("nobody", chat.Notice{ID: "x"})
}

func TestConnectionHub_SendPartialFailure(t *testing.T) {
	hub := NewConnectionHub(nil)

	ok := &fakeSender{}
	bad := &fakeSender{fail: true}

	_ = hub.Register("dave", ok)
	_ = hub.Register("dave", bad)

	if n := hub.SendToUser("dave", &v1.Notice{ID: "x"}); n != 1 {
		t.Fatalf("expected one healthy delivery, got %d", n)
	}

	// the failing session is pruned
	if c := hub.Connected("dave"); c != 1 {
		t.Fatalf("expected 1 connection after cleanup, got %d", c)
	}
	if n := hub.SendToUser("dave", &v1.Notice{ID: "y"}); n != 1 {
		t.Fatalf("expected send to reach the healthy session, got %d", n)
	}
	if ok.last == nil || ok.last.ID != "y" {
		t.Fatalf("healthy sender did not receive the notice")
	}
}

func TestConnectionHub_NotifyConvertsNotice(t *testing.T) {
	hub := NewConnectionHub(nil)
	s := &fakeSender{}
	hub.Register("erin", s)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	hub.Notify("erin", chat.Notice{ID: "n", RoomID: "g1", MessageID: "m1", Kind: "off_topic", Reason: "stay on topic", CreatedAt: at})

	if s.last == nil {
		t.Fatalf("notice not delivered")
	}
	if s.last.Kind != "off_topic" || s.last.Text != "stay on topic" || s.last.RoomID != "g1" || s.last.MessageID != "m1" {
		t.Fatalf("unexpected notice %+v", s.last)
	}
	if !s.last.CreatedAt.Equal(at) {
		t.Fatalf("created_at not carried over")
	}
}

func TestConnectionHub_UnregisterTwice(t *testing.T) {
	hub := NewConnectionHub(nil)
	id := hub.Register("frank", &fakeSender{})
	hub.Unregister("frank", id)
	hub.Unregister("frank", id)
	hub.Unregister("ghost", 42)
	if c := hub.Connected("frank"); c != 0 {
		t.Fatalf("expected no connections, got %d", c)
	}
}
