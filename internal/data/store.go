// Package data provides the chat models and the document store they live in.
package data

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/classroom-chat/internal/feed"
)

// Store is the document-store contract the chat core is written against.
// Every mutation publishes the topics it touched on the store's Notifier.
type Store interface {
	GetRoom(ctx context.Context, id string) (*Room, error)
	// InsertRoom stores a new room, assigning an id when r.ID is empty.
	// Participants present at creation are marked as having seen it.
	InsertRoom(ctx context.Context, r *Room) (*Room, error)
	// AddParticipant is an add-to-set on a group's participants.
	AddParticipant(ctx context.Context, roomID, userID string) (*Room, error)
	// RemoveParticipant is a remove-from-set on a group's participants.
	RemoveParticipant(ctx context.Context, roomID, userID string) (*Room, error)
	// DeleteRoom removes the room document and returns it as it was.
	DeleteRoom(ctx context.Context, roomID string) (*Room, error)
	DeleteMessages(ctx context.Context, roomID string) (int64, error)
	// AdvanceLastSeen raises lastSeen[userID] to at (clamped to the store
	// clock; zero means now). It never lowers an existing marker.
	AdvanceLastSeen(ctx context.Context, roomID, userID string, at time.Time) (*Room, error)
	// CommitSend applies a SendBatch atomically.
	CommitSend(ctx context.Context, b SendBatch) (*Message, *Room, error)
	// ListRooms returns rooms userID participates in plus the tenant's general
	// room when it exists, newest activity first.
	ListRooms(ctx context.Context, userID, tenantID string) ([]*Room, error)
	// ListMessages returns a room's log ordered by CreatedAt ascending.
	ListMessages(ctx context.Context, roomID string) ([]*Message, error)

	InsertDocument(ctx context.Context, d *Document) (*Document, error)
	GetDocument(ctx context.Context, id string) (*Document, error)
	UpdateDocument(ctx context.Context, id string, e DocumentEdit) (*Document, error)

	// GetSettings returns empty settings for users that never saved any.
	GetSettings(ctx context.Context, userID string) (*Settings, error)
	SetMuted(ctx context.Context, userID, roomID string, muted bool) (*Settings, error)
	// MutedBy lists users that muted roomID.
	MutedBy(ctx context.Context, roomID string) ([]string, error)

	Notifier() feed.Notifier
}

// Change feed topics.

func RoomTopic(id string) string          { return "room:" + id }
func MessagesTopic(roomID string) string  { return "messages:" + roomID }
func UserRoomsTopic(userID string) string { return "user-rooms:" + userID }
func DocumentTopic(id string) string      { return "document:" + id }

// roomTopics lists every topic a change to r is visible on.
func roomTopics(r *Room, extra ...string) []string {
	topics := make([]string, 0, len(r.Participants)+1+len(extra))
	topics = append(topics, RoomTopic(r.ID))
	for _, p := range r.Participants {
		topics = append(topics, UserRoomsTopic(p))
	}
	return append(topics, extra...)
}

// seenTopics are the topics a last-seen change is published on. Only the
// reader's own room list shows it; message logs and other members' lists do
// not change.
func seenTopics(userID string) []string {
	return []string{UserRoomsTopic(userID)}
}

// raiseSeen applies max semantics to r's marker for userID and reports
// whether it moved.
func raiseSeen(r *Room, userID string, at time.Time) bool {
	if prev, ok := r.LastSeen[userID]; ok && !at.After(prev) {
		return false
	}
	if r.LastSeen == nil {
		r.LastSeen = make(map[string]time.Time)
	}
	r.LastSeen[userID] = at
	return true
}

// clampSeen bounds a client-supplied high-water mark by the store clock.
func clampSeen(at, now time.Time) time.Time {
	if at.IsZero() || at.After(now) {
		return now
	}
	return at.UTC().Truncate(time.Millisecond)
}
