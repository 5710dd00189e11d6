package data

import (
	"slices"
	"time"
)

// Kind is the flavour of a chat room.
type Kind string

const (
	KindDirect  Kind = "direct"
	KindGroup   Kind = "group"
	KindGeneral Kind = "general"
)

// LastMessage is the denormalized preview of the newest message in a room.
type LastMessage struct {
	Text      string    `bson:"text"`
	SenderID  string    `bson:"sender_id"`
	Timestamp time.Time `bson:"timestamp"`
}

// Room maps to the rooms collection. Direct rooms are keyed by the sorted pair
// of participant ids, the general room by the tenant id, groups by a store id.
type Room struct {
	ID           string               `bson:"_id"`
	TenantID     string               `bson:"tenant_id"`
	Kind         Kind                 `bson:"kind"`
	Name         string               `bson:"name,omitempty"`
	OwnerID      string               `bson:"owner_id,omitempty"`
	Participants []string             `bson:"participants"`
	LastMessage  *LastMessage         `bson:"last_message,omitempty"`
	LastSeen     map[string]time.Time `bson:"last_seen,omitempty"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

// HasParticipant reports whether userID is an explicit member of the room.
func (r *Room) HasParticipant(userID string) bool {
	return slices.Contains(r.Participants, userID)
}

// Clone returns a deep copy so callers never share maps or slices with a store.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Participants = slices.Clone(r.Participants)
	if r.LastMessage != nil {
		lm := *r.LastMessage
		c.LastMessage = &lm
	}
	if r.LastSeen != nil {
		c.LastSeen = make(map[string]time.Time, len(r.LastSeen))
		for k, v := range r.LastSeen {
			c.LastSeen[k] = v
		}
	}
	return &c
}

// Message maps to the messages collection. Messages are never edited.
type Message struct {
	ID         string    `bson:"_id"`
	RoomID     string    `bson:"room_id"`
	SenderID   string    `bson:"sender_id"`
	SenderName string    `bson:"sender_name"`
	Text       string    `bson:"text"`
	CreatedAt  time.Time `bson:"created_at"`
}

// Document is a live-shared editable text (the code sandbox), replicated
// last-writer-wins.
type Document struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	Text      string    `bson:"text"`
	Language  string    `bson:"language"`
	LastInput string    `bson:"last_input"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Settings holds per-user preferences. MutedRooms only gates alert delivery.
type Settings struct {
	UserID     string    `bson:"_id"`
	MutedRooms []string  `bson:"muted_rooms"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// IsMuted reports whether roomID is in the muted set.
func (s *Settings) IsMuted(roomID string) bool {
	return s != nil && slices.Contains(s.MutedRooms, roomID)
}

// SendBatch is the unit of atomicity of a chat send: optional room creation,
// the message append, the lastMessage preview and the sender's lastSeen.
type SendBatch struct {
	RoomID string
	// Create is the room to insert when RoomID does not exist yet. Nil means
	// the room must already exist.
	Create *Room
	// MemberOnly requires the sender to be an explicit participant.
	MemberOnly bool
	SenderID   string
	SenderName string
	Text       string
}

// DocumentEdit overwrites the replicated fields of a document. Empty Language
// keeps the current one.
type DocumentEdit struct {
	Text      string
	Language  string
	LastInput string
}
