package data

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PaulBabatuyi/classroom-chat/internal/feed"
)

// MemoryStore is an in-process Store. A single mutex guards all tables, which
// makes every operation (including CommitSend) trivially atomic. It backs
// tests and the "memory" store driver.
type MemoryStore struct {
	mu       sync.Mutex
	clock    *Clock
	notifier feed.Notifier

	rooms    map[string]*Room
	messages map[string][]*Message
	docs     map[string]*Document
	settings map[string]*Settings
}

// NewMemoryStore returns an empty store publishing on n (a local broker when nil).
func NewMemoryStore(n feed.Notifier, clock *Clock) *MemoryStore {
	if n == nil {
		n = feed.NewBroker()
	}
	if clock == nil {
		clock = NewClock(nil)
	}
	return &MemoryStore{
		clock:    clock,
		notifier: n,
		rooms:    make(map[string]*Room),
		messages: make(map[string][]*Message),
		docs:     make(map[string]*Document),
		settings: make(map[string]*Settings),
	}
}

func (s *MemoryStore) Notifier() feed.Notifier { return s.notifier }

func (s *MemoryStore) publish(ctx context.Context, topics []string) {
	if len(topics) > 0 {
		s.notifier.Publish(ctx, topics...)
	}
}

func (s *MemoryStore) GetRoom(_ context.Context, id string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) InsertRoom(ctx context.Context, r *Room) (*Room, error) {
	s.mu.Lock()
	room := r.Clone()
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if _, exists := s.rooms[room.ID]; exists {
		s.mu.Unlock()
		return nil, ErrRoomUnavailable
	}
	ts := s.clock.Now()
	room.CreatedAt, room.UpdatedAt = ts, ts
	room.LastSeen = make(map[string]time.Time, len(room.Participants))
	for _, p := range room.Participants {
		room.LastSeen[p] = ts
	}
	s.rooms[room.ID] = room
	out := room.Clone()
	s.mu.Unlock()

	s.publish(ctx, roomTopics(out))
	return out, nil
}

func (s *MemoryStore) AddParticipant(ctx context.Context, roomID, userID string) (*Room, error) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok || r.Kind != KindGroup {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	changed := !r.HasParticipant(userID)
	if changed {
		r.Participants = append(r.Participants, userID)
	}
	out := r.Clone()
	s.mu.Unlock()

	if changed {
		s.publish(ctx, roomTopics(out))
	}
	return out, nil
}

func (s *MemoryStore) RemoveParticipant(ctx context.Context, roomID, userID string) (*Room, error) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok || r.Kind != KindGroup {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	changed := r.HasParticipant(userID)
	r.Participants = slices.DeleteFunc(r.Participants, func(p string) bool { return p == userID })
	out := r.Clone()
	s.mu.Unlock()

	if changed {
		s.publish(ctx, roomTopics(out, UserRoomsTopic(userID)))
	}
	return out, nil
}

func (s *MemoryStore) DeleteRoom(ctx context.Context, roomID string) (*Room, error) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	delete(s.rooms, roomID)
	s.mu.Unlock()

	s.publish(ctx, roomTopics(r, MessagesTopic(roomID)))
	return r, nil
}

func (s *MemoryStore) DeleteMessages(ctx context.Context, roomID string) (int64, error) {
	s.mu.Lock()
	n := int64(len(s.messages[roomID]))
	delete(s.messages, roomID)
	s.mu.Unlock()

	if n > 0 {
		s.publish(ctx, []string{MessagesTopic(roomID)})
	}
	return n, nil
}

func (s *MemoryStore) AdvanceLastSeen(ctx context.Context, roomID, userID string, at time.Time) (*Room, error) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	changed := raiseSeen(r, userID, clampSeen(at, s.clock.Now()))
	out := r.Clone()
	s.mu.Unlock()

	if changed {
		s.publish(ctx, seenTopics(userID))
	}
	return out, nil
}

func (s *MemoryStore) CommitSend(ctx context.Context, b SendBatch) (*Message, *Room, error) {
	s.mu.Lock()
	r, ok := s.rooms[b.RoomID]
	if !ok {
		if b.Create == nil {
			s.mu.Unlock()
			return nil, nil, ErrRoomUnavailable
		}
		r = b.Create.Clone()
		r.ID = b.RoomID
		r.CreatedAt, r.UpdatedAt = time.Time{}, time.Time{}
	}
	if b.MemberOnly && !r.HasParticipant(b.SenderID) {
		s.mu.Unlock()
		return nil, nil, ErrNotMember
	}
	if !ok {
		s.rooms[r.ID] = r
	}

	ts := s.clock.After(r.UpdatedAt)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = ts
	}
	msg := &Message{
		ID:         uuid.NewString(),
		RoomID:     r.ID,
		SenderID:   b.SenderID,
		SenderName: b.SenderName,
		Text:       b.Text,
		CreatedAt:  ts,
	}
	s.messages[r.ID] = append(s.messages[r.ID], msg)
	r.LastMessage = &LastMessage{Text: b.Text, SenderID: b.SenderID, Timestamp: ts}
	r.UpdatedAt = ts
	if r.LastSeen == nil {
		r.LastSeen = make(map[string]time.Time)
	}
	r.LastSeen[b.SenderID] = ts
	out, m := r.Clone(), *msg
	s.mu.Unlock()

	s.publish(ctx, roomTopics(out, MessagesTopic(out.ID)))
	return &m, out, nil
}

func (s *MemoryStore) ListRooms(_ context.Context, userID, tenantID string) ([]*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Room
	for _, r := range s.rooms {
		if r.HasParticipant(userID) || (r.ID == tenantID && r.Kind == KindGeneral) {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *Room) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, roomID string) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.messages[roomID]
	out := make([]*Message, len(log))
	for i, m := range log {
		c := *m
		out[i] = &c
	}
	return out, nil
}

func (s *MemoryStore) InsertDocument(ctx context.Context, d *Document) (*Document, error) {
	s.mu.Lock()
	doc := *d
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	ts := s.clock.Now()
	doc.CreatedAt, doc.UpdatedAt = ts, ts
	s.docs[doc.ID] = &doc
	out := doc
	s.mu.Unlock()

	s.publish(ctx, []string{DocumentTopic(out.ID)})
	return &out, nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *d
	return &out, nil
}

func (s *MemoryStore) UpdateDocument(ctx context.Context, id string, e DocumentEdit) (*Document, error) {
	s.mu.Lock()
	d, ok := s.docs[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	d.Text = e.Text
	d.LastInput = e.LastInput
	if e.Language != "" {
		d.Language = e.Language
	}
	d.UpdatedAt = s.clock.After(d.UpdatedAt)
	out := *d
	s.mu.Unlock()

	s.publish(ctx, []string{DocumentTopic(id)})
	return &out, nil
}

func (s *MemoryStore) GetSettings(_ context.Context, userID string) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[userID]
	if !ok {
		return &Settings{UserID: userID}, nil
	}
	out := *st
	out.MutedRooms = slices.Clone(st.MutedRooms)
	return &out, nil
}

func (s *MemoryStore) SetMuted(_ context.Context, userID, roomID string, muted bool) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[userID]
	if !ok {
		st = &Settings{UserID: userID}
		s.settings[userID] = st
	}
	if muted {
		if !slices.Contains(st.MutedRooms, roomID) {
			st.MutedRooms = append(st.MutedRooms, roomID)
		}
	} else {
		st.MutedRooms = slices.DeleteFunc(st.MutedRooms, func(id string) bool { return id == roomID })
	}
	st.UpdatedAt = s.clock.Now()
	out := *st
	out.MutedRooms = slices.Clone(st.MutedRooms)
	return &out, nil
}

func (s *MemoryStore) MutedBy(_ context.Context, roomID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []string
	for id, st := range s.settings {
		if slices.Contains(st.MutedRooms, roomID) {
			users = append(users, id)
		}
	}
	slices.Sort(users)
	return users, nil
}
