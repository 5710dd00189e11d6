package main

import (
	v1 "github.com/PaulBabatuyi/classroom-chat/api/chat/v1"
	"github.com/PaulBabatuyi/classroom-chat/internal/chat"
	"github.com/PaulBabatuyi/classroom-chat/internal/data"
)

func toRoom(r *data.Room) *v1.Room {
	if r == nil {
		return nil
	}
	out := &v1.Room{
		ID:           r.ID,
		TenantID:     r.TenantID,
		Kind:         string(r.Kind),
		Name:         r.Name,
		OwnerID:      r.OwnerID,
		Participants: r.Participants,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastMessage != nil {
		out.LastMessage = &v1.LastMessage{
			Text:      r.LastMessage.Text,
			SenderID:  r.LastMessage.SenderID,
			Timestamp: r.LastMessage.Timestamp,
		}
	}
	return out
}

// toRoomFor adds the caller's unread flag to the wire room.
func toRoomFor(r *data.Room, userID string) *v1.Room {
	out := toRoom(r)
	if out != nil {
		out.Unread = chat.IsUnread(r, userID)
	}
	return out
}

func toRoomList(views []chat.RoomView) *v1.RoomList {
	rooms := make([]*v1.Room, 0, len(views))
	for _, v := range views {
		r := toRoom(v.Room)
		r.Unread = v.Unread
		r.Muted = v.Muted
		rooms = append(rooms, r)
	}
	return &v1.RoomList{Rooms: rooms}
}

func toMessage(m *data.Message) *v1.Message {
	if m == nil {
		return nil
	}
	return &v1.Message{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Text:       m.Text,
		CreatedAt:  m.CreatedAt,
	}
}

func toMessageList(roomID string, msgs []*data.Message) *v1.MessageList {
	out := &v1.MessageList{RoomID: roomID, Messages: make([]*v1.Message, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, toMessage(m))
	}
	return out
}

func toDocument(d *data.Document) *v1.Document {
	if d == nil {
		return nil
	}
	return &v1.Document{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Text:      d.Text,
		Language:  d.Language,
		LastInput: d.LastInput,
		UpdatedAt: d.UpdatedAt,
	}
}

func toNotice(n chat.Notice) *v1.Notice {
	return &v1.Notice{
		ID:        n.ID,
		Kind:      n.Kind,
		RoomID:    n.RoomID,
		MessageID: n.MessageID,
		Text:      n.Reason,
		CreatedAt: n.CreatedAt,
	}
}
