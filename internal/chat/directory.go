package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/classroom-chat/internal/data"
	"github.com/PaulBabatuyi/classroom-chat/internal/feed"
)

// GeneralRoomName is the display name of every tenant's general room.
const GeneralRoomName = "General"

// ResolveDirect returns the id of the direct room between two users. It is
// symmetric, so a pair of users never ends up with two direct rooms.
func ResolveDirect(selfID, otherID string) string {
	pair := []string{selfID, otherID}
	slices.Sort(pair)
	return strings.Join(pair, "_")
}

// kindOf classifies roomID from the caller's point of view. Direct and general
// rooms are recognized by their deterministic ids; anything else is a group.
// For direct rooms the other participant is returned as well.
func kindOf(who Identity, roomID string) (data.Kind, string) {
	if roomID == who.TenantID {
		return data.KindGeneral, ""
	}
	if other, ok := strings.CutPrefix(roomID, who.UserID+"_"); ok && other != "" && ResolveDirect(who.UserID, other) == roomID {
		return data.KindDirect, other
	}
	if other, ok := strings.CutSuffix(roomID, "_"+who.UserID); ok && other != "" && ResolveDirect(who.UserID, other) == roomID {
		return data.KindDirect, other
	}
	return data.KindGroup, ""
}

// canRead reports whether who may see the room's log.
func canRead(who Identity, r *data.Room) bool {
	if r.TenantID != who.TenantID {
		return false
	}
	if r.Kind == data.KindGeneral {
		return true
	}
	return r.HasParticipant(who.UserID)
}

// CreateGroup inserts a group owned by the caller.
func (s *Service) CreateGroup(ctx context.Context, who Identity, name string) (*data.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidArgument)
	}
	room, err := s.store.InsertRoom(ctx, &data.Room{
		TenantID:     who.TenantID,
		Kind:         data.KindGroup,
		Name:         name,
		OwnerID:      who.UserID,
		Participants: []string{who.UserID},
	})
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	s.log.Info("group created", zap.String("room_id", room.ID), zap.String("owner_id", who.UserID))
	return room, nil
}

// JoinGroup adds the caller to a group. Joining twice is a no-op.
func (s *Service) JoinGroup(ctx context.Context, who Identity, roomID string) (*data.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}
	// invite links do not cross tenants
	if room.Kind != data.KindGroup || room.TenantID != who.TenantID {
		return nil, fmt.Errorf("join group: %w", ErrNotFound)
	}
	if room, err = s.store.AddParticipant(ctx, roomID, who.UserID); err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}
	return room, nil
}

// LeaveGroup removes the caller from a group. The owner cannot leave; they
// delete the group instead.
func (s *Service) LeaveGroup(ctx context.Context, who Identity, roomID string) (*data.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("leave group: %w", err)
	}
	if room.Kind != data.KindGroup || room.TenantID != who.TenantID {
		return nil, fmt.Errorf("leave group: %w", ErrNotFound)
	}
	if room.OwnerID == who.UserID {
		return nil, fmt.Errorf("leave group: owner must delete the group: %w", ErrUnauthorized)
	}
	if room, err = s.store.RemoveParticipant(ctx, roomID, who.UserID); err != nil {
		return nil, fmt.Errorf("leave group: %w", err)
	}
	return room, nil
}

// DeleteGroup deletes a group and then its message log. Only the owner may
// do this. The two deletes are not atomic: if the second fails, the log is
// orphaned and logged for a later sweep.
func (s *Service) DeleteGroup(ctx context.Context, who Identity, roomID string) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if room.Kind != data.KindGroup || room.TenantID != who.TenantID {
		return fmt.Errorf("delete group: %w", ErrNotFound)
	}
	if room.OwnerID != who.UserID {
		return fmt.Errorf("delete group: %w", ErrUnauthorized)
	}

	if _, err := s.store.DeleteRoom(ctx, roomID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	s.muted.Delete(mutedKey(roomID))

	n, err := s.store.DeleteMessages(ctx, roomID)
	if err != nil {
		s.log.Error("orphaned message log", zap.String("room_id", roomID), zap.Error(err))
		return nil
	}
	s.log.Info("group deleted", zap.String("room_id", roomID), zap.Int64("messages", n))
	return nil
}

// RoomView is a room as one user sees it in their room list.
type RoomView struct {
	Room   *data.Room
	Unread bool
	Muted  bool
}

// ListRoomsFor streams the caller's rooms, newest activity first, plus the
// tenant's general room (a placeholder if nobody wrote to it yet).
func (s *Service) ListRoomsFor(ctx context.Context, who Identity) <-chan feed.Snapshot[[]RoomView] {
	topics := []string{data.UserRoomsTopic(who.UserID), data.RoomTopic(who.TenantID)}
	return feed.Watch(ctx, s.store.Notifier(), topics, func(ctx context.Context) ([]RoomView, error) {
		return s.loadRooms(ctx, who)
	})
}

func (s *Service) loadRooms(ctx context.Context, who Identity) ([]RoomView, error) {
	rooms, err := s.store.ListRooms(ctx, who.UserID, who.TenantID)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.GetSettings(ctx, who.UserID)
	if err != nil {
		return nil, err
	}

	views := make([]RoomView, 0, len(rooms)+1)
	hasGeneral := false
	for _, r := range rooms {
		if r.Kind == data.KindGeneral {
			hasGeneral = true
		}
		if r.TenantID != who.TenantID {
			continue
		}
		views = append(views, RoomView{Room: r, Unread: IsUnread(r, who.UserID), Muted: settings.IsMuted(r.ID)})
	}
	if !hasGeneral {
		general := &data.Room{ID: who.TenantID, TenantID: who.TenantID, Kind: data.KindGeneral, Name: GeneralRoomName}
		views = append(views, RoomView{Room: general, Muted: settings.IsMuted(general.ID)})
	}
	return views, nil
}

// isLazy reports whether rooms of kind k come into existence on first send.
func isLazy(k data.Kind) bool { return k == data.KindDirect || k == data.KindGeneral }
