package chat

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/PaulBabatuyi/classroom-chat/internal/data"
)

func mutedKey(roomID string) string { return "muted:" + roomID }

// SetMuted adds or removes a room from the caller's muted set. Muting only
// suppresses alerts; unread state is unaffected.
func (s *Service) SetMuted(ctx context.Context, who Identity, roomID string, muted bool) (*data.Settings, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: room_id is required", ErrInvalidArgument)
	}
	st, err := retryOnce(ctx, s.retryDelay, func() (*data.Settings, error) {
		return s.store.SetMuted(ctx, who.UserID, roomID, muted)
	})
	if err != nil {
		return nil, fmt.Errorf("set muted: %w", err)
	}
	s.muted.Delete(mutedKey(roomID))
	// room lists carry the muted flag
	s.store.Notifier().Publish(ctx, data.UserRoomsTopic(who.UserID))
	return st, nil
}

// Settings returns the caller's settings, read at session start.
func (s *Service) Settings(ctx context.Context, who Identity) (*data.Settings, error) {
	return s.store.GetSettings(ctx, who.UserID)
}

// mutedBy is a read-through cache over Store.MutedBy. Another instance's
// SetMuted is picked up after the cache TTL.
func (s *Service) mutedBy(ctx context.Context, roomID string) ([]string, error) {
	if v, ok := s.muted.Get(mutedKey(roomID)); ok {
		return v.([]string), nil
	}
	users, err := s.store.MutedBy(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.muted.Set(mutedKey(roomID), users, cache.DefaultExpiration)
	return users, nil
}
