package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/PaulBabatuyi/classroom-chat/internal/data"
	"github.com/PaulBabatuyi/classroom-chat/internal/metrics"
)

// IsUnread derives unread state from the room's activity and the user's
// last-seen marker. Nobody owes themselves a read; a user who never opened a
// room with any activity has it unread.
func IsUnread(room *data.Room, userID string) bool {
	if room == nil {
		return false
	}
	if room.LastMessage != nil && room.LastMessage.SenderID == userID {
		return false
	}
	seen, ok := room.LastSeen[userID]
	if !ok {
		return !room.UpdatedAt.IsZero()
	}
	return room.UpdatedAt.After(seen)
}

// MarkRead raises the caller's last-seen marker to seenAt (zero means now).
// The marker never moves backwards. A room that does not exist yet has
// nothing to read and yields a nil room.
func (s *Service) MarkRead(ctx context.Context, who Identity, roomID string, seenAt time.Time) (*data.Room, error) {
	room, err := retryOnce(ctx, s.retryDelay, func() (*data.Room, error) {
		return s.store.GetRoom(ctx, roomID)
	})
	if err != nil {
		if kind, _ := kindOf(who, roomID); errors.Is(err, data.ErrNotFound) && isLazy(kind) {
			return nil, nil
		}
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if !canRead(who, room) {
		return nil, fmt.Errorf("mark read: %w", ErrUnauthorized)
	}

	room, err = retryOnce(ctx, s.retryDelay, func() (*data.Room, error) {
		return s.store.AdvanceLastSeen(ctx, roomID, who.UserID, seenAt)
	})
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	metrics.ReadMarkers.Inc()
	return room, nil
}

// retryOnce runs op and retries it a single time if it failed transiently.
func retryOnce[T any](ctx context.Context, delay time.Duration, op func() (T, error)) (T, error) {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), 1), ctx)
	return backoff.RetryWithData(func() (T, error) {
		v, err := op()
		if err != nil && !data.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, b)
}
