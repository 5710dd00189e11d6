package client

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/classroom-chat/api/chat/v1"
)

// ErrRoomDeleted ends a message subscription whose room went away. Views
// showing the room should close.
var ErrRoomDeleted = errors.New("client: room deleted")

// reconnectBackOff is how long a live query keeps trying to resubscribe
// after the connection dropped.
var reconnectBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

// watch runs a server stream, handing every message to fn. Dropped
// connections are resubscribed with backoff; the server replays the current
// state on resubscribe. It returns nil when ctx is cancelled.
func watch[T any](ctx context.Context, log *zap.Logger, name string, open func(context.Context) (grpc.ServerStreamingClient[T], error), fn func(*T)) error {
	op := func() error {
		stream, err := open(ctx)
		if err != nil {
			return classify(err)
		}
		for {
			m, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return classify(err)
			}
			fn(m)
		}
	}
	notify := func(err error, wait time.Duration) {
		log.Info("live query dropped, resubscribing", zap.String("query", name), zap.Duration("in", wait), zap.Error(err))
	}
	err := backoff.RetryNotify(op, backoff.WithContext(reconnectBackOff(), ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// classify keeps transport failures retryable and everything else final.
func classify(err error) error {
	if status.Code(err) == codes.Unavailable {
		return err
	}
	return backoff.Permanent(err)
}

// WatchRooms calls fn with the caller's room list now and after every change
// until ctx is cancelled.
func (s *Session) WatchRooms(ctx context.Context, fn func(*v1.RoomList)) error {
	return watch(ctx, s.log, "rooms", func(ctx context.Context) (grpc.ServerStreamingClient[v1.RoomList], error) {
		return s.api.ListRooms(ctx, &v1.ListRoomsRequest{})
	}, fn)
}

// WatchMessages calls fn with a room's ordered log now and after every new
// message. It returns ErrRoomDeleted if the room is deleted meanwhile.
func (s *Session) WatchMessages(ctx context.Context, roomID string, fn func(*v1.MessageList)) error {
	err := watch(ctx, s.log, "messages", func(ctx context.Context) (grpc.ServerStreamingClient[v1.MessageList], error) {
		return s.api.StreamMessages(ctx, &v1.StreamMessagesRequest{RoomID: roomID})
	}, fn)
	if status.Code(err) == codes.NotFound {
		return ErrRoomDeleted
	}
	return err
}

// OpenRoom is WatchMessages for a room the user is looking at: the room is
// marked read when opened and again whenever a message newer than the last
// acknowledged one arrives. Snapshots with nothing new are not acknowledged.
func (s *Session) OpenRoom(ctx context.Context, roomID string, fn func(*v1.MessageList)) error {
	room, err := s.MarkRead(ctx, roomID)
	if err != nil {
		return err
	}
	var acked time.Time
	if room != nil && room.LastMessage != nil {
		acked = room.LastMessage.Timestamp
	}
	return s.WatchMessages(ctx, roomID, func(l *v1.MessageList) {
		fn(l)
		newest := newestMessage(l)
		if !newest.After(acked) {
			return
		}
		if _, err := s.MarkRead(ctx, roomID); err != nil {
			if ctx.Err() == nil {
				s.log.Warn("mark read failed", zap.String("room_id", roomID), zap.Error(err))
			}
			return
		}
		acked = newest
	})
}

func newestMessage(l *v1.MessageList) time.Time {
	var newest time.Time
	for _, m := range l.Messages {
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}
	return newest
}

// WatchNotices calls fn for every notice addressed to the caller.
func (s *Session) WatchNotices(ctx context.Context, fn func(*v1.Notice)) error {
	return watch(ctx, s.log, "notices", func(ctx context.Context) (grpc.ServerStreamingClient[v1.Notice], error) {
		return s.api.WatchNotices(ctx, &v1.WatchNoticesRequest{})
	}, fn)
}
