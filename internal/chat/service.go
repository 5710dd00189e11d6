// Package chat implements the chat core: the room directory, the message
// channel, unread tracking and mute settings. It is transport agnostic; the
// gRPC handlers in cmd/api translate its errors into status codes.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/classroom-chat/internal/data"
	"github.com/PaulBabatuyi/classroom-chat/internal/events"
	"github.com/PaulBabatuyi/classroom-chat/internal/moderation"
	"github.com/PaulBabatuyi/classroom-chat/internal/tracing"
)

var (
	ErrNotFound        = data.ErrNotFound
	ErrRoomUnavailable = data.ErrRoomUnavailable
	// ErrUnauthorized means the caller may not perform the action on the room.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument means the request is malformed.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Identity is the caller as vouched for by the identity provider.
type Identity struct {
	UserID   string
	TenantID string
	Name     string
}

// Notice is a warning delivered to one user only, currently the moderation
// feedback on a message they sent.
type Notice struct {
	ID        string
	RoomID    string
	MessageID string
	Kind      string // off_topic | violation
	Reason    string
	CreatedAt time.Time
}

// NoticeSink delivers notices to a user's live sessions.
type NoticeSink interface {
	Notify(userID string, n Notice)
}

// Options carries the optional collaborators of a Service.
type Options struct {
	Moderation *moderation.Gateway
	Alerts     events.Publisher
	Notices    NoticeSink
	// SettingsTTL is how long mute sets used for alert fan-out are cached.
	SettingsTTL time.Duration
	// RetryDelay is the pause before the single retry of markRead/setMuted.
	RetryDelay time.Duration
	Log        *zap.Logger
}

// Service is the chat core.
type Service struct {
	store      data.Store
	moderation *moderation.Gateway
	alerts     events.Publisher
	notices    NoticeSink
	muted      *cache.Cache
	retryDelay time.Duration
	log        *zap.Logger
	tracer     trace.Tracer

	wg sync.WaitGroup // alert fan-out in flight
}

// NewService returns a chat service on store.
func NewService(store data.Store, opts Options) *Service {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Alerts == nil {
		opts.Alerts = events.Nop{}
	}
	if opts.SettingsTTL <= 0 {
		opts.SettingsTTL = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	return &Service{
		store:      store,
		moderation: opts.Moderation,
		alerts:     opts.Alerts,
		notices:    opts.Notices,
		muted:      cache.New(opts.SettingsTTL, 2*opts.SettingsTTL),
		retryDelay: opts.RetryDelay,
		log:        opts.Log,
		tracer:     tracing.Tracer("chat"),
	}
}

// Wait blocks until detached work started by sends (alerts and moderation)
// has finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.moderation.Wait(ctx)
}
