// Package client is the Go SDK for chat.v1.ChatService. A Session wraps one
// authenticated connection and adds what every chat front end needs on top of
// the raw stubs: optimistic sends with rollback, live subscriptions that
// reconnect, invite links, and debounced live documents.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	v1 "github.com/PaulBabatuyi/classroom-chat/api/chat/v1"
	"github.com/PaulBabatuyi/classroom-chat/internal/collab"
)

// ErrInvalidInvite means an invite link carries no room.
var ErrInvalidInvite = errors.New("client: invite link has no room")

// Options tunes a Session.
type Options struct {
	// DebounceWindow coalesces document keystrokes. When zero the window
	// advertised by Settings is used, 500ms until then.
	DebounceWindow time.Duration
	// DialOptions are appended to the options Dial builds.
	DialOptions []grpc.DialOption
	Log         *zap.Logger
}

// bearer attaches the session token to every call.
type bearer struct {
	token  string
	secure bool
}

func (b bearer) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearer) RequireTransportSecurity() bool { return b.secure }

// Session is one user's connection to the chat service. It is safe for
// concurrent use.
type Session struct {
	api    v1.ChatServiceClient
	conn   *grpc.ClientConn
	pinned bool
	log    *zap.Logger

	debounce atomic.Int64 // nanoseconds

	outbox *outbox
}

// Dial connects to target and authenticates every call with token. A nil
// creds dials without TLS, for local development only.
func Dial(target, token string, creds credentials.TransportCredentials, opts Options) (*Session, error) {
	secure := creds != nil
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	dialOpts := append(v1.DialOptions(),
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(bearer{token: token, secure: secure}),
	)
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", target, err)
	}
	s := New(v1.NewChatServiceClient(conn), opts)
	s.conn = conn
	return s, nil
}

// New wraps an existing client. The caller owns its connection and its
// credentials.
func New(api v1.ChatServiceClient, opts Options) *Session {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	s := &Session{
		api:    api,
		pinned: opts.DebounceWindow > 0,
		log:    opts.Log.Named("client"),
		outbox: newOutbox(),
	}
	if !s.pinned {
		opts.DebounceWindow = collab.DefaultDebounce
	}
	s.debounce.Store(int64(opts.DebounceWindow))
	return s
}

// Debounce is the keystroke window new live documents use.
func (s *Session) Debounce() time.Duration { return time.Duration(s.debounce.Load()) }

// Close closes the connection Dial opened.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// API exposes the raw stubs.
func (s *Session) API() v1.ChatServiceClient { return s.api }

// MarkRead marks a room read up to now. It is called when the user opens a
// room and while they keep looking at it.
func (s *Session) MarkRead(ctx context.Context, roomID string) (*v1.Room, error) {
	res, err := s.api.MarkRead(ctx, &v1.MarkReadRequest{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	return res.Room, nil
}

// CreateGroup creates a group and returns it with its invite link.
func (s *Session) CreateGroup(ctx context.Context, name string) (*v1.Room, string, error) {
	res, err := s.api.CreateGroup(ctx, &v1.CreateGroupRequest{Name: name})
	if err != nil {
		return nil, "", err
	}
	return res.Room, res.InviteLink, nil
}

// InviteRoom extracts the room id from an invite link.
func InviteRoom(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInvite, err)
	}
	room := u.Query().Get("room")
	if room == "" {
		return "", ErrInvalidInvite
	}
	return room, nil
}

// JoinInvite joins the group an invite link points at. Opening the same link
// twice is harmless.
func (s *Session) JoinInvite(ctx context.Context, link string) (*v1.Room, error) {
	roomID, err := InviteRoom(link)
	if err != nil {
		return nil, err
	}
	res, err := s.api.JoinGroup(ctx, &v1.JoinGroupRequest{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	return res.Room, nil
}

// LeaveGroup leaves a group the caller does not own.
func (s *Session) LeaveGroup(ctx context.Context, roomID string) error {
	_, err := s.api.LeaveGroup(ctx, &v1.LeaveGroupRequest{RoomID: roomID})
	return err
}

// DeleteGroup deletes a group the caller owns.
func (s *Session) DeleteGroup(ctx context.Context, roomID string) error {
	_, err := s.api.DeleteGroup(ctx, &v1.DeleteGroupRequest{RoomID: roomID})
	return err
}

// SetMuted toggles alerts for a room and returns the muted set.
func (s *Session) SetMuted(ctx context.Context, roomID string, muted bool) ([]string, error) {
	res, err := s.api.SetMuted(ctx, &v1.SetMutedRequest{RoomID: roomID, Muted: muted})
	if err != nil {
		return nil, err
	}
	return res.MutedRooms, nil
}

// Settings reads the caller's settings; clients call it at session start.
// Unless Options pinned one, the advertised debounce window is adopted.
func (s *Session) Settings(ctx context.Context) (*v1.Settings, error) {
	st, err := s.api.GetSettings(ctx, &v1.GetSettingsRequest{})
	if err != nil {
		return nil, err
	}
	if !s.pinned && st.DebounceMs > 0 {
		s.debounce.Store(int64(time.Duration(st.DebounceMs) * time.Millisecond))
	}
	return st, nil
}
