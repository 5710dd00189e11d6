package main

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/classroom-chat/api/chat/v1"
	"github.com/PaulBabatuyi/classroom-chat/internal/auth"
	"github.com/PaulBabatuyi/classroom-chat/internal/chat"
	"github.com/PaulBabatuyi/classroom-chat/internal/data"
	"github.com/PaulBabatuyi/classroom-chat/internal/feed"
)

// identity returns the caller injected by the auth interceptor.
func identity(ctx context.Context) (chat.Identity, error) {
	c, ok := auth.FromContext(ctx)
	if !ok {
		return chat.Identity{}, status.Errorf(codes.Unauthenticated, "missing auth claims")
	}
	return chat.Identity{UserID: c.UserID, TenantID: c.TenantID, Name: c.Name}, nil
}

// check validates req against its struct tags.
func (s *Server) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		switch fe.Tag() {
		case "required":
			return status.Errorf(codes.InvalidArgument, "%s is required", fe.Field())
		case "max":
			return status.Errorf(codes.InvalidArgument, "%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return status.Errorf(codes.InvalidArgument, "%s failed on %s", fe.Field(), fe.Tag())
	}
	return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
}

// toStatus maps core errors onto gRPC status codes.
func (s *Server) toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chat.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, chat.ErrRoomUnavailable):
		return status.Error(codes.FailedPrecondition, "room no longer exists")
	case errors.Is(err, chat.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, chat.ErrUnauthorized):
		return status.Error(codes.PermissionDenied, "not allowed")
	case data.IsTransient(err):
		return status.Error(codes.Unavailable, "temporarily unavailable, retry")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	s.log.Error("unexpected error", zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

// SendMessage appends a message to a room or to the direct room with a user.
func (s *Server) SendMessage(ctx context.Context, req *v1.SendMessageRequest) (*v1.SendMessageResponse, error) {
	who, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}

	msg, room, err := s.chat.Send(ctx, who, chat.Target{RoomID: req.GetRoomID(), ToUserID: req.GetToUserID()}, req.GetText())
	if errors.Is(err, chat.ErrRoomUnavailable) {
		return nil, status.Error(codes.FailedPrecondition, "message not sent, room no longer exists")
	}
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.SendMessageResponse{Message: toMessage(msg), Room: toRoomFor(room, who.UserID)}, nil
}

// MarkRead raises the caller's last-seen marker on a room.
func (s *Server) MarkRead(ctx context.Context, req *v1.MarkReadRequest) (*v1.MarkReadResponse, error) {
	who, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	room, err := s.chat.MarkRead(ctx, who, req.GetRoomID(), req.SeenAt)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.MarkReadResponse{Room: toRoomFor(room, who.UserID)}, nil
}

// CreateGroup creates a group owned by the caller and returns its invite link.
func (s *Server) CreateGroup(ctx context.Context, req *v1.CreateGroupRequest) (*v1.CreateGroupResponse, error) {
	who, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	room, err := s.chat.CreateGroup(ctx, who, req.Name)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.CreateGroupResponse{Room: toRoomFor(room, who.UserID), InviteLink: s.inviteLink(room.ID)}, nil
}

// JoinGroup adds the caller to the group named by an invite link.
func (s *Server) JoinGroup(ctx context.Context, req *v1.JoinGroupRequest) (*v1.JoinGroupResponse, error) {
	who, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	room, err := s.chat.JoinGroup(ctx, who, req.GetRoomID())
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.JoinGroupResponse{Room: toRoomFor(room, who.UserID)}, nil
}

// LeaveGroup removes the caller from a group they do not own.
func (s *Server) LeaveGroup(ctx context.Context, req *v1.LeaveGroupRequest) (*v1.LeaveGroupResponse, error) {
	who, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if _, err := s.chat.LeaveGroup(ctx, who, req.RoomID); err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.LeaveGroupResponse{}, nil
}

// DeleteGroup deletes a group and its log. Owner only.
func (s *Server) DeleteGroup(ctx context.Context, req *v1.DeleteGroupRequest) (*v1.DeleteGroupResponse, error) {
	who, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if err := s.chat.DeleteGroup(ctx, who, req.GetRoomID()); err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.DeleteGroupResponse{}, nil
}

// SetMuted mutes or unmutes a room's alerts for the caller.
func (s *Server) SetMuted(ctx context.Context, req *v1.SetMutedRequest) (*v1.SetMutedResponse, error) {
	who, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	st, err := s.chat.SetMuted(ctx, who, req.RoomID, req.Muted)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.SetMutedResponse{MutedRooms: nonNil(st.MutedRooms)}, nil
}

// GetSettings returns the caller's settings.
func (s *Server) GetSettings(ctx context.Context, _ *v1.GetSettingsRequest) (*v1.Settings, error) {
	who, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.chat.Settings(ctx, who)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.Settings{MutedRooms: nonNil(st.MutedRooms), DebounceMs: s.docs.Debounce.Milliseconds()}, nil
}

// CreateDocument starts a shared document and returns its share link.
func (s *Server) CreateDocument(ctx context.Context, req *v1.CreateDocumentRequest) (*v1.CreateDocumentResponse, error) {
	who, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	d, err := s.docs.Create(ctx, who.UserID, req.Text, req.Language)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.CreateDocumentResponse{Document: toDocument(d), ShareLink: s.shareLink(d.ID)}, nil
}

// GetDocument reads a document once.
func (s *Server) GetDocument(ctx context.Context, req *v1.GetDocumentRequest) (*v1.DocumentResponse, error) {
	if _, err := identity(ctx); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	d, err := s.docs.OpenSnapshot(ctx, req.DocumentID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.DocumentResponse{Document: toDocument(d)}, nil
}

// ForkDocument copies a document into a new one owned by the caller.
func (s *Server) ForkDocument(ctx context.Context, req *v1.ForkDocumentRequest) (*v1.CreateDocumentResponse, error) {
	who, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	d, err := s.docs.Fork(ctx, who.UserID, req.DocumentID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.CreateDocumentResponse{Document: toDocument(d), ShareLink: s.shareLink(d.ID)}, nil
}

// EditDocument overwrites a document. Any holder of the share link may edit.
func (s *Server) EditDocument(ctx context.Context, req *v1.EditDocumentRequest) (*v1.DocumentResponse, error) {
	if _, err := identity(ctx); err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	d, err := s.docs.Edit(ctx, req.DocumentID, data.DocumentEdit{
		Text:      req.Text,
		Language:  req.Language,
		LastInput: req.LastInput,
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &v1.DocumentResponse{Document: toDocument(d)}, nil
}

// ListRooms streams the caller's room list every time it changes.
func (s *Server) ListRooms(_ *v1.ListRoomsRequest, stream v1.ChatService_ListRoomsServer) error {
	ctx := stream.Context()
	who, err := identity(ctx)
	if err != nil {
		return err
	}
	return forward(s, stream, s.chat.ListRoomsFor(ctx, who), toRoomList)
}

// StreamMessages streams a room's log every time it changes.
func (s *Server) StreamMessages(req *v1.StreamMessagesRequest, stream v1.ChatService_StreamMessagesServer) error {
	ctx := stream.Context()
	who, err := identity(ctx)
	if err != nil {
		return err
	}
	if err := s.check(req); err != nil {
		return err
	}
	roomID := req.GetRoomID()
	return forward(s, stream, s.chat.StreamMessages(ctx, who, roomID), func(msgs []*data.Message) *v1.MessageList {
		return toMessageList(roomID, msgs)
	})
}

// OpenDocument streams a document in edit mode: its state now and after
// every write.
func (s *Server) OpenDocument(req *v1.OpenDocumentRequest, stream v1.ChatService_OpenDocumentServer) error {
	ctx := stream.Context()
	if _, err := identity(ctx); err != nil {
		return err
	}
	if err := s.check(req); err != nil {
		return err
	}
	return forward(s, stream, s.docs.OpenLive(ctx, req.DocumentID), func(d *data.Document) *v1.DocumentResponse {
		return &v1.DocumentResponse{Document: toDocument(d)}
	})
}

// WatchNotices delivers the caller's private notices until they disconnect.
func (s *Server) WatchNotices(_ *v1.WatchNoticesRequest, stream v1.ChatService_WatchNoticesServer) error {
	ctx := stream.Context()
	who, err := identity(ctx)
	if err != nil {
		return err
	}
	id := s.hub.Register(who.UserID, stream)
	defer s.hub.Unregister(who.UserID, id)

	<-ctx.Done()
	return nil
}

// forward sends every snapshot of a live query on stream until the client
// goes away or the query fails.
func forward[T, R any](s *Server, stream grpc.ServerStreamingServer[R], snaps <-chan feed.Snapshot[T], conv func(T) *R) error {
	for snap := range snaps {
		if snap.Err != nil {
			return s.toStatus(snap.Err)
		}
		if err := stream.Send(conv(snap.Value)); err != nil {
			return err
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
