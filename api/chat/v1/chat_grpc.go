package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "chat.v1.ChatService"

const (
	ChatService_SendMessage_FullMethodName    = "/chat.v1.ChatService/SendMessage"
	ChatService_MarkRead_FullMethodName       = "/chat.v1.ChatService/MarkRead"
	ChatService_CreateGroup_FullMethodName    = "/chat.v1.ChatService/CreateGroup"
	ChatService_JoinGroup_FullMethodName      = "/chat.v1.ChatService/JoinGroup"
	ChatService_LeaveGroup_FullMethodName     = "/chat.v1.ChatService/LeaveGroup"
	ChatService_DeleteGroup_FullMethodName    = "/chat.v1.ChatService/DeleteGroup"
	ChatService_SetMuted_FullMethodName       = "/chat.v1.ChatService/SetMuted"
	ChatService_GetSettings_FullMethodName    = "/chat.v1.ChatService/GetSettings"
	ChatService_CreateDocument_FullMethodName = "/chat.v1.ChatService/CreateDocument"
	ChatService_GetDocument_FullMethodName    = "/chat.v1.ChatService/GetDocument"
	ChatService_ForkDocument_FullMethodName   = "/chat.v1.ChatService/ForkDocument"
	ChatService_EditDocument_FullMethodName   = "/chat.v1.ChatService/EditDocument"
	ChatService_ListRooms_FullMethodName      = "/chat.v1.ChatService/ListRooms"
	ChatService_StreamMessages_FullMethodName = "/chat.v1.ChatService/StreamMessages"
	ChatService_OpenDocument_FullMethodName   = "/chat.v1.ChatService/OpenDocument"
	ChatService_WatchNotices_FullMethodName   = "/chat.v1.ChatService/WatchNotices"
)

type (
	ChatService_ListRoomsServer      = grpc.ServerStreamingServer[RoomList]
	ChatService_StreamMessagesServer = grpc.ServerStreamingServer[MessageList]
	ChatService_OpenDocumentServer   = grpc.ServerStreamingServer[DocumentResponse]
	ChatService_WatchNoticesServer   = grpc.ServerStreamingServer[Notice]
)

// ChatServiceServer is the server API for ChatService.
// Implementations must embed UnimplementedChatServiceServer.
type ChatServiceServer interface {
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	CreateGroup(context.Context, *CreateGroupRequest) (*CreateGroupResponse, error)
	JoinGroup(context.Context, *JoinGroupRequest) (*JoinGroupResponse, error)
	LeaveGroup(context.Context, *LeaveGroupRequest) (*LeaveGroupResponse, error)
	DeleteGroup(context.Context, *DeleteGroupRequest) (*DeleteGroupResponse, error)
	SetMuted(context.Context, *SetMutedRequest) (*SetMutedResponse, error)
	GetSettings(context.Context, *GetSettingsRequest) (*Settings, error)
	CreateDocument(context.Context, *CreateDocumentRequest) (*CreateDocumentResponse, error)
	GetDocument(context.Context, *GetDocumentRequest) (*DocumentResponse, error)
	ForkDocument(context.Context, *ForkDocumentRequest) (*CreateDocumentResponse, error)
	EditDocument(context.Context, *EditDocumentRequest) (*DocumentResponse, error)
	ListRooms(*ListRoomsRequest, ChatService_ListRoomsServer) error
	StreamMessages(*StreamMessagesRequest, ChatService_StreamMessagesServer) error
	OpenDocument(*OpenDocumentRequest, ChatService_OpenDocumentServer) error
	WatchNotices(*WatchNoticesRequest, ChatService_WatchNoticesServer) error
	mustEmbedUnimplementedChatServiceServer()
}

// UnimplementedChatServiceServer must be embedded to have forward compatible implementations.
type UnimplementedChatServiceServer struct{}

func (UnimplementedChatServiceServer) SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SendMessage not implemented")
}
func (UnimplementedChatServiceServer) MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method MarkRead not implemented")
}
func (UnimplementedChatServiceServer) CreateGroup(context.Context, *CreateGroupRequest) (*CreateGroupResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateGroup not implemented")
}
func (UnimplementedChatServiceServer) JoinGroup(context.Context, *JoinGroupRequest) (*JoinGroupResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method JoinGroup not implemented")
}
func (UnimplementedChatServiceServer) LeaveGroup(context.Context, *LeaveGroupRequest) (*LeaveGroupResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method LeaveGroup not implemented")
}
func (UnimplementedChatServiceServer) DeleteGroup(context.Context, *DeleteGroupRequest) (*DeleteGroupResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DeleteGroup not implemented")
}
func (UnimplementedChatServiceServer) SetMuted(context.Context, *SetMutedRequest) (*SetMutedResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetMuted not implemented")
}
func (UnimplementedChatServiceServer) GetSettings(context.Context, *GetSettingsRequest) (*Settings, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetSettings not implemented")
}
func (UnimplementedChatServiceServer) CreateDocument(context.Context, *CreateDocumentRequest) (*CreateDocumentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateDocument not implemented")
}
func (UnimplementedChatServiceServer) GetDocument(context.Context, *GetDocumentRequest) (*DocumentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetDocument not implemented")
}
func (UnimplementedChatServiceServer) ForkDocument(context.Context, *ForkDocumentRequest) (*CreateDocumentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ForkDocument not implemented")
}
func (UnimplementedChatServiceServer) EditDocument(context.Context, *EditDocumentRequest) (*DocumentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method EditDocument not implemented")
}
func (UnimplementedChatServiceServer) ListRooms(*ListRoomsRequest, ChatService_ListRoomsServer) error {
	return status.Errorf(codes.Unimplemented, "method ListRooms not implemented")
}
func (UnimplementedChatServiceServer) StreamMessages(*StreamMessagesRequest, ChatService_StreamMessagesServer) error {
	return status.Errorf(codes.Unimplemented, "method StreamMessages not implemented")
}
func (UnimplementedChatServiceServer) OpenDocument(*OpenDocumentRequest, ChatService_OpenDocumentServer) error {
	return status.Errorf(codes.Unimplemented, "method OpenDocument not implemented")
}
func (UnimplementedChatServiceServer) WatchNotices(*WatchNoticesRequest, ChatService_WatchNoticesServer) error {
	return status.Errorf(codes.Unimplemented, "method WatchNotices not implemented")
}
func (UnimplementedChatServiceServer) mustEmbedUnimplementedChatServiceServer() {}

// RegisterChatServiceServer registers srv on s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

func unaryHandler[Req, Res any](fullMethod string, call func(ChatServiceServer, context.Context, *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ChatServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ChatServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func serverStreamHandler[Req, Res any](call func(ChatServiceServer, *Req, grpc.ServerStreamingServer[Res]) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(Req)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return call(srv.(ChatServiceServer), in, &grpc.GenericServerStream[Req, Res]{ServerStream: stream})
	}
}

// ChatService_ServiceDesc is the grpc.ServiceDesc for ChatService.
var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendMessage", Handler: unaryHandler(ChatService_SendMessage_FullMethodName, ChatServiceServer.SendMessage)},
		{MethodName: "MarkRead", Handler: unaryHandler(ChatService_MarkRead_FullMethodName, ChatServiceServer.MarkRead)},
		{MethodName: "CreateGroup", Handler: unaryHandler(ChatService_CreateGroup_FullMethodName, ChatServiceServer.CreateGroup)},
		{MethodName: "JoinGroup", Handler: unaryHandler(ChatService_JoinGroup_FullMethodName, ChatServiceServer.JoinGroup)},
		{MethodName: "LeaveGroup", Handler: unaryHandler(ChatService_LeaveGroup_FullMethodName, ChatServiceServer.LeaveGroup)},
		{MethodName: "DeleteGroup", Handler: unaryHandler(ChatService_DeleteGroup_FullMethodName, ChatServiceServer.DeleteGroup)},
		{MethodName: "SetMuted", Handler: unaryHandler(ChatService_SetMuted_FullMethodName, ChatServiceServer.SetMuted)},
		{MethodName: "GetSettings", Handler: unaryHandler(ChatService_GetSettings_FullMethodName, ChatServiceServer.GetSettings)},
		{MethodName: "CreateDocument", Handler: unaryHandler(ChatService_CreateDocument_FullMethodName, ChatServiceServer.CreateDocument)},
		{MethodName: "GetDocument", Handler: unaryHandler(ChatService_GetDocument_FullMethodName, ChatServiceServer.GetDocument)},
		{MethodName: "ForkDocument", Handler: unaryHandler(ChatService_ForkDocument_FullMethodName, ChatServiceServer.ForkDocument)},
		{MethodName: "EditDocument", Handler: unaryHandler(ChatService_EditDocument_FullMethodName, ChatServiceServer.EditDocument)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "ListRooms", Handler: serverStreamHandler(ChatServiceServer.ListRooms), ServerStreams: true},
		{StreamName: "StreamMessages", Handler: serverStreamHandler(ChatServiceServer.StreamMessages), ServerStreams: true},
		{StreamName: "OpenDocument", Handler: serverStreamHandler(ChatServiceServer.OpenDocument), ServerStreams: true},
		{StreamName: "WatchNotices", Handler: serverStreamHandler(ChatServiceServer.WatchNotices), ServerStreams: true},
	},
	Metadata: "chat/v1/chat.proto",
}

// ChatServiceClient is the client API for ChatService.
type ChatServiceClient interface {
	SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error)
	MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error)
	CreateGroup(ctx context.Context, in *CreateGroupRequest, opts ...grpc.CallOption) (*CreateGroupResponse, error)
	JoinGroup(ctx context.Context, in *JoinGroupRequest, opts ...grpc.CallOption) (*JoinGroupResponse, error)
	LeaveGroup(ctx context.Context, in *LeaveGroupRequest, opts ...grpc.CallOption) (*LeaveGroupResponse, error)
	DeleteGroup(ctx context.Context, in *DeleteGroupRequest, opts ...grpc.CallOption) (*DeleteGroupResponse, error)
	SetMuted(ctx context.Context, in *SetMutedRequest, opts ...grpc.CallOption) (*SetMutedResponse, error)
	GetSettings(ctx context.Context, in *GetSettingsRequest, opts ...grpc.CallOption) (*Settings, error)
	CreateDocument(ctx context.Context, in *CreateDocumentRequest, opts ...grpc.CallOption) (*CreateDocumentResponse, error)
	GetDocument(ctx context.Context, in *GetDocumentRequest, opts ...grpc.CallOption) (*DocumentResponse, error)
	ForkDocument(ctx context.Context, in *ForkDocumentRequest, opts ...grpc.CallOption) (*CreateDocumentResponse, error)
	EditDocument(ctx context.Context, in *EditDocumentRequest, opts ...grpc.CallOption) (*DocumentResponse, error)
	ListRooms(ctx context.Context, in *ListRoomsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[RoomList], error)
	StreamMessages(ctx context.Context, in *StreamMessagesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[MessageList], error)
	OpenDocument(ctx context.Context, in *OpenDocumentRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[DocumentResponse], error)
	WatchNotices(ctx context.Context, in *WatchNoticesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Notice], error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc}
}

func invoke[Req, Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	if err := cc.Invoke(ctx, method, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func openServerStream[Req, Res any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in *Req, opts []grpc.CallOption) (grpc.ServerStreamingClient[Res], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	stream, err := cc.NewStream(ctx, desc, method, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, Res]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *chatServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[SendMessageRequest, SendMessageResponse](ctx, c.cc, ChatService_SendMessage_FullMethodName, in, opts)
}

func (c *chatServiceClient) MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error) {
	return invoke[MarkReadRequest, MarkReadResponse](ctx, c.cc, ChatService_MarkRead_FullMethodName, in, opts)
}

func (c *chatServiceClient) CreateGroup(ctx context.Context, in *CreateGroupRequest, opts ...grpc.CallOption) (*CreateGroupResponse, error) {
	return invoke[CreateGroupRequest, CreateGroupResponse](ctx, c.cc, ChatService_CreateGroup_FullMethodName, in, opts)
}

func (c *chatServiceClient) JoinGroup(ctx context.Context, in *JoinGroupRequest, opts ...grpc.CallOption) (*JoinGroupResponse, error) {
	return invoke[JoinGroupRequest, JoinGroupResponse](ctx, c.cc, ChatService_JoinGroup_FullMethodName, in, opts)
}

func (c *chatServiceClient) LeaveGroup(ctx context.Context, in *LeaveGroupRequest, opts ...grpc.CallOption) (*LeaveGroupResponse, error) {
	return invoke[LeaveGroupRequest, LeaveGroupResponse](ctx, c.cc, ChatService_LeaveGroup_FullMethodName, in, opts)
}

func (c *chatServiceClient) DeleteGroup(ctx context.Context, in *DeleteGroupRequest, opts ...grpc.CallOption) (*DeleteGroupResponse, error) {
	return invoke[DeleteGroupRequest, DeleteGroupResponse](ctx, c.cc, ChatService_DeleteGroup_FullMethodName, in, opts)
}

func (c *chatServiceClient) SetMuted(ctx context.Context, in *SetMutedRequest, opts ...grpc.CallOption) (*SetMutedResponse, error) {
	return invoke[SetMutedRequest, SetMutedResponse](ctx, c.cc, ChatService_SetMuted_FullMethodName, in, opts)
}

func (c *chatServiceClient) GetSettings(ctx context.Context, in *GetSettingsRequest, opts ...grpc.CallOption) (*Settings, error) {
	return invoke[GetSettingsRequest, Settings](ctx, c.cc, ChatService_GetSettings_FullMethodName, in, opts)
}

func (c *chatServiceClient) CreateDocument(ctx context.Context, in *CreateDocumentRequest, opts ...grpc.CallOption) (*CreateDocumentResponse, error) {
	return invoke[CreateDocumentRequest, CreateDocumentResponse](ctx, c.cc, ChatService_CreateDocument_FullMethodName, in, opts)
}

func (c *chatServiceClient) GetDocument(ctx context.Context, in *GetDocumentRequest, opts ...grpc.CallOption) (*DocumentResponse, error) {
	return invoke[GetDocumentRequest, DocumentResponse](ctx, c.cc, ChatService_GetDocument_FullMethodName, in, opts)
}

func (c *chatServiceClient) ForkDocument(ctx context.Context, in *ForkDocumentRequest, opts ...grpc.CallOption) (*CreateDocumentResponse, error) {
	return invoke[ForkDocumentRequest, CreateDocumentResponse](ctx, c.cc, ChatService_ForkDocument_FullMethodName, in, opts)
}

func (c *chatServiceClient) EditDocument(ctx context.Context, in *EditDocumentRequest, opts ...grpc.CallOption) (*DocumentResponse, error) {
	return invoke[EditDocumentRequest, DocumentResponse](ctx, c.cc, ChatService_EditDocument_FullMethodName, in, opts)
}

func (c *chatServiceClient) ListRooms(ctx context.Context, in *ListRoomsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[RoomList], error) {
	return openServerStream[ListRoomsRequest, RoomList](ctx, c.cc, &ChatService_ServiceDesc.Streams[0], ChatService_ListRooms_FullMethodName, in, opts)
}

func (c *chatServiceClient) StreamMessages(ctx context.Context, in *StreamMessagesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[MessageList], error) {
	return openServerStream[StreamMessagesRequest, MessageList](ctx, c.cc, &ChatService_ServiceDesc.Streams[1], ChatService_StreamMessages_FullMethodName, in, opts)
}

func (c *chatServiceClient) OpenDocument(ctx context.Context, in *OpenDocumentRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[DocumentResponse], error) {
	return openServerStream[OpenDocumentRequest, DocumentResponse](ctx, c.cc, &ChatService_ServiceDesc.Streams[2], ChatService_OpenDocument_FullMethodName, in, opts)
}

func (c *chatServiceClient) WatchNotices(ctx context.Context, in *WatchNoticesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Notice], error) {
	return openServerStream[WatchNoticesRequest, Notice](ctx, c.cc, &ChatService_ServiceDesc.Streams[3], ChatService_WatchNotices_FullMethodName, in, opts)
}
