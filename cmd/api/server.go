package main

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	v1 "github.com/PaulBabatuyi/classroom-chat/api/chat/v1"
	"github.com/PaulBabatuyi/classroom-chat/internal/chat"
	"github.com/PaulBabatuyi/classroom-chat/internal/collab"
)

// Server implements the chat service on top of the chat core and the
// document replicator.
type Server struct {
	v1.UnimplementedChatServiceServer

	chat      *chat.Service
	docs      *collab.Service
	hub       *ConnectionHub
	validate  *validator.Validate
	publicURL string
	log       *zap.Logger
}

// newServer returns a ready-to-use Server. publicURL is the web client base
// that invite and share links point at.
func newServer(chatSvc *chat.Service, docs *collab.Service, hub *ConnectionHub, publicURL string, log *zap.Logger) *Server {
	return &Server{
		chat:      chatSvc,
		docs:      docs,
		hub:       hub,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		publicURL: strings.TrimSuffix(publicURL, "/"),
		log:       log,
	}
}

// registerService registers the ChatService on the given gRPC server.
func registerService(s *grpc.Server, srv *Server) {
	v1.RegisterChatServiceServer(s, srv)
}

// inviteLink is the URL a group invite is shared as; the room id travels in
// the "room" query parameter.
func (s *Server) inviteLink(roomID string) string {
	return s.publicURL + "/chat?" + url.Values{"room": {roomID}}.Encode()
}

// shareLink is the URL a shared document is opened with.
func (s *Server) shareLink(docID string) string {
	return s.publicURL + "/sandbox?" + url.Values{"doc": {docID}}.Encode()
}
