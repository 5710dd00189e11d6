package main

import (
	"sync"

	"go.uber.org/zap"

	v1 "github.com/PaulBabatuyi/classroom-chat/api/chat/v1"
	"github.com/PaulBabatuyi/classroom-chat/internal/chat"
	"github.com/PaulBabatuyi/classroom-chat/internal/metrics"
)

// StreamSender defines the minimal interface the hub needs from a stream: the
// ability to send notices to the connected client.
type StreamSender interface {
	Send(*v1.Notice) error
}

// conn serializes sends on one stream; gRPC streams are not safe for
// concurrent Send.
type conn struct {
	mu sync.Mutex
	s  StreamSender
}

// ConnectionHub manages the notice streams of connected users. A user may
// have several sessions open; every one of them receives the user's notices.
type ConnectionHub struct {
	mu      sync.RWMutex
	streams map[string]map[int64]*conn
	nextID  int64
	log     *zap.Logger
}

// NewConnectionHub creates a new hub instance.
func NewConnectionHub(log *zap.Logger) *ConnectionHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConnectionHub{streams: make(map[string]map[int64]*conn), log: log.Named("hub")}
}

// Register registers a stream for userID and returns a connection id to
// unregister it with when the stream closes.
func (h *ConnectionHub) Register(userID string, s StreamSender) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.streams[userID]; !ok {
		h.streams[userID] = make(map[int64]*conn)
	}
	h.nextID++
	id := h.nextID
	h.streams[userID][id] = &conn{s: s}
	metrics.ConnectedStreams.Inc()
	return id
}

// Unregister removes a previously registered stream. Unknown ids are ignored.
func (h *ConnectionHub) Unregister(userID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.streams[userID]
	if !ok {
		return
	}
	if _, ok := conns[id]; !ok {
		return
	}
	delete(conns, id)
	metrics.ConnectedStreams.Dec()
	if len(conns) == 0 {
		delete(h.streams, userID)
	}
}

// Connected reports how many streams userID has open.
func (h *ConnectionHub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[userID])
}

// SendToUser delivers n to every stream of userID, best effort. Streams that
// fail are unregistered. It returns the number of streams reached.
func (h *ConnectionHub) SendToUser(userID string, n *v1.Notice) int {
	h.mu.RLock()
	targets := make(map[int64]*conn, len(h.streams[userID]))
	for id, c := range h.streams[userID] {
		targets[id] = c
	}
	h.mu.RUnlock()

	var failed []int64
	for id, c := range targets {
		c.mu.Lock()
		err := c.s.Send(n)
		c.mu.Unlock()
		if err != nil {
			h.log.Debug("notice delivery failed", zap.String("user_id", userID), zap.Int64("conn_id", id), zap.Error(err))
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		h.Unregister(userID, id)
	}
	return len(targets) - len(failed)
}

// Notify implements chat.NoticeSink. Notices for users without an open
// session are dropped; they are advisory only.
func (h *ConnectionHub) Notify(userID string, n chat.Notice) {
	if h.SendToUser(userID, toNotice(n)) == 0 {
		h.log.Debug("notice dropped, user offline", zap.String("user_id", userID), zap.String("notice_id", n.ID))
	}
}

var _ chat.NoticeSink = (*ConnectionHub)(nil)
