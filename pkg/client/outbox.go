package client

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/classroom-chat/api/chat/v1"
)

// SendState is the lifecycle of an optimistic send.
type SendState int

const (
	Pending SendState = iota
	Confirmed
	Failed
)

func (s SendState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("SendState(%d)", int(s))
}

// Target addresses a send: a room, or a user for the direct room with them.
type Target struct {
	RoomID   string
	ToUserID string
}

// Outgoing is a message echoed locally before the server confirmed it.
type Outgoing struct {
	LocalID  string
	Target   Target
	Text     string
	State    SendState
	QueuedAt time.Time
	// Message is the stored message once Confirmed.
	Message *v1.Message
	// Err is why the send Failed.
	Err error
}

// SendError is returned by a failed send. Text is the original input, to be
// put back into the composer.
type SendError struct {
	LocalID string
	Text    string
	Err     error
}

func (e *SendError) Error() string { return "message not sent: " + e.Err.Error() }
func (e *SendError) Unwrap() error { return e.Err }

// Retryable reports whether sending again may succeed.
func (e *SendError) Retryable() bool {
	switch status.Code(e.Err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	}
	return false
}

// outbox holds sends that have not been confirmed: in flight or failed.
type outbox struct {
	mu      sync.Mutex
	entries map[string]*Outgoing
}

func newOutbox() *outbox {
	return &outbox{entries: make(map[string]*Outgoing)}
}

func (o *outbox) put(e *Outgoing) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries[e.LocalID] = e
}

// requeue moves a Failed entry back to Pending.
func (o *outbox) requeue(id string) (Outgoing, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[id]
	if !ok || e.State != Failed {
		return Outgoing{}, false
	}
	e.State, e.Err = Pending, nil
	return *e, true
}

// settle moves an entry out of Pending. Confirmed entries leave the outbox;
// the server's log carries them from now on.
func (o *outbox) settle(id string, msg *v1.Message, err error) Outgoing {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[id]
	if !ok {
		e = &Outgoing{LocalID: id}
	}
	if err != nil {
		e.State, e.Err = Failed, err
		return *e
	}
	e.State, e.Message, e.Err = Confirmed, msg, nil
	delete(o.entries, id)
	return *e
}

// remove drops a Failed entry.
func (o *outbox) remove(id string) (Outgoing, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[id]
	if !ok || e.State != Failed {
		return Outgoing{}, false
	}
	delete(o.entries, id)
	return *e, true
}

func (o *outbox) list() []Outgoing {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Outgoing, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Outgoing) int { return a.QueuedAt.Compare(b.QueuedAt) })
	return out
}

// Send echoes text locally as Pending and sends it. On success the entry is
// Confirmed and leaves the outbox. On failure it stays in the outbox as
// Failed and the returned *SendError carries the original text.
func (s *Session) Send(ctx context.Context, t Target, text string) (Outgoing, error) {
	e := &Outgoing{
		LocalID:  uuid.NewString(),
		Target:   t,
		Text:     text,
		State:    Pending,
		QueuedAt: time.Now(),
	}
	s.outbox.put(e)
	return s.deliver(ctx, e.LocalID, t, text)
}

// Retry sends a Failed entry again.
func (s *Session) Retry(ctx context.Context, localID string) (Outgoing, error) {
	e, ok := s.outbox.requeue(localID)
	if !ok {
		return Outgoing{}, fmt.Errorf("client: no failed send %q", localID)
	}
	return s.deliver(ctx, localID, e.Target, e.Text)
}

// Discard drops a Failed entry and returns its text.
func (s *Session) Discard(localID string) (string, bool) {
	e, ok := s.outbox.remove(localID)
	return e.Text, ok
}

// Outbox lists unconfirmed sends in the order they were made, for rendering
// next to the live message list.
func (s *Session) Outbox() []Outgoing { return s.outbox.list() }

func (s *Session) deliver(ctx context.Context, localID string, t Target, text string) (Outgoing, error) {
	res, err := s.api.SendMessage(ctx, &v1.SendMessageRequest{RoomID: t.RoomID, ToUserID: t.ToUserID, Text: text})
	if err != nil {
		e := s.outbox.settle(localID, nil, err)
		s.log.Debug("send failed", zap.String("local_id", localID), zap.Error(err))
		return e, &SendError{LocalID: localID, Text: text, Err: err}
	}
	return s.outbox.settle(localID, res.Message, nil), nil
}
