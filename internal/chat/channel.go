package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/classroom-chat/internal/data"
	"github.com/PaulBabatuyi/classroom-chat/internal/events"
	"github.com/PaulBabatuyi/classroom-chat/internal/feed"
	"github.com/PaulBabatuyi/classroom-chat/internal/metrics"
	"github.com/PaulBabatuyi/classroom-chat/internal/moderation"
)

// MaxMessageLength bounds a message in characters.
const MaxMessageLength = 4000

const previewLength = 140

// Target addresses a send: either a user (direct room) or a room id.
type Target struct {
	RoomID   string
	ToUserID string
}

// resolve turns a target into the room id and the send batch preconditions.
func (s *Service) resolve(who Identity, t Target) (data.SendBatch, data.Kind, error) {
	b := data.SendBatch{SenderID: who.UserID, SenderName: who.Name}

	if t.ToUserID != "" {
		if t.ToUserID == who.UserID {
			return b, "", fmt.Errorf("%w: cannot message yourself", ErrInvalidArgument)
		}
		t.RoomID = ResolveDirect(who.UserID, t.ToUserID)
	}
	if t.RoomID == "" {
		return b, "", fmt.Errorf("%w: room_id or to_user_id is required", ErrInvalidArgument)
	}
	b.RoomID = t.RoomID

	kind, other := kindOf(who, t.RoomID)
	switch kind {
	case data.KindDirect:
		b.Create = &data.Room{
			TenantID:     who.TenantID,
			Kind:         data.KindDirect,
			Participants: []string{who.UserID, other},
		}
		b.MemberOnly = true
	case data.KindGeneral:
		b.Create = &data.Room{TenantID: who.TenantID, Kind: data.KindGeneral, Name: GeneralRoomName}
	default:
		b.MemberOnly = true
	}
	return b, kind, nil
}

// Send appends a message to a room, creating direct and general rooms on
// their first message. The message, the room's lastMessage preview and the
// sender's lastSeen commit together. Moderation and alerts run afterwards,
// detached from the caller.
func (s *Service) Send(ctx context.Context, who Identity, t Target, text string) (*data.Message, *data.Room, error) {
	ctx, span := s.tracer.Start(ctx, "chat.Send")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > MaxMessageLength {
		metrics.SendFailures.WithLabelValues("invalid").Inc()
		return nil, nil, fmt.Errorf("%w: text must be 1..%d characters", ErrInvalidArgument, MaxMessageLength)
	}

	b, kind, err := s.resolve(who, t)
	if err != nil {
		metrics.SendFailures.WithLabelValues("invalid").Inc()
		return nil, nil, err
	}
	b.Text = text
	span.SetAttributes(attribute.String("room.id", b.RoomID), attribute.String("room.kind", string(kind)))

	start := time.Now()
	msg, room, err := s.store.CommitSend(ctx, b)
	metrics.SendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		switch {
		case errors.Is(err, data.ErrNotMember):
			metrics.SendFailures.WithLabelValues("unauthorized").Inc()
			return nil, nil, fmt.Errorf("send: %w", ErrUnauthorized)
		case errors.Is(err, data.ErrRoomUnavailable):
			metrics.SendFailures.WithLabelValues("room_unavailable").Inc()
		case data.IsTransient(err):
			metrics.SendFailures.WithLabelValues("transient").Inc()
		default:
			metrics.SendFailures.WithLabelValues("store").Inc()
		}
		return nil, nil, fmt.Errorf("send: %w", err)
	}
	metrics.MessagesSent.WithLabelValues(string(room.Kind)).Inc()

	if room.Kind != data.KindDirect {
		s.moderate(ctx, who, room, msg)
	}
	s.alert(ctx, room, msg)
	return msg, room, nil
}

// moderate dispatches the classifier and turns flagged verdicts into a notice
// for the sender.
func (s *Service) moderate(ctx context.Context, who Identity, room *data.Room, msg *data.Message) {
	roomID, msgID := room.ID, msg.ID
	s.moderation.Dispatch(ctx, msg.Text, room.Name, func(v moderation.Verdict) {
		kind := "off_topic"
		if v.IsViolation {
			kind = "violation"
		}
		s.log.Info("message flagged",
			zap.String("room_id", roomID),
			zap.String("message_id", msgID),
			zap.String("kind", kind),
		)
		if s.notices == nil {
			return
		}
		s.notices.Notify(who.UserID, Notice{
			ID:        uuid.NewString(),
			RoomID:    roomID,
			MessageID: msgID,
			Kind:      kind,
			Reason:    v.Reason,
			CreatedAt: time.Now().UTC(),
		})
	})
}

// alert publishes the out-of-band alert for a committed message. Users that
// muted the room are left out; failures are logged only.
func (s *Service) alert(ctx context.Context, room *data.Room, msg *data.Message) {
	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(detached, 10*time.Second)
		defer cancel()

		muted, err := s.mutedBy(ctx, room.ID)
		if err != nil {
			metrics.AlertsPublished.WithLabelValues("error").Inc()
			s.log.Warn("alert skipped, mute lookup failed", zap.String("room_id", room.ID), zap.Error(err))
			return
		}

		a := events.Alert{
			RoomID:     room.ID,
			RoomKind:   string(room.Kind),
			TenantID:   room.TenantID,
			MessageID:  msg.ID,
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Preview:    preview(msg.Text),
			SentAt:     msg.CreatedAt,
		}
		if room.Kind == data.KindGeneral {
			a.Excluded = append(slices.Clone(muted), msg.SenderID)
		} else {
			for _, p := range room.Participants {
				if p != msg.SenderID && !slices.Contains(muted, p) {
					a.Recipients = append(a.Recipients, p)
				}
			}
			if len(a.Recipients) == 0 {
				metrics.AlertsPublished.WithLabelValues("suppressed").Inc()
				return
			}
		}

		if err := s.alerts.PublishAlert(ctx, a); err != nil {
			metrics.AlertsPublished.WithLabelValues("error").Inc()
			s.log.Warn("alert publish failed", zap.String("room_id", room.ID), zap.Error(err))
			return
		}
		metrics.AlertsPublished.WithLabelValues("ok").Inc()
	}()
}

// StreamMessages streams a room's log ordered by creation time. Direct and
// general rooms that do not exist yet stream an empty log until their first
// message. A room that disappears (or a group that never existed) ends the
// stream with ErrNotFound.
func (s *Service) StreamMessages(ctx context.Context, who Identity, roomID string) <-chan feed.Snapshot[[]*data.Message] {
	kind, _ := kindOf(who, roomID)
	seen := false
	topics := []string{data.MessagesTopic(roomID), data.RoomTopic(roomID)}

	return feed.Watch(ctx, s.store.Notifier(), topics, func(ctx context.Context) ([]*data.Message, error) {
		room, err := s.store.GetRoom(ctx, roomID)
		switch {
		case errors.Is(err, data.ErrNotFound):
			if seen || !isLazy(kind) {
				return nil, ErrNotFound
			}
			return []*data.Message{}, nil
		case err != nil:
			return nil, err
		}
		if !canRead(who, room) {
			return nil, ErrUnauthorized
		}
		seen = true
		return s.store.ListMessages(ctx, roomID)
	})
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	r := []rune(text)
	return string(r[:previewLength]) + "…"
}
