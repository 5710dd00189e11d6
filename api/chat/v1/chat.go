package v1

import "time"

// Room kinds as they appear on the wire.
const (
	KindDirect  = "direct"
	KindGroup   = "group"
	KindGeneral = "general"
)

type LastMessage struct {
	Text      string    `json:"text"`
	SenderID  string    `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

type Room struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenant_id"`
	Kind         string       `json:"kind"`
	Name         string       `json:"name"`
	OwnerID      string       `json:"owner_id,omitempty"`
	Participants []string     `json:"participants,omitempty"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	Unread       bool         `json:"unread"`
	Muted        bool         `json:"muted"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

type Document struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	LastInput string    `json:"last_input"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notice is a message addressed to a single user, such as a moderation warning
// about something they sent.
type Notice struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	RoomID    string    `json:"room_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	RoomID   string `json:"room_id,omitempty"`
	ToUserID string `json:"to_user_id,omitempty"`
	Text     string `json:"text" validate:"required,max=4000"`
}

func (r *SendMessageRequest) GetRoomID() string {
	if r == nil {
		return ""
	}
	return r.RoomID
}

func (r *SendMessageRequest) GetToUserID() string {
	if r == nil {
		return ""
	}
	return r.ToUserID
}

func (r *SendMessageRequest) GetText() string {
	if r == nil {
		return ""
	}
	return r.Text
}

type SendMessageResponse struct {
	Message *Message `json:"message"`
	Room    *Room    `json:"room"`
}

type MarkReadRequest struct {
	RoomID string `json:"room_id" validate:"required"`
	// SeenAt is an optional high-water mark; the server clamps it to its own clock.
	SeenAt time.Time `json:"seen_at,omitempty"`
}

func (r *MarkReadRequest) GetRoomID() string {
	if r == nil {
		return ""
	}
	return r.RoomID
}

type MarkReadResponse struct {
	Room *Room `json:"room"`
}

type CreateGroupRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type CreateGroupResponse struct {
	Room       *Room  `json:"room"`
	InviteLink string `json:"invite_link"`
}

type JoinGroupRequest struct {
	RoomID string `json:"room_id" validate:"required"`
}

func (r *JoinGroupRequest) GetRoomID() string {
	if r == nil {
		return ""
	}
	return r.RoomID
}

type JoinGroupResponse struct {
	Room *Room `json:"room"`
}

type LeaveGroupRequest struct {
	RoomID string `json:"room_id" validate:"required"`
}

type LeaveGroupResponse struct{}

type DeleteGroupRequest struct {
	RoomID string `json:"room_id" validate:"required"`
}

func (r *DeleteGroupRequest) GetRoomID() string {
	if r == nil {
		return ""
	}
	return r.RoomID
}

type DeleteGroupResponse struct{}

type SetMutedRequest struct {
	RoomID string `json:"room_id" validate:"required"`
	Muted  bool   `json:"muted"`
}

type SetMutedResponse struct {
	MutedRooms []string `json:"muted_rooms"`
}

type GetSettingsRequest struct{}

type Settings struct {
	MutedRooms []string `json:"muted_rooms"`
	// DebounceMs is the document keystroke window the server recommends.
	DebounceMs int64 `json:"debounce_ms"`
}

type ListRoomsRequest struct{}

type RoomList struct {
	Rooms []*Room `json:"rooms"`
}

type StreamMessagesRequest struct {
	RoomID string `json:"room_id" validate:"required"`
}

func (r *StreamMessagesRequest) GetRoomID() string {
	if r == nil {
		return ""
	}
	return r.RoomID
}

type MessageList struct {
	RoomID   string     `json:"room_id"`
	Messages []*Message `json:"messages"`
}

type CreateDocumentRequest struct {
	Text     string `json:"text"`
	Language string `json:"language" validate:"max=40"`
}

type CreateDocumentResponse struct {
	Document  *Document `json:"document"`
	ShareLink string    `json:"share_link"`
}

type GetDocumentRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
}

type OpenDocumentRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
}

type ForkDocumentRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
}

type EditDocumentRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
	Text       string `json:"text" validate:"max=200000"`
	Language   string `json:"language,omitempty" validate:"max=40"`
	LastInput  string `json:"last_input,omitempty"`
}

type DocumentResponse struct {
	Document *Document `json:"document"`
}

type WatchNoticesRequest struct{}
