package api

import "time"

// Sender type constants
const (
	SenderTypeUser  = "user"  // portal employer user
	SenderTypeAgent = "agent" // support agent
)

// MaxAttachmentSize is the upload ceiling enforced locally before any
// network round trip is spent on the file.
const MaxAttachmentSize = 10 * 1024 * 1024 // 10MB

// Sender carries optional display info for a message sender.
type Sender struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Message is a support-conversation message as returned by the portal API
// and by push delivery. Server-assigned IDs are unique within a conversation.
// Content and attachment fields are set at creation and never change; only
// ReadAt transitions, from nil to a timestamp.
type Message struct {
	ID             int        `json:"id"`
	ConversationID int        `json:"conversationId"`
	SenderID       int        `json:"senderId"`
	SenderType     string     `json:"senderType"`
	Content        string     `json:"content,omitempty"`
	AttachmentURL  string     `json:"attachmentUrl,omitempty"`
	AttachmentName string     `json:"attachmentName,omitempty"`
	AttachmentType string     `json:"attachmentType,omitempty"`
	AttachmentSize int64      `json:"attachmentSize,omitempty"`
	IsImage        bool       `json:"isImage,omitempty"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	Sender         *Sender    `json:"sender,omitempty"`
}

// HasAttachment reports whether the message carries a file.
func (m *Message) HasAttachment() bool {
	return m.AttachmentURL != "" || m.AttachmentName != ""
}

// Conversation is the per-user support conversation. The server creates it
// lazily on first access; there is at most one per user.
type Conversation struct {
	ID            int        `json:"id"`
	UserID        int        `json:"userId"`
	AgentID       *int       `json:"agentId,omitempty"`
	Status        string     `json:"status"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
}

// MessageList is the messages endpoint response envelope.
type MessageList struct {
	Payload []Message `json:"payload"`
}

// UnreadCount is the unread-count endpoint response.
type UnreadCount struct {
	UnreadCount int `json:"unreadCount"`
}
