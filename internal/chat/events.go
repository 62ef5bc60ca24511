package chat

import (
	"fmt"
	"time"
)

// Push event names carried on the gateway channels.
const (
	EventMessageSent = "message.sent"
	EventMessageRead = "message.read"
	EventTyping      = "client-typing" // whisper, never persisted
)

// UserChannel is the per-user channel name. It stays subscribed for the
// whole authenticated session and only feeds the unread counter.
func UserChannel(userID int) string {
	return fmt.Sprintf("private-user.%d", userID)
}

// ConversationChannel is the per-conversation channel name, subscribed
// only while the widget is open.
func ConversationChannel(conversationID int) string {
	return fmt.Sprintf("private-support-conversation.%d", conversationID)
}

// ReadBroadcast is the message.read event payload.
type ReadBroadcast struct {
	MessageIDs []int     `json:"messageIds"`
	ReadAt     time.Time `json:"readAt"`
	UserID     int       `json:"userId"`
}

// TypingSignal is the client-typing whisper payload.
type TypingSignal struct {
	UserID int `json:"userId"`
}
