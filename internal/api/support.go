package api

import (
	"context"
	"fmt"
	"strconv"
)

// GetConversation fetches the current user's support conversation.
// The server creates the conversation on first access, so this never
// 404s for an authenticated user.
func (c *Client) GetConversation(ctx context.Context) (*Conversation, error) {
	var conv Conversation
	if err := c.Get(ctx, "/support/conversation", &conv); err != nil {
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	return &conv, nil
}

// ListMessages fetches the ordered message history for a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID int) ([]Message, error) {
	var result MessageList
	path := fmt.Sprintf("/support/conversations/%d/messages", conversationID)
	if err := c.Get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return result.Payload, nil
}

// CreateMessage sends content and an optional attachment as one atomic
// multipart request and returns the canonical server-assigned message.
// filename may be empty when the message is text only.
func (c *Client) CreateMessage(ctx context.Context, conversationID int, content, filename string, attachment []byte) (*Message, error) {
	fields := map[string]string{
		"conversationId": strconv.Itoa(conversationID),
	}
	if content != "" {
		fields["content"] = content
	}
	var msg Message
	path := fmt.Sprintf("/support/conversations/%d/messages", conversationID)
	if err := c.PostMultipart(ctx, path, fields, filename, attachment, &msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &msg, nil
}

// MarkRead marks the given message IDs as read for the current user.
func (c *Client) MarkRead(ctx context.Context, conversationID int, messageIDs []int) error {
	body := struct {
		MessageIDs []int `json:"messageIds"`
	}{MessageIDs: messageIDs}
	path := fmt.Sprintf("/support/conversations/%d/read", conversationID)
	if err := c.Post(ctx, path, body, nil); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// GetUnreadCount fetches the authoritative unread message count.
func (c *Client) GetUnreadCount(ctx context.Context) (int, error) {
	var result UnreadCount
	if err := c.Get(ctx, "/support/unread-count", &result); err != nil {
		return 0, fmt.Errorf("fetch unread count: %w", err)
	}
	return result.UnreadCount, nil
}
