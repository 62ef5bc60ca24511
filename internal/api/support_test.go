package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, "test-token")
}

func TestGetConversation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/support/conversation", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"userId":42,"status":"open"}`))
	})

	conv, err := c.GetConversation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, conv.ID)
	assert.Equal(t, 42, conv.UserID)
	assert.Equal(t, "open", conv.Status)
}

func TestListMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/support/conversations/7/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payload":[
			{"id":1,"conversationId":7,"senderId":9,"senderType":"agent","content":"hello","createdAt":"2026-08-01T10:00:00Z"},
			{"id":2,"conversationId":7,"senderId":42,"senderType":"user","content":"hi","readAt":"2026-08-01T10:01:00Z","createdAt":"2026-08-01T10:00:30Z"}
		]}`))
	})

	msgs, err := c.ListMessages(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, SenderTypeAgent, msgs[0].SenderType)
	assert.Nil(t, msgs[0].ReadAt)
	require.NotNil(t, msgs[1].ReadAt)
}

func TestCreateMessageMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/support/conversations/7/messages", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(32<<20))

		assert.Equal(t, "7", r.FormValue("conversationId"))
		assert.Equal(t, "see attached", r.FormValue("content"))

		file, header, err := r.FormFile("attachment")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cv.pdf", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":100,"conversationId":7,"senderId":42,"senderType":"user","content":"see attached","attachmentName":"cv.pdf","createdAt":"2026-08-01T10:00:00Z"}`))
	})

	msg, err := c.CreateMessage(context.Background(), 7, "see attached", "cv.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, 100, msg.ID)
	assert.Equal(t, "cv.pdf", msg.AttachmentName)
	assert.True(t, msg.HasAttachment())
}

func TestCreateMessageTextOnlySendsNoFilePart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		_, _, err := r.FormFile("attachment")
		assert.Error(t, err, "text-only message must not carry a file part")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":101,"conversationId":7,"senderId":42,"senderType":"user","content":"just text","createdAt":"2026-08-01T10:00:00Z"}`))
	})

	msg, err := c.CreateMessage(context.Background(), 7, "just text", "", nil)
	require.NoError(t, err)
	assert.False(t, msg.HasAttachment())
}

func TestMarkRead(t *testing.T) {
	var got struct {
		MessageIDs []int `json:"messageIds"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/support/conversations/7/read", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.MarkRead(context.Background(), 7, []int{1, 2, 5}))
	assert.Equal(t, []int{1, 2, 5}, got.MessageIDs)
}

func TestGetUnreadCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/support/unread-count", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unreadCount":3}`))
	})

	n, err := c.GetUnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAPIErrorCarriesStatusAndRequestID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req-123")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token expired"}`))
	})

	_, err := c.GetConversation(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "token expired", apiErr.Body)
	assert.Equal(t, "req-123", apiErr.RequestID)
}

func TestErrorBodyRedactedWhenNotJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<html>stack trace with secrets</html>`))
	})

	_, err := c.GetUnreadCount(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.NotContains(t, apiErr.Body, "secrets")
	assert.Contains(t, apiErr.Body, "redacted")
}

func TestNoRetryOnServerError(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream down"}`))
	})

	_, err := c.GetConversation(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls, "client must not retry on its own")
}

func TestUserAgentHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "supportchat-cli/test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unreadCount":0}`))
	})
	c.UserAgent = "supportchat-cli/test"

	_, err := c.GetUnreadCount(context.Background())
	require.NoError(t, err)
}
