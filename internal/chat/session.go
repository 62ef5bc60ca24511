// Package chat implements the support-chat widget's synchronization core:
// one conversation's message log, read receipts, typing state, and unread
// badge, kept consistent across REST responses and push delivery.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hireline/supportchat-cli/internal/api"
	"github.com/hireline/supportchat-cli/internal/cable"
)

// Timing heuristics carried over from the portal widget. Both are
// configurable via Options rather than tuned here; there is no documented
// rationale for the exact values.
const (
	DefaultReadDebounce = 500 * time.Millisecond
	DefaultTypingExpiry = 3 * time.Second
)

// ErrNoConversation is returned by Send when the widget opened without a
// conversation (the conversation fetch failed).
var ErrNoConversation = errors.New("no conversation available")

// State is the widget session state.
type State int

const (
	StateClosed State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend is the REST surface the session consumes. *api.Client satisfies it.
type Backend interface {
	GetConversation(ctx context.Context) (*api.Conversation, error)
	ListMessages(ctx context.Context, conversationID int) ([]api.Message, error)
	CreateMessage(ctx context.Context, conversationID int, content, filename string, attachment []byte) (*api.Message, error)
	MarkRead(ctx context.Context, conversationID int, messageIDs []int) error
	GetUnreadCount(ctx context.Context) (int, error)
}

// Transport is the push-gateway surface the session consumes.
// *cable.Client satisfies it.
type Transport interface {
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
	Whisper(ctx context.Context, channel, event string, payload any) error
}

// Options tunes the session timers.
type Options struct {
	ReadDebounce time.Duration
	TypingExpiry time.Duration
}

// NoteKind tags a Notification.
type NoteKind int

const (
	NoteState   NoteKind = iota // state transition
	NoteMessage                 // message appended to the log
	NoteRead                    // readAt set on one or more messages
	NoteTyping                  // typing indicator changed
	NoteUnread                  // unread badge changed
)

// Notification is the session's explicit message to its consumer. There is
// no global event bus; the embedding UI drains Notifications().
type Notification struct {
	Kind    NoteKind
	State   State
	Message *api.Message
	ReadIDs []int
	Typing  bool
	Unread  int
}

// Session owns one widget session: the tagged state, the message log, the
// compose buffer, both timers, and the conversation-channel subscription.
// All mutations are serialized behind one mutex; REST and gateway writes
// happen outside it.
type Session struct {
	backend   Backend
	transport Transport
	userID    int
	opts      Options

	mu          sync.Mutex
	state       State
	conv        *api.Conversation
	log         *MessageLog
	compose     Compose
	typing      bool
	typingTimer *time.Timer
	readTimer   *time.Timer
	subscribed  bool
	unread      UnreadTracker

	notifs chan Notification
}

// NewSession creates a closed session for the given local user.
func NewSession(backend Backend, transport Transport, userID int, opts Options) *Session {
	if opts.ReadDebounce <= 0 {
		opts.ReadDebounce = DefaultReadDebounce
	}
	if opts.TypingExpiry <= 0 {
		opts.TypingExpiry = DefaultTypingExpiry
	}
	return &Session{
		backend:   backend,
		transport: transport,
		userID:    userID,
		opts:      opts,
		state:     StateClosed,
		log:       NewMessageLog(),
		notifs:    make(chan Notification, 64),
	}
}

// Notifications returns the channel the session reports changes on.
// Events are dropped rather than blocking the core when the consumer lags.
func (s *Session) Notifications() <-chan Notification {
	return s.notifs
}

func (s *Session) notify(n Notification) {
	select {
	case s.notifs <- n:
	default:
	}
}

// Open runs the widget-open flow: history fetch, conversation-channel
// subscribe, then mark-unread-as-read. Fetch failures are non-fatal; the
// session still reaches Ready (with an empty log) and is retried only by
// the user closing and reopening the widget.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateClosed {
		s.mu.Unlock()
		return fmt.Errorf("open: session is %s", s.state)
	}
	s.state = StateLoading
	s.log = NewMessageLog()
	s.compose = Compose{}
	s.typing = false
	s.unread.Reset() // optimistic: history fetch + mark-as-read catch up
	s.mu.Unlock()
	s.notify(Notification{Kind: NoteState, State: StateLoading})
	s.notify(Notification{Kind: NoteUnread, Unread: 0})

	conv, err := s.backend.GetConversation(ctx)
	if err != nil {
		slog.Warn("conversation fetch failed, opening with empty log", "error", err)
		conv = nil
	}
	var history []api.Message
	if conv != nil {
		history, err = s.backend.ListMessages(ctx, conv.ID)
		if err != nil {
			slog.Warn("history fetch failed, opening with empty log", "error", err)
			history = nil
		}
	}

	subscribed := false
	if conv != nil {
		// A dead transport degrades to "stale until next manual open";
		// it never fails the open flow.
		if err := s.transport.Subscribe(ctx, ConversationChannel(conv.ID)); err != nil {
			slog.Warn("conversation channel subscribe failed, continuing without push", "error", err)
		} else {
			subscribed = true
		}
	}

	s.mu.Lock()
	s.conv = conv
	s.log.AppendAll(history)
	s.subscribed = subscribed
	s.state = StateReady
	s.scheduleReadFlushLocked()
	s.mu.Unlock()
	s.notify(Notification{Kind: NoteState, State: StateReady})
	return nil
}

// Close tears down the session: timers cancelled, the conversation-channel
// subscription removed before Close returns (so a later Open can never
// produce two listener sets on the same channel name), and the unread badge
// reconciled once against the server.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	if s.readTimer != nil {
		s.readTimer.Stop()
		s.readTimer = nil
	}
	s.typing = false
	wasSubscribed := s.subscribed
	s.subscribed = false
	var channel string
	if s.conv != nil {
		channel = ConversationChannel(s.conv.ID)
	}
	s.state = StateClosed
	s.mu.Unlock()

	if wasSubscribed && channel != "" {
		if err := s.transport.Unsubscribe(ctx, channel); err != nil {
			slog.Warn("conversation channel unsubscribe failed", "channel", channel, "error", err)
		}
	}

	if n, err := s.backend.GetUnreadCount(ctx); err == nil {
		s.mu.Lock()
		s.unread.Reconcile(n)
		n = s.unread.Count()
		s.mu.Unlock()
		s.notify(Notification{Kind: NoteUnread, Unread: n})
	} else {
		slog.Warn("unread reconcile failed", "error", err)
	}

	s.notify(Notification{Kind: NoteState, State: StateClosed})
	return nil
}

// HandleEvent feeds one push event into the session. The caller pumps
// events from a single goroutine; connection errors are the pump's problem,
// not the session's.
func (s *Session) HandleEvent(ev cable.Event) {
	if ev.Err != nil {
		return
	}
	switch ev.Name {
	case EventMessageSent:
		var m api.Message
		if err := json.Unmarshal(ev.Data, &m); err != nil {
			slog.Warn("bad message.sent payload", "error", err)
			return
		}
		s.handleMessageSent(ev.Channel, m)
	case EventMessageRead:
		var rb ReadBroadcast
		if err := json.Unmarshal(ev.Data, &rb); err != nil {
			slog.Warn("bad message.read payload", "error", err)
			return
		}
		s.handleReadBroadcast(rb)
	case EventTyping:
		var ts TypingSignal
		if err := json.Unmarshal(ev.Data, &ts); err != nil {
			return // whisper payloads are best-effort
		}
		s.handleTyping(ts)
	}
}

func (s *Session) handleMessageSent(channel string, m api.Message) {
	s.mu.Lock()
	if channel == UserChannel(s.userID) {
		// User-scope channel drives the unread badge only, and only while
		// the widget is closed.
		if s.state == StateClosed && m.SenderID != s.userID {
			n := s.unread.Increment()
			s.mu.Unlock()
			s.notify(Notification{Kind: NoteUnread, Unread: n})
			return
		}
		s.mu.Unlock()
		return
	}
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	appended := s.log.Append(m)
	if appended && m.SenderID != s.userID {
		s.scheduleReadFlushLocked()
	}
	s.mu.Unlock()
	if appended {
		s.notify(Notification{Kind: NoteMessage, Message: &m})
	}
}

func (s *Session) handleReadBroadcast(rb ReadBroadcast) {
	if rb.UserID == s.userID {
		// Our own read action echoed back on the broadcast channel.
		return
	}
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	changed := s.log.MarkRead(rb.MessageIDs, rb.ReadAt)
	s.mu.Unlock()
	if len(changed) > 0 {
		s.notify(Notification{Kind: NoteRead, ReadIDs: changed})
	}
}

func (s *Session) handleTyping(ts TypingSignal) {
	if ts.UserID == s.userID {
		return
	}
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	s.typing = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	// Extend-on-activity: a new signal restarts the expiry window.
	s.typingTimer = time.AfterFunc(s.opts.TypingExpiry, s.expireTyping)
	s.mu.Unlock()
	s.notify(Notification{Kind: NoteTyping, Typing: true})
}

func (s *Session) expireTyping() {
	s.mu.Lock()
	if !s.typing {
		s.mu.Unlock()
		return
	}
	s.typing = false
	s.typingTimer = nil
	s.mu.Unlock()
	s.notify(Notification{Kind: NoteTyping, Typing: false})
}

// scheduleReadFlushLocked arms the read debounce timer unless one is
// already pending; triggers inside the window coalesce into one flush.
// Caller holds s.mu.
func (s *Session) scheduleReadFlushLocked() {
	if s.readTimer != nil {
		return
	}
	s.readTimer = time.AfterFunc(s.opts.ReadDebounce, s.flushRead)
}

// flushRead marks every unread inbound message read, optimistically
// locally and then on the server with one fire-and-forget call.
func (s *Session) flushRead() {
	s.mu.Lock()
	s.readTimer = nil
	if s.state != StateReady || s.conv == nil {
		s.mu.Unlock()
		return
	}
	ids := s.log.UnreadInbound(s.userID)
	if len(ids) == 0 {
		s.mu.Unlock()
		return
	}
	changed := s.log.MarkRead(ids, time.Now())
	convID := s.conv.ID
	s.mu.Unlock()

	if len(changed) > 0 {
		s.notify(Notification{Kind: NoteRead, ReadIDs: changed})
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), api.DefaultTimeout)
		defer cancel()
		if err := s.backend.MarkRead(ctx, convID, ids); err != nil {
			slog.Warn("mark read failed", "error", err)
		}
	}()
}

// SetComposeText updates the draft text and fires a typing whisper.
// Whisper loss degrades the remote indicator only.
func (s *Session) SetComposeText(text string) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	s.compose.Text = text
	var channel string
	if s.conv != nil && s.subscribed {
		channel = ConversationChannel(s.conv.ID)
	}
	userID := s.userID
	s.mu.Unlock()
	if channel == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.transport.Whisper(ctx, channel, EventTyping, TypingSignal{UserID: userID})
	}()
}

// Attach validates and stages a file in the compose buffer.
func (s *Session) Attach(name, mediaType string, data []byte) error {
	att, err := NewAttachment(name, mediaType, data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return fmt.Errorf("attach: session is %s", s.state)
	}
	s.compose.Attachment = att
	return nil
}

// Send transmits the compose buffer as one atomic creation request. On
// success the canonical server message is appended through the same dedup
// path as push delivery, so a racing push echo is absorbed. On failure the
// compose buffer is restored exactly as it was; no draft is lost.
func (s *Session) Send(ctx context.Context) (*api.Message, error) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return nil, fmt.Errorf("send: session is %s", s.state)
	}
	if s.conv == nil {
		s.mu.Unlock()
		return nil, ErrNoConversation
	}
	buf := s.compose
	if buf.Empty() {
		s.mu.Unlock()
		return nil, ErrEmptyMessage
	}
	s.compose = Compose{}
	convID := s.conv.ID
	s.mu.Unlock()

	var filename string
	var data []byte
	if buf.Attachment != nil {
		filename = buf.Attachment.Name
		data = buf.Attachment.Data
	}
	msg, err := s.backend.CreateMessage(ctx, convID, buf.Text, filename, data)
	if err != nil {
		s.mu.Lock()
		s.compose = buf // text and attachment restored together
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	appended := s.log.Append(*msg)
	s.mu.Unlock()
	if appended {
		s.notify(Notification{Kind: NoteMessage, Message: msg})
	}
	return msg, nil
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conversation returns the active conversation, nil when the fetch failed
// or the session never opened.
func (s *Session) Conversation() *api.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// Messages returns a copy of the message log in arrival order.
func (s *Session) Messages() []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Messages()
}

// IsTyping reports whether the remote party is typing.
func (s *Session) IsTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// UnreadCount returns the current unread badge value.
func (s *Session) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread.Count()
}

// ComposeBuffer returns the current compose buffer.
func (s *Session) ComposeBuffer() Compose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compose
}
