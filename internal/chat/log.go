package chat

import (
	"time"

	"github.com/hireline/supportchat-cli/internal/api"
)

// MessageLog is the ordered, deduplicated message log. Messages append in
// arrival order and are never removed or re-sorted; the only mutation after
// append is ReadAt going from nil to a timestamp, once.
//
// Two delivery paths (conversation-channel push and the REST response to a
// local send) can hand the log the same message; the seen-set makes the
// second delivery a no-op, which is the sole correctness mechanism for
// that race.
//
// MessageLog is not safe for concurrent use; the owning Session serializes
// access.
type MessageLog struct {
	messages []api.Message
	seen     map[int]struct{}
}

// NewMessageLog returns an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{seen: make(map[int]struct{})}
}

// Append adds a message to the end of the log unless its ID is already
// present. Returns true if the message was appended.
func (l *MessageLog) Append(m api.Message) bool {
	if _, ok := l.seen[m.ID]; ok {
		return false
	}
	l.seen[m.ID] = struct{}{}
	l.messages = append(l.messages, m)
	return true
}

// AppendAll appends each message through the dedup path, preserving order.
func (l *MessageLog) AppendAll(msgs []api.Message) {
	for _, m := range msgs {
		l.Append(m)
	}
}

// Has reports whether a message ID is in the log.
func (l *MessageLog) Has(id int) bool {
	_, ok := l.seen[id]
	return ok
}

// Len returns the number of messages in the log.
func (l *MessageLog) Len() int {
	return len(l.messages)
}

// Messages returns a copy of the log in arrival order.
func (l *MessageLog) Messages() []api.Message {
	out := make([]api.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// UnreadInbound returns the IDs of messages from senders other than
// localUserID whose ReadAt is still nil, in arrival order.
func (l *MessageLog) UnreadInbound(localUserID int) []int {
	var ids []int
	for i := range l.messages {
		m := &l.messages[i]
		if m.SenderID != localUserID && m.ReadAt == nil {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// MarkRead sets ReadAt = t for each given ID whose ReadAt is currently nil.
// An already-set ReadAt is never overwritten, so the transition is
// monotonic: once read, never unread, and never re-stamped.
// Returns the IDs actually changed.
func (l *MessageLog) MarkRead(ids []int, t time.Time) []int {
	var changed []int
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i := range l.messages {
		m := &l.messages[i]
		if _, ok := want[m.ID]; !ok {
			continue
		}
		if m.ReadAt != nil {
			continue
		}
		ts := t
		m.ReadAt = &ts
		changed = append(changed, m.ID)
	}
	return changed
}
