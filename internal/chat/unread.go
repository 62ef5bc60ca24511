package chat

// UnreadTracker maintains the collapsed-widget unread badge.
//
// While the widget is closed, each push-delivered foreign message bumps the
// counter by one. Opening the widget zeroes the displayed value
// optimistically; the history fetch plus mark-as-read that follow reach the
// same end state authoritatively. Closing the widget replaces the counter
// with one server-fetched count, the sole source-of-truth correction for
// this component.
//
// Not safe for concurrent use; the owning Session serializes access.
type UnreadTracker struct {
	count int
}

// Increment bumps the counter and returns the new value.
func (u *UnreadTracker) Increment() int {
	u.count++
	return u.count
}

// Reset zeroes the counter (widget opened).
func (u *UnreadTracker) Reset() {
	u.count = 0
}

// Reconcile replaces the counter with an authoritative server count.
func (u *UnreadTracker) Reconcile(n int) {
	if n < 0 {
		n = 0
	}
	u.count = n
}

// Count returns the current badge value.
func (u *UnreadTracker) Count() int {
	return u.count
}
