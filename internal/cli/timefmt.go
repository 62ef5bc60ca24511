// Package cli holds small presentation helpers shared by the commands.
package cli

import (
	"fmt"
	"time"
)

// FormatRelative renders a timestamp the way the widget does: recent times
// as "2m ago", older ones as a short date. now is injected for tests.
func FormatRelative(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 0:
		return t.Local().Format("15:04")
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}

// FormatTimestamp renders an absolute timestamp for transcript output.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}
