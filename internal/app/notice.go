package app

import "time"

// DefaultNoticeTTL is how long transient feedback stays visible.
const DefaultNoticeTTL = 3 * time.Second

// NoticeLevel classifies transient user feedback.
type NoticeLevel string

// NoticeInfo and related constants define notice severities.
const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is one auto-dismissing inline message.
type Notice struct {
	Level     NoticeLevel
	Message   string
	ExpiresAt time.Time
}

// IsZero reports whether n carries no message.
func (n Notice) IsZero() bool {
	return n.Message == ""
}

// Expired reports whether n should no longer be shown at now.
func (n Notice) Expired(now time.Time) bool {
	if n.IsZero() {
		return true
	}
	return !n.ExpiresAt.IsZero() && !now.Before(n.ExpiresAt)
}

// TTL returns the remaining display time relative to now.
func (n Notice) TTL(now time.Time) time.Duration {
	if n.Expired(now) {
		return 0
	}
	return n.ExpiresAt.Sub(now)
}
