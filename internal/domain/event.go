package domain

import "time"

// SessionEventType names what happened to a betting session.
type SessionEventType string

const (
	EventSessionOpened SessionEventType = "session_opened"
	EventLinesAdded    SessionEventType = "lines_added"
	EventCartChanged   SessionEventType = "cart_changed"
	EventSubmitted     SessionEventType = "submitted"
	EventSubmitFailed  SessionEventType = "submit_failed"
	EventSessionClosed SessionEventType = "session_closed"
)

// SessionEvent is published on the event bus for every cart mutation.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	SessionID string           `json:"session_id"`
	Totals    Totals           `json:"totals"`
	Detail    map[string]any   `json:"detail,omitempty"`
	At        time.Time        `json:"at"`
}

// SessionChannel returns the pub/sub channel for one session's events.
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// SubmissionStream is the durable stream every submission outcome is
// appended to.
const SubmissionStream = "submissions"
