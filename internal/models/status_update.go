package models

import "time"

// StatusUpdate stages one session's status transition for a batched write.
// From guards the update: the row is only touched while it still holds the
// source status, which is what makes sweep re-entry idempotent.
type StatusUpdate struct {
	SessionID string
	From      SessionStatus
	To        SessionStatus
	At        time.Time
}
