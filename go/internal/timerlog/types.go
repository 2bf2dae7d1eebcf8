package timerlog

import "errors"

// ErrNotFound is returned when no timer record matches the lookup.
var ErrNotFound = errors.New("timer record not found")

// CreateRecordRequest holds the data needed to log a started timer.
type CreateRecordRequest struct {
	DurationMinutes int
}
