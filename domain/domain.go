package domain

import (
	"errors"
	"maps"
	"time"
)

// ScheduleTimeLayout is the wire format of a submitted schedule time. It carries
// no offset and is interpreted in the local time zone.
const ScheduleTimeLayout = "2006-01-02T15:04:05"

// ConfirmationLayout is used when echoing a scheduled time back to the caller.
const ConfirmationLayout = "2006-01-02T15:04"

const HeaderID = "id"
const HeaderEndpoint = "endpoint"

var ErrNotFound = errors.New("task not found")

// Task is one deferred call of an analysis endpoint. It stays in the store
// until the call succeeded once.
type Task struct {
	ID                string
	Username          string
	Repo              string
	CommitID          string
	Path              string
	Endpoint          string
	ScheduleTime      time.Time
	AdditionalParams  map[string]string
	ShouldPostComment bool
}

// IsDue reports whether the task is eligible to fire at now.
func (t Task) IsDue(now time.Time) bool {
	return t.ScheduleTime.Before(now)
}

// Clone returns a copy that does not share the params map.
func (t Task) Clone() Task {
	t.AdditionalParams = maps.Clone(t.AdditionalParams)
	return t
}
