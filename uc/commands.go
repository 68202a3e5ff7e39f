package uc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecociel/deferral/domain"
)

var ErrInvalidScheduleTime = errors.New("invalid schedule time")

// Submission is a request to run an analysis endpoint later. ScheduleTime uses
// domain.ScheduleTimeLayout.
type Submission struct {
	Username          string            `json:"username"`
	Repo              string            `json:"repo"`
	CommitID          string            `json:"commitId"`
	Path              string            `json:"path"`
	Endpoint          string            `json:"endpoint"`
	ScheduleTime      string            `json:"scheduleTime"`
	AdditionalParams  map[string]string `json:"additionalParams,omitempty"`
	ShouldPostComment bool              `json:"shouldPostComment,omitempty"`
}

type Writer interface {
	Save(ctx context.Context, task domain.Task) (domain.Task, error)
}

type Remover interface {
	Delete(ctx context.Context, id string) error
}

// ScheduleUseCase persists a submission and returns the stored task together
// with a confirmation for the caller.
type ScheduleUseCase = func(ctx context.Context, s Submission) (domain.Task, string, error)
type CancelUseCase = func(ctx context.Context, id string) error

func MakeScheduleUseCase(w Writer) ScheduleUseCase {
	return func(ctx context.Context, s Submission) (domain.Task, string, error) {
		at, err := ParseScheduleTime(s.ScheduleTime)
		if err != nil {
			return domain.Task{}, "", err
		}
		task, err := w.Save(ctx, domain.Task{
			Username:          s.Username,
			Repo:              s.Repo,
			CommitID:          s.CommitID,
			Path:              s.Path,
			Endpoint:          s.Endpoint,
			ScheduleTime:      at,
			AdditionalParams:  s.AdditionalParams,
			ShouldPostComment: s.ShouldPostComment,
		})
		if err != nil {
			return domain.Task{}, "", fmt.Errorf("schedule task: %w", err)
		}
		return task, Confirmation(at), nil
	}
}

func MakeCancelUseCase(r Remover) CancelUseCase {
	return func(ctx context.Context, id string) error {
		return r.Delete(ctx, id)
	}
}

// ParseScheduleTime reads a local date-time without offset. Past times are
// accepted and make the task due immediately.
func ParseScheduleTime(s string) (time.Time, error) {
	at, err := time.ParseInLocation(domain.ScheduleTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidScheduleTime, s, err)
	}
	return at, nil
}

func Confirmation(at time.Time) string {
	return "Task scheduled for " + at.Format(domain.ConfirmationLayout)
}
