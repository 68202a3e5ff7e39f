package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ecociel/deferral/uc"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Consumer is the part of *kgo.Client the intake needs.
type Consumer interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

const defaultRetryDelay = time.Second

// Intake schedules tasks from submission records on a topic. Undecodable
// records and records with a bad schedule time are committed and dropped.
// A record that could not be stored is retried in place until it is stored
// or the context ends, so no later record is committed past it.
type Intake struct {
	client     Consumer
	schedule   uc.ScheduleUseCase
	retryDelay time.Duration
}

func NewIntake(client Consumer, schedule uc.ScheduleUseCase) *Intake {
	return &Intake{client: client, schedule: schedule, retryDelay: defaultRetryDelay}
}

func (in *Intake) Run(ctx context.Context) {
	for ctx.Err() == nil {
		fetches := in.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			log.Println("intake client closed, returning")
			return
		}
		fetches.EachError(func(t string, p int32, err error) {
			log.Printf("fetch err topic %s partition %d: %v", t, p, err)
		})
		if errs := fetches.Errors(); len(errs) > 0 {
			continue
		}

		for record := range fetches.RecordsAll() {
			if !in.handleUntilStored(ctx, record) {
				return
			}
			// A later commit covers this offset as well.
			if err := in.client.CommitRecords(ctx, record); err != nil {
				log.Printf("commit intake record at offset %d: %v", record.Offset, err)
			}
		}
	}
}

// handleUntilStored reports false when ctx ended before the record was handled.
func (in *Intake) handleUntilStored(ctx context.Context, record *kgo.Record) bool {
	for {
		err := in.handle(ctx, record)
		if err == nil {
			return true
		}
		log.Printf("intake offset %d, retrying in %s: %v", record.Offset, in.retryDelay, err)

		t := time.NewTimer(in.retryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

// handle returns an error only when the record must not be committed.
func (in *Intake) handle(ctx context.Context, record *kgo.Record) error {
	sub, err := recToSubmission(record)
	if err != nil {
		log.Printf("drop intake record at offset %d: %v", record.Offset, err)
		return nil
	}
	task, msg, err := in.schedule(ctx, sub)
	if errors.Is(err, uc.ErrInvalidScheduleTime) {
		log.Printf("drop intake record at offset %d: %v", record.Offset, err)
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("intake task %s: %s", task.ID, msg)
	return nil
}

func recToSubmission(record *kgo.Record) (sub uc.Submission, err error) {
	if err := json.Unmarshal(record.Value, &sub); err != nil {
		return sub, fmt.Errorf("unmarshal submission: %w", err)
	}
	return sub, nil
}
