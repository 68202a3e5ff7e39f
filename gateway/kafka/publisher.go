package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecociel/deferral/domain"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer defines the interface for producing messages to Kafka
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// ExecutedEvent is the value of a completion record.
type ExecutedEvent struct {
	ID                string            `json:"id"`
	Username          string            `json:"username"`
	Repo              string            `json:"repo"`
	CommitID          string            `json:"commitId"`
	Path              string            `json:"path"`
	Endpoint          string            `json:"endpoint"`
	ScheduleTime      time.Time         `json:"scheduleTime"`
	AdditionalParams  map[string]string `json:"additionalParams,omitempty"`
	ShouldPostComment bool              `json:"shouldPostComment"`
	ExecutedAt        time.Time         `json:"executedAt"`
}

// Publisher announces executed tasks on a topic.
type Publisher struct {
	client Producer
	topic  string
	now    func() time.Time
}

func New(client Producer, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, now: time.Now}
}

func (p *Publisher) NotifyExecuted(ctx context.Context, task domain.Task) error {
	record, err := taskToRec(p.topic, task, p.now())
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, &record).FirstErr(); err != nil {
		return fmt.Errorf("publish executed %s: %w", task.ID, err)
	}
	return nil
}

func taskToRec(topic string, task domain.Task, executedAt time.Time) (rec kgo.Record, err error) {
	value, err := json.Marshal(ExecutedEvent{
		ID:                task.ID,
		Username:          task.Username,
		Repo:              task.Repo,
		CommitID:          task.CommitID,
		Path:              task.Path,
		Endpoint:          task.Endpoint,
		ScheduleTime:      task.ScheduleTime,
		AdditionalParams:  task.AdditionalParams,
		ShouldPostComment: task.ShouldPostComment,
		ExecutedAt:        executedAt,
	})
	if err != nil {
		return rec, fmt.Errorf("serialize executed %s: %w", task.ID, err)
	}

	rec.Topic = topic
	rec.Key = []byte(task.Repo)
	rec.Value = value
	rec.Headers = []kgo.RecordHeader{
		{Key: domain.HeaderID, Value: []byte(task.ID)},
		{Key: domain.HeaderEndpoint, Value: []byte(task.Endpoint)},
	}
	return rec, nil
}
