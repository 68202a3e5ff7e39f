package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ecociel/deferral/domain"
	"github.com/google/uuid"
)

// Repo keeps tasks in process memory. It is used when no database is
// configured and in tests. Every read returns copies.
type Repo struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
}

func New() *Repo {
	return &Repo{tasks: make(map[string]domain.Task)}
}

func (r *Repo) Save(_ context.Context, task domain.Task) (domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if existing, ok := r.tasks[task.ID]; ok {
		task.ScheduleTime = existing.ScheduleTime
	}
	r.tasks[task.ID] = task.Clone()
	return task, nil
}

func (r *Repo) FindDueBefore(_ context.Context, threshold time.Time) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []domain.Task
	for _, task := range r.tasks {
		if task.IsDue(threshold) {
			due = append(due, task.Clone())
		}
	}
	sortBySchedule(due)
	return due, nil
}

func (r *Repo) Get(_ context.Context, id string) (domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}
	return task.Clone(), nil
}

func (r *Repo) List(_ context.Context) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]domain.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		tasks = append(tasks, task.Clone())
	}
	sortBySchedule(tasks)
	return tasks, nil
}

func (r *Repo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	return nil
}

func sortBySchedule(tasks []domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ScheduleTime.Before(tasks[j].ScheduleTime)
	})
}
