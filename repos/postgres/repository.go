package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecociel/deferral/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
    CREATE TABLE IF NOT EXISTS task (
      id                  TEXT PRIMARY KEY,
      username            TEXT NOT NULL,
      repo                TEXT NOT NULL,
      commit_id           TEXT NOT NULL,
      path                TEXT NOT NULL,
      endpoint            TEXT NOT NULL,
      schedule_time       TIMESTAMPTZ NOT NULL,
      additional_params   JSONB NOT NULL DEFAULT '{}'::jsonb,
      should_post_comment BOOLEAN NOT NULL DEFAULT FALSE
    );
    CREATE INDEX IF NOT EXISTS task_schedule_time_idx ON task (schedule_time);
    `

const columns = `id, username, repo, commit_id, path, endpoint, schedule_time, additional_params, should_post_comment`

type Repo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (repo *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := repo.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure task schema: %w", err)
	}
	return nil
}

// Save inserts the task or updates an existing one with the same id. The
// schedule time of an existing row is never changed.
func (repo *Repo) Save(ctx context.Context, task domain.Task) (domain.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	params := task.AdditionalParams
	if params == nil {
		params = map[string]string{}
	}
	const q = `
    INSERT INTO task
      (` + columns + `)
    VALUES
      ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    ON CONFLICT (id) DO UPDATE SET
      username = EXCLUDED.username,
      repo = EXCLUDED.repo,
      commit_id = EXCLUDED.commit_id,
      path = EXCLUDED.path,
      endpoint = EXCLUDED.endpoint,
      additional_params = EXCLUDED.additional_params,
      should_post_comment = EXCLUDED.should_post_comment
    RETURNING schedule_time
    `
	err := repo.pool.QueryRow(ctx, q,
		task.ID, task.Username, task.Repo, task.CommitID, task.Path, task.Endpoint,
		task.ScheduleTime, params, task.ShouldPostComment,
	).Scan(&task.ScheduleTime)
	if err != nil {
		return domain.Task{}, fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return task, nil
}

func (repo *Repo) FindDueBefore(ctx context.Context, threshold time.Time) ([]domain.Task, error) {
	const q = `
    SELECT ` + columns + `
    FROM task
    WHERE schedule_time < $1 ORDER BY schedule_time
     `
	rows, err := repo.pool.Query(ctx, q, threshold)
	if err != nil {
		return nil, fmt.Errorf("query due tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, scanTask)
	if err != nil {
		return nil, fmt.Errorf("rows due tasks: %w", err)
	}
	return tasks, nil
}

func (repo *Repo) Get(ctx context.Context, id string) (domain.Task, error) {
	const q = `SELECT ` + columns + ` FROM task WHERE id = $1`
	rows, err := repo.pool.Query(ctx, q, id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("query task %s: %w", id, err)
	}
	task, err := pgx.CollectExactlyOneRow(rows, scanTask)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Task{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("get %s: %w", id, err)
	}
	return task, nil
}

func (repo *Repo) List(ctx context.Context) ([]domain.Task, error) {
	const q = `SELECT ` + columns + ` FROM task ORDER BY schedule_time`
	rows, err := repo.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, scanTask)
	if err != nil {
		return nil, fmt.Errorf("rows tasks: %w", err)
	}
	return tasks, nil
}

// Delete removes the task. Deleting an absent id is not an error.
func (repo *Repo) Delete(ctx context.Context, id string) error {
	const q = `
      DELETE FROM task WHERE id = $1`
	if _, err := repo.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("delete for %s: %w", id, err)
	}
	return nil
}

func scanTask(row pgx.CollectableRow) (domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID, &task.Username, &task.Repo, &task.CommitID, &task.Path, &task.Endpoint,
		&task.ScheduleTime, &task.AdditionalParams, &task.ShouldPostComment,
	)
	return task, err
}
