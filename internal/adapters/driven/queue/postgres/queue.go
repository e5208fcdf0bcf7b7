// Package postgres implements the task queue on PostgreSQL with SKIP
// LOCKED. It is the fallback queue when Redis is not configured.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements driven.TaskQueue using PostgreSQL.
// SKIP LOCKED ensures each task is claimed by exactly one worker even
// with several workers polling concurrently.
type Queue struct {
	db *sql.DB

	// pollInterval is how long to sleep between empty polls while a
	// dequeue timeout has not yet elapsed
	pollInterval time.Duration
}

// NewQueue creates a PostgreSQL-backed task queue.
// Assumes the tasks table has been created via InitSchema.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db, pollInterval: time.Second}
}

// Enqueue adds a task to the queue
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO tasks (
			id, type, payload, status, attempts, max_attempts,
			error, created_at, updated_at, scheduled_for
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = q.db.ExecContext(ctx, query,
		task.ID,
		task.Type,
		payload,
		task.Status,
		task.Attempts,
		task.MaxAttempts,
		task.Error,
		task.CreatedAt,
		task.UpdatedAt,
		task.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// DequeueWithTimeout polls for the next available task, waiting up to
// timeout. Returns (nil, nil) when the timeout elapses on an empty queue.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	deadline := time.Now().Add(timeout)

	for {
		task, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if task != nil {
			return task, nil
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		wait := q.pollInterval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// claim atomically selects and marks the next pending task as processing
func (q *Queue) claim(ctx context.Context) (*domain.Task, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	selectQuery := `
		SELECT id, type, payload, status, attempts, max_attempts,
			   error, created_at, updated_at, scheduled_for
		FROM tasks
		WHERE status = $1
		  AND scheduled_for <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	var task domain.Task
	var payload []byte

	err = tx.QueryRowContext(ctx, selectQuery, domain.TaskStatusPending).Scan(
		&task.ID,
		&task.Type,
		&payload,
		&task.Status,
		&task.Attempts,
		&task.MaxAttempts,
		&task.Error,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.ScheduledFor,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	now := time.Now()
	updateQuery := `
		UPDATE tasks
		SET status = $1, updated_at = $2, attempts = attempts + 1
		WHERE id = $3
	`
	if _, err := tx.ExecContext(ctx, updateQuery, domain.TaskStatusProcessing, now, task.ID); err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	task.Status = domain.TaskStatusProcessing
	task.UpdatedAt = now
	task.Attempts++

	return &task, nil
}

// Ack marks a task as completed
func (q *Queue) Ack(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET status = $1, updated_at = $2, error = ''
		WHERE id = $3
	`

	result, err := q.db.ExecContext(ctx, query, domain.TaskStatusCompleted, time.Now(), task.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	task.MarkCompleted()
	return nil
}

// Nack marks a task as failed, scheduling a backoff retry while
// attempts remain
func (q *Queue) Nack(ctx context.Context, task *domain.Task) error {
	now := time.Now()

	if task.CanRetry() {
		task.Retry(task.Error)

		query := `
			UPDATE tasks
			SET status = $1, error = $2, updated_at = $3, scheduled_for = $4
			WHERE id = $5
		`
		_, err := q.db.ExecContext(ctx, query,
			domain.TaskStatusPending,
			task.Error,
			now,
			task.ScheduledFor,
			task.ID,
		)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	}

	task.MarkFailed(task.Error)

	query := `
		UPDATE tasks
		SET status = $1, error = $2, updated_at = $3
		WHERE id = $4
	`
	if _, err := q.db.ExecContext(ctx, query, domain.TaskStatusFailed, task.Error, now, task.ID); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// Ping checks if the queue backend is healthy
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close releases queue resources. The database handle is shared and
// stays open.
func (q *Queue) Close() error {
	return nil
}
