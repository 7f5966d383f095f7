// Package tasks runs ingestion and retention as queued background tasks.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task names understood by the worker.
const (
	FetchAllTrends     = "fetch_all_trends"
	FetchYouTubeTrends = "fetch_youtube_trends"
	FetchRedditTrends  = "fetch_reddit_trends"
	CleanOldTrends     = "clean_old_trends"
	CheckMissedTasks   = "check_missed_tasks"
)

// Task states recorded in the result backend.
const (
	StatePending = "PENDING"
	StateStarted = "STARTED"
	StateSuccess = "SUCCESS"
	StateFailure = "FAILURE"
)

var (
	ErrResultNotFound = errors.New("task result not found")
	ErrQueueClosed    = errors.New("task queue closed")
	ErrQueueFull      = errors.New("task queue full")
)

// Task is one unit of queued work.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Params     json.RawMessage `json:"params,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewTask creates a task with a fresh id. params may be nil.
func NewTask(name string, params interface{}) (*Task, error) {
	task := &Task{
		ID:         uuid.NewString(),
		Name:       name,
		EnqueuedAt: time.Now().UTC(),
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", name, err)
		}
		task.Params = raw
	}
	return task, nil
}

// TaskResult is the state of a task as seen by API callers.
type TaskResult struct {
	TaskID     string          `json:"task_id"`
	Name       string          `json:"name"`
	State      string          `json:"state"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// CleanupParams are the thresholds of a clean_old_trends task.
type CleanupParams struct {
	MaxAgeDays            int `json:"max_age_days"`
	MaxRecordsPerPlatform int `json:"max_records_per_platform"`
}

// Queue moves tasks from producers to the worker.
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	// Dequeue waits up to timeout for a task. It returns nil, nil on timeout.
	Dequeue(ctx context.Context, timeout time.Duration) (*Task, error)
	Ping(ctx context.Context) error
	Close()
}

// ResultBackend stores task results for later lookup.
type ResultBackend interface {
	StoreResult(ctx context.Context, result TaskResult) error
	Result(ctx context.Context, taskID string) (*TaskResult, error)
	DeleteResult(ctx context.Context, taskID string) error
}

// Broker is a queue that also keeps results.
type Broker interface {
	Queue
	ResultBackend
}

// Submit records a new task as pending and enqueues it.
func Submit(ctx context.Context, broker Broker, name string, params interface{}) (*Task, error) {
	task, err := NewTask(name, params)
	if err != nil {
		return nil, err
	}
	// PENDING is written first so a fast worker's STARTED/SUCCESS is never overwritten.
	pending := TaskResult{TaskID: task.ID, Name: task.Name, State: StatePending, EnqueuedAt: task.EnqueuedAt}
	if err := broker.StoreResult(ctx, pending); err != nil {
		return nil, fmt.Errorf("record %s: %w", name, err)
	}
	if err := broker.Enqueue(ctx, task); err != nil {
		if delErr := broker.DeleteResult(context.WithoutCancel(ctx), task.ID); delErr != nil {
			return nil, fmt.Errorf("enqueue %s: %w (pending record left behind: %v)", name, err, delErr)
		}
		return nil, fmt.Errorf("enqueue %s: %w", name, err)
	}
	return task, nil
}
