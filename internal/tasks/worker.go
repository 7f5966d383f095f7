package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Handler executes one task. The returned value is stored as the task result.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

const (
	defaultPollTimeout = 5 * time.Second
	dequeueBackoff     = time.Second
)

// Worker pulls tasks from a Broker and runs their handlers with bounded concurrency.
type Worker struct {
	broker    Broker
	handlers  map[string]Handler
	sem       *semaphore.Weighted
	timeLimit time.Duration

	pollTimeout time.Duration
	wg          sync.WaitGroup
}

func NewWorker(broker Broker, concurrency int64, timeLimit time.Duration) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		broker:      broker,
		handlers:    make(map[string]Handler),
		sem:         semaphore.NewWeighted(concurrency),
		timeLimit:   timeLimit,
		pollTimeout: defaultPollTimeout,
	}
}

// Register binds a handler to a task name. It is not safe to call after Run.
func (w *Worker) Register(name string, h Handler) {
	w.handlers[name] = h
}

// Run consumes tasks until ctx is cancelled, then waits for running tasks.
// Running tasks are not cancelled with ctx; only the time limit stops them.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("[Worker] Started", slog.Int("handlers", len(w.handlers)))
	defer w.wg.Wait()

	for {
		if err := w.sem.Acquire(ctx, 1); err != nil {
			slog.Info("[Worker] Stopping")
			return nil
		}

		task, err := w.broker.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			w.sem.Release(1)
			if ctx.Err() != nil {
				slog.Info("[Worker] Stopping")
				return nil
			}
			slog.Error("[Worker] Dequeue failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(dequeueBackoff):
			}
			continue
		}
		if task == nil {
			w.sem.Release(1)
			continue
		}

		w.wg.Add(1)
		go func(task *Task) {
			defer w.wg.Done()
			defer w.sem.Release(1)
			w.Execute(context.WithoutCancel(ctx), task)
		}(task)
	}
}

// Execute runs a single task synchronously and records its result.
func (w *Worker) Execute(ctx context.Context, task *Task) TaskResult {
	started := time.Now().UTC()
	result := TaskResult{
		TaskID:     task.ID,
		Name:       task.Name,
		State:      StateStarted,
		EnqueuedAt: task.EnqueuedAt,
		StartedAt:  &started,
	}
	w.store(ctx, result)

	if w.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeLimit)
		defer cancel()
	}

	slog.Info("[Worker] Task started", slog.String("task_id", task.ID), slog.String("name", task.Name))
	value, err := w.invoke(ctx, task)

	finished := time.Now().UTC()
	result.FinishedAt = &finished
	result.State = StateSuccess
	if value != nil {
		if raw, encErr := json.Marshal(value); encErr == nil {
			result.Result = raw
		} else if err == nil {
			err = fmt.Errorf("encode result: %w", encErr)
		}
	}
	if err != nil {
		result.State = StateFailure
		result.Error = err.Error()
		slog.Error("[Worker] Task failed",
			slog.String("task_id", task.ID),
			slog.String("name", task.Name),
			slog.String("error", err.Error()))
	} else {
		slog.Info("[Worker] Task succeeded",
			slog.String("task_id", task.ID),
			slog.String("name", task.Name),
			slog.Duration("took", finished.Sub(started)))
	}

	w.store(context.WithoutCancel(ctx), result)
	return result
}

func (w *Worker) invoke(ctx context.Context, task *Task) (value interface{}, err error) {
	h, ok := w.handlers[task.Name]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", task.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return h(ctx, task.Params)
}

func (w *Worker) store(ctx context.Context, result TaskResult) {
	if err := w.broker.StoreResult(ctx, result); err != nil {
		slog.Warn("[Worker] Failed to store task result",
			slog.String("task_id", result.TaskID),
			slog.String("error", err.Error()))
	}
}
