package tasks

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Broker used when no Valkey address is configured.
type MemoryQueue struct {
	tasks chan *Task

	mu      sync.RWMutex
	results map[string]TaskResult
	closed  bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{
		tasks:   make(chan *Task, size),
		results: make(map[string]TaskResult),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task *Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case task := <-q.tasks:
		return task, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of queued tasks.
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}

func (q *MemoryQueue) Ping(context.Context) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

func (q *MemoryQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

func (q *MemoryQueue) StoreResult(_ context.Context, result TaskResult) error {
	q.mu.Lock()
	q.results[result.TaskID] = result
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Result(_ context.Context, taskID string) (*TaskResult, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	result, ok := q.results[taskID]
	if !ok {
		return nil, ErrResultNotFound
	}
	return &result, nil
}

func (q *MemoryQueue) DeleteResult(_ context.Context, taskID string) error {
	q.mu.Lock()
	delete(q.results, taskID)
	q.mu.Unlock()
	return nil
}
