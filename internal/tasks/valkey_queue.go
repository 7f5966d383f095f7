package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

const (
	DefaultQueueKey   = "trendpulse:tasks"
	resultKeyPrefix   = "trendpulse:result:"
	resultTTLSeconds  = 3600
	minBlockingSecond = 1
)

// ValkeyQueue is a Broker backed by a Valkey list and string keys.
type ValkeyQueue struct {
	client valkey.Client
	key    string
}

func NewValkeyQueue(client valkey.Client, key string) *ValkeyQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &ValkeyQueue{client: client, key: key}
}

func (q *ValkeyQueue) Enqueue(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("[ValkeyQueue] encode task: %w", err)
	}
	cmd := q.client.B().Lpush().Key(q.key).Element(string(data)).Build()
	return q.client.Do(ctx, cmd).Error()
}

func (q *ValkeyQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	seconds := timeout.Seconds()
	if seconds < minBlockingSecond {
		seconds = minBlockingSecond
	}

	cmd := q.client.B().Brpop().Key(q.key).Timeout(seconds).Build()
	values, err := q.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("[ValkeyQueue] unexpected BRPOP reply of %d elements", len(values))
	}

	var task Task
	if err := json.Unmarshal([]byte(values[1]), &task); err != nil {
		return nil, fmt.Errorf("[ValkeyQueue] decode task: %w", err)
	}
	return &task, nil
}

func (q *ValkeyQueue) Ping(ctx context.Context) error {
	return q.client.Do(ctx, q.client.B().Ping().Build()).Error()
}

func (q *ValkeyQueue) Close() {
	q.client.Close()
}

// StoreResult writes the result with a one hour expiry.
func (q *ValkeyQueue) StoreResult(ctx context.Context, result TaskResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("[ValkeyQueue] encode result: %w", err)
	}

	key := resultKeyPrefix + result.TaskID
	responses := q.client.DoMulti(ctx,
		q.client.B().Set().Key(key).Value(string(data)).Build(),
		q.client.B().Expire().Key(key).Seconds(resultTTLSeconds).Build(),
	)
	for _, res := range responses {
		if err := res.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (q *ValkeyQueue) Result(ctx context.Context, taskID string) (*TaskResult, error) {
	data, err := q.client.Do(ctx, q.client.B().Get().Key(resultKeyPrefix+taskID).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}

	var result TaskResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("[ValkeyQueue] decode result: %w", err)
	}
	return &result, nil
}

func (q *ValkeyQueue) DeleteResult(ctx context.Context, taskID string) error {
	return q.client.Do(ctx, q.client.B().Del().Key(resultKeyPrefix+taskID).Build()).Error()
}
