// Package taskbus implements response.AsyncDispatcher as a Redis pub/sub
// channel, grounded on the teacher's internal/core/task.RedisBus: the same
// publish/subscribe shape, retargeted to carry persistent-record writes
// instead of call-setup tasks.
package taskbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tingiris/violet-convo/internal/core/response"
)

// Channel is the pub/sub channel record-store writes are dispatched on
// (spec §4.10 task bus).
const Channel = "violetconvo:record-store:tasks"

// StoreTask is the payload published for one async record write.
type StoreTask struct {
	Type     string            `json:"type"`
	KeyField string            `json:"key_field"`
	KeyValue string            `json:"key_value"`
	Fields   map[string]string `json:"fields"`
}

// Bus publishes record-store writes to Redis instead of blocking the
// turn that produced them.
type Bus struct {
	client *redis.Client
}

// New wraps an already-configured *redis.Client.
func New(client *redis.Client) *Bus {
	return &Bus{client: client}
}

// DispatchStore implements response.AsyncDispatcher.
func (b *Bus) DispatchStore(ctx context.Context, rec *response.Record) error {
	task := StoreTask{Type: rec.Type, KeyField: rec.KeyField, KeyValue: rec.KeyValue, Fields: rec.Fields}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("taskbus: marshal store task: %w", err)
	}
	if err := b.client.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("taskbus: publish: %w", err)
	}
	return nil
}

// Worker drains Channel and persists each task through store. Run it in a
// goroutine separate from the request-handling path (spec §4.10: async
// writes "run outside the turn's critical path").
type Worker struct {
	client *redis.Client
	store  response.Store
}

// NewWorker builds a Worker that applies dispatched tasks to store.
func NewWorker(client *redis.Client, store response.Store) *Worker {
	return &Worker{client: client, store: store}
}

// Run subscribes to Channel and processes tasks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	sub := w.client.Subscribe(ctx, Channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var task StoreTask
			if err := json.Unmarshal([]byte(msg.Payload), &task); err != nil {
				continue
			}
			_ = w.store.Store(ctx, &response.Record{
				Type:     task.Type,
				KeyField: task.KeyField,
				KeyValue: task.KeyValue,
				Fields:   task.Fields,
			})
		}
	}
}
