package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler enqueues schedule entries on their cron ticks.
type Scheduler struct {
	cron   *cron.Cron
	broker Broker
}

// NewScheduler registers every entry. It fails on the first invalid spec.
func NewScheduler(ctx context.Context, broker Broker, entries []ScheduleEntry) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		broker: broker,
	}

	for _, entry := range entries {
		entry := entry
		if _, err := s.cron.AddFunc(entry.Spec, func() { s.fire(ctx, entry) }); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", entry.Name, entry.Spec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) fire(ctx context.Context, entry ScheduleEntry) {
	task, err := Submit(ctx, s.broker, entry.Task, entry.Params)
	if err != nil {
		slog.Error("[Scheduler] Failed to enqueue",
			slog.String("entry", entry.Name),
			slog.String("error", err.Error()))
		return
	}
	slog.Info("[Scheduler] Enqueued",
		slog.String("entry", entry.Name),
		slog.String("task", entry.Task),
		slog.String("task_id", task.ID))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("[Scheduler] Started", slog.Int("entries", len(s.cron.Entries())))
}

// Stop halts ticking and waits for in-flight enqueues.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("[Scheduler] Stopped")
}
