// Package app assembles the trend pipeline from configuration. Both the
// HTTP server and trendctl build their components here.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/clients"
	"github.com/anonto42/trendpulse/backend/internal/ingest"
	"github.com/anonto42/trendpulse/backend/internal/repositories"
	"github.com/anonto42/trendpulse/backend/internal/retention"
	"github.com/anonto42/trendpulse/backend/internal/tasks"
	"github.com/anonto42/trendpulse/backend/pkg/config"
	"gorm.io/gorm"
)

const (
	memoryQueueSize = 256
	pendingPoll     = 10 * time.Millisecond
)

type App struct {
	Config *config.Config

	Trends       repositories.TrendRepository
	Broker       tasks.Broker
	YouTube      *ingest.YouTubeFetcher
	Reddit       *ingest.RedditFetcher
	Cleaner      *retention.Cleaner
	Orchestrator *tasks.Orchestrator

	db *config.DB
}

// New connects to PostgreSQL and the broker, then wires every component.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := config.InitDB(cfg.PostgresConn)
	if err != nil {
		return nil, err
	}

	a := Assemble(cfg, db.Postgres, NewBroker(ctx, cfg.Valkey))
	a.db = db
	return a, nil
}

// Assemble wires components over an open database and broker.
func Assemble(cfg *config.Config, db *gorm.DB, broker tasks.Broker) *App {
	trends := repositories.NewPostgresTrendRepository(db)
	return &App{
		Config:       cfg,
		Trends:       trends,
		Broker:       broker,
		YouTube:      ingest.NewYouTubeFetcher(cfg.YouTube, trends),
		Reddit:       ingest.NewRedditFetcher(cfg.Reddit, trends, clients.NewRedditClient(cfg.Reddit.UserAgent)),
		Cleaner:      retention.NewCleaner(trends),
		Orchestrator: tasks.NewOrchestrator(broker, trends, cfg.WatchdogStaleAfter),
	}
}

// NewBroker connects to the first reachable Valkey address. Without an
// address, or when none answers, tasks run through an in-process queue.
func NewBroker(ctx context.Context, cfg config.ValkeyConfig) tasks.Broker {
	addresses := cfg.Addresses()
	if len(addresses) == 0 {
		slog.Info("[App] No broker address configured, using in-process queue")
		return tasks.NewMemoryQueue(memoryQueueSize)
	}

	client, addr, err := clients.ConnectValkey(ctx, clients.ValkeyOptions{
		Addresses: addresses,
		Password:  cfg.Password,
		UseTLS:    cfg.TLS,
	})
	if err != nil {
		slog.Warn("[App] Broker unreachable, using in-process queue", slog.String("error", err.Error()))
		return tasks.NewMemoryQueue(memoryQueueSize)
	}

	slog.Info("[App] Connected to broker", slog.String("address", addr))
	return tasks.NewValkeyQueue(client, tasks.DefaultQueueKey)
}

// Worker returns a worker with every task handler registered.
func (a *App) Worker() *tasks.Worker {
	w := tasks.NewWorker(a.Broker, a.Config.Worker.Concurrency, a.Config.Worker.TaskTimeLimit)
	tasks.RegisterHandlers(w, tasks.Dependencies{
		YouTube:      a.YouTube,
		Reddit:       a.Reddit,
		Cleaner:      a.Cleaner,
		Orchestrator: a.Orchestrator,
		Retention:    a.Config.Retention,
	})
	return w
}

// InProcess reports whether queued tasks live only inside this process.
func (a *App) InProcess() bool {
	_, ok := a.Broker.(*tasks.MemoryQueue)
	return ok
}

// RunPending executes every task waiting on an in-process queue, including
// the tasks those tasks enqueue. A remote broker is left to its workers.
func (a *App) RunPending(ctx context.Context) ([]tasks.TaskResult, error) {
	q, ok := a.Broker.(*tasks.MemoryQueue)
	if !ok {
		return nil, nil
	}

	w := a.Worker()
	var results []tasks.TaskResult
	for q.Len() > 0 {
		task, err := q.Dequeue(ctx, pendingPoll)
		if err != nil {
			return results, err
		}
		if task == nil {
			break
		}
		results = append(results, w.Execute(ctx, task))
	}
	return results, nil
}

// Close releases the broker and the database pool.
func (a *App) Close() {
	a.Broker.Close()
	if a.db != nil {
		a.db.CloseDB()
	}
}
