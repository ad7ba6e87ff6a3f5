// Package scheduler dispatches asynchronous work: on-demand CSV ingestion
// tasks and the recurring hourly aggregation job. It owns the background
// goroutines and their base context, so shutting the scheduler down stops all
// in-flight work.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lukas/fieldinsights/internal/domain"
	"github.com/lukas/fieldinsights/internal/logger"
	"github.com/lukas/fieldinsights/internal/service"
	"github.com/lukas/fieldinsights/internal/storage"
	"github.com/lukas/fieldinsights/internal/task"
)

// TaskNotifier receives terminal task snapshots. Implementations must be
// safe for concurrent use.
type TaskNotifier interface {
	TaskCompleted(ctx context.Context, view domain.TaskView) error
}

// Config holds scheduler configuration.
type Config struct {
	// AggregationInterval is the period of the recurring aggregation job.
	// A missed tick (e.g. across a restart) is skipped, not backfilled.
	AggregationInterval time.Duration

	// TaskRetention is how long terminal tasks stay pollable. Zero keeps
	// them forever.
	TaskRetention time.Duration
}

// Scheduler triggers ingestion tasks on demand and the aggregation job on a
// fixed interval. Archive and notifier are optional collaborators; nil
// disables them.
type Scheduler struct {
	ingest      *service.IngestService
	aggregation *service.AggregationService
	tracker     *task.Tracker
	archive     storage.PayloadArchive
	notifier    TaskNotifier
	logger      *logger.Logger
	cfg         Config

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. Background work submitted before Start
// still runs; Start only adds the recurring aggregation ticker.
func NewScheduler(
	ingest *service.IngestService,
	aggregation *service.AggregationService,
	tracker *task.Tracker,
	archive storage.PayloadArchive,
	notifier TaskNotifier,
	log *logger.Logger,
	cfg Config,
) *Scheduler {
	if cfg.AggregationInterval <= 0 {
		cfg.AggregationInterval = time.Hour
	}
	if log == nil {
		log = logger.GetDefault()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ingest:      ingest,
		aggregation: aggregation,
		tracker:     tracker,
		archive:     archive,
		notifier:    notifier,
		logger:      log,
		cfg:         cfg,
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// SubmitIngestion registers a new task and hands the payload to the
// ingestion engine asynchronously. It returns the task ID immediately; the
// caller polls the tracker for progress and the terminal result.
func (s *Scheduler) SubmitIngestion(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty payload")
	}

	taskID := s.tracker.Create()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runIngestion(taskID, payload)
	}()

	return taskID, nil
}

// runIngestion archives the payload, runs the engine, and pushes the
// terminal state to the notifier.
func (s *Scheduler) runIngestion(taskID string, payload []byte) {
	ctx := logger.SetComponent(s.baseCtx, "ingest")
	ctx = logger.SetTaskID(ctx, taskID)

	if s.archive != nil {
		key := fmt.Sprintf("uploads/%s.csv", taskID)
		err := s.archive.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), "text/csv")
		if err != nil {
			// Archival is best-effort; the task proceeds without it
			logger.FromContext(ctx).WithError(err).Warn("Failed to archive CSV payload")
		}
	}

	// Engine records the terminal state itself; the error is already
	// captured there
	_ = s.ingest.ProcessCSV(ctx, taskID, payload)

	if s.notifier != nil {
		view, err := s.tracker.Get(taskID)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Task vanished before notification")
			return
		}
		if err := s.notifier.TaskCompleted(ctx, view); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to deliver task notification")
		}
	}
}

// Start launches the recurring aggregation loop. Call at most once.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.aggregationLoop()
	}()

	s.logger.WithField("interval", s.cfg.AggregationInterval.String()).Info("Scheduler started")
}

// RunAggregationNow performs one aggregation pass immediately, outside the
// ticker. Used by the one-shot CLI and by tests.
func (s *Scheduler) RunAggregationNow(ctx context.Context) (int, error) {
	return s.aggregation.Run(ctx, time.Now().UTC())
}

// Stop cancels all background work and waits for it to finish. In-flight
// ingestion tasks observe the cancellation between rows and fail with kind
// canceled; rows committed before that remain persisted.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// aggregationLoop drives the aggregation engine once per interval and sweeps
// expired terminal tasks from the tracker on the same tick.
func (s *Scheduler) aggregationLoop() {
	ctx := logger.SetComponent(s.baseCtx, "aggregation")

	ticker := time.NewTicker(s.cfg.AggregationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.baseCtx.Done():
			return
		case now := <-ticker.C:
			// A failed run is logged and abandoned; the next tick
			// proceeds independently
			if _, err := s.aggregation.Run(ctx, now.UTC()); err != nil {
				logger.FromContext(ctx).WithError(err).Error("Hourly aggregation run failed")
			}

			if evicted := s.tracker.SweepTerminal(s.cfg.TaskRetention); evicted > 0 {
				logger.FromContext(ctx).WithField("evicted", evicted).Debug("Evicted expired terminal tasks")
			}
		}
	}
}
