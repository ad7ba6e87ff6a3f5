package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lukas/fieldinsights/internal/domain"
	"github.com/lukas/fieldinsights/internal/logger"
	"github.com/lukas/fieldinsights/internal/repository"
)

// AggregationService computes hourly statistical summaries of raw readings.
// One run covers the most recently completed clock-hour window and writes one
// row per (field, sensor type) group. Runs are idempotent: the aggregate
// repository upserts per window, so repeating a window replaces its rows.
type AggregationService struct {
	readings   *repository.ReadingRepository
	aggregates *repository.AggregateRepository
	logger     *logger.Logger
}

// NewAggregationService creates a new aggregation service.
func NewAggregationService(
	readings *repository.ReadingRepository,
	aggregates *repository.AggregateRepository,
	log *logger.Logger,
) *AggregationService {
	return &AggregationService{
		readings:   readings,
		aggregates: aggregates,
		logger:     log,
	}
}

// log returns a logger from context if available, otherwise the service logger
func (s *AggregationService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// WindowFor returns the most recently fully elapsed hour window relative to
// now: start is floor_to_hour(now - 1h), end is start + 1h.
func WindowFor(now time.Time) (start, end time.Time) {
	start = now.Add(-time.Hour).Truncate(time.Hour)
	return start, start.Add(time.Hour)
}

// Run aggregates the last completed hour window as of now. Groups with zero
// readings in the window produce no row. Returns the number of groups
// written. A store failure abandons the run; the next scheduled run proceeds
// independently.
func (s *AggregationService) Run(ctx context.Context, now time.Time) (int, error) {
	start, end := WindowFor(now)

	groups, err := s.readings.AggregateWindow(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate window %s: %w", start.Format(time.RFC3339), err)
	}

	for _, g := range groups {
		agg := &domain.HourlyAggregate{
			FieldID:       g.FieldID,
			SensorType:    g.SensorType,
			HourTimestamp: start,
			MinValue:      g.MinValue,
			MaxValue:      g.MaxValue,
			AvgValue:      g.AvgValue,
			ReadingCount:  g.ReadingCount,
		}
		if err := s.aggregates.UpsertWindow(ctx, agg); err != nil {
			return 0, fmt.Errorf("failed to store aggregate for field %d/%s: %w", g.FieldID, g.SensorType, err)
		}
	}

	s.log(ctx).WithFields(logger.Fields{
		"window_start": start.Format(time.RFC3339),
		"groups":       len(groups),
	}).Info("Hourly aggregation completed")

	return len(groups), nil
}
