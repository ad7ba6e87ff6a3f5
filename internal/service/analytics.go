package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lukas/fieldinsights/internal/domain"
	"github.com/lukas/fieldinsights/internal/logger"
	"github.com/lukas/fieldinsights/internal/repository"
)

// chartKeyLayout is the minute-truncated timestamp key two sensor series are
// outer-joined on, and chartLabelLayout the label shown on the time axis.
const (
	chartKeyLayout   = "2006-01-02 15:04"
	chartLabelLayout = "15:04"
)

// ChartPoint is one merged point of the chart series. Temperature and soil
// moisture are pointers because either series may have no reading at a given
// minute (outer join).
type ChartPoint struct {
	Time         string   `json:"time"`
	Temperature  *float64 `json:"temperature,omitempty"`
	SoilMoisture *float64 `json:"soil_moisture,omitempty"`
}

// AnalyticsService serves ad-hoc aggregated statistics and chart series over
// raw readings, plus read access to stored hourly aggregates.
type AnalyticsService struct {
	fields     *repository.FieldRepository
	readings   *repository.ReadingRepository
	aggregates *repository.AggregateRepository
	logger     *logger.Logger
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(
	fields *repository.FieldRepository,
	readings *repository.ReadingRepository,
	aggregates *repository.AggregateRepository,
	log *logger.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		fields:     fields,
		readings:   readings,
		aggregates: aggregates,
		logger:     log,
	}
}

// GetAnalytics computes min/max/avg/count for a field and sensor type over
// [start, end]. Zero times default to the last 24 hours ending now. A range
// with no matching readings returns domain.ErrNoData, not zeros.
func (s *AnalyticsService) GetAnalytics(ctx context.Context, fieldID int, sensorType string, start, end time.Time) (*domain.AggregateStats, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-24 * time.Hour)
	}

	stats, err := s.readings.AggregateRange(ctx, fieldID, sensorType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	if stats.ReadingCount == 0 {
		return nil, domain.ErrNoData
	}
	return stats, nil
}

// GetChartData merges the temperature and soil moisture series of a field
// over the trailing window into one sequence keyed by minute-truncated
// timestamp, sorted ascending. Minutes present in only one series carry just
// that series' value.
func (s *AnalyticsService) GetChartData(ctx context.Context, fieldID int, hours int) ([]ChartPoint, error) {
	if hours <= 0 {
		hours = 24
	}
	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	temps, err := s.readings.QuerySeries(ctx, fieldID, domain.SensorTypeTemperature, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query temperature series: %w", err)
	}
	moisture, err := s.readings.QuerySeries(ctx, fieldID, domain.SensorTypeSoilMoisture, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query soil moisture series: %w", err)
	}

	return mergeChartSeries(temps, moisture), nil
}

// ListFields returns all known fields.
func (s *AnalyticsService) ListFields(ctx context.Context) ([]domain.Field, error) {
	fields, err := s.fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	return fields, nil
}

// ListHourlyAggregates returns stored hourly aggregates for a field, newest
// window first. An empty sensorType matches all sensor types.
func (s *AnalyticsService) ListHourlyAggregates(ctx context.Context, fieldID int, sensorType string, limit int) ([]domain.HourlyAggregate, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	aggregates, err := s.aggregates.ListByFieldAndSensor(ctx, fieldID, sensorType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list hourly aggregates: %w", err)
	}
	return aggregates, nil
}

// mergeChartSeries outer-joins two ordered series on the minute-truncated
// timestamp key. When a series has several readings within one minute, the
// last one wins.
func mergeChartSeries(temps, moisture []domain.TimedValue) []ChartPoint {
	combined := make(map[string]*ChartPoint)

	for _, tv := range temps {
		key := tv.Timestamp.Format(chartKeyLayout)
		point, ok := combined[key]
		if !ok {
			point = &ChartPoint{Time: tv.Timestamp.Format(chartLabelLayout)}
			combined[key] = point
		}
		v := tv.Value
		point.Temperature = &v
	}
	for _, tv := range moisture {
		key := tv.Timestamp.Format(chartKeyLayout)
		point, ok := combined[key]
		if !ok {
			point = &ChartPoint{Time: tv.Timestamp.Format(chartLabelLayout)}
			combined[key] = point
		}
		v := tv.Value
		point.SoilMoisture = &v
	}

	keys := make([]string, 0, len(combined))
	for key := range combined {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	points := make([]ChartPoint, 0, len(keys))
	for _, key := range keys {
		points = append(points, *combined[key])
	}
	return points
}
