package repository

import (
	"context"
	"time"

	"github.com/lukas/fieldinsights/internal/domain"
	"gorm.io/gorm"
)

// ReadingRepository handles sensor reading data operations.
type ReadingRepository struct {
	db *gorm.DB
}

// NewReadingRepository creates a new ReadingRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ReadingRepository: repository instance bound to db.
func NewReadingRepository(db *gorm.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Create inserts a new sensor reading.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - reading: reading to persist; a zero Timestamp is replaced with now.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ReadingRepository) Create(ctx context.Context, reading *domain.SensorReading) error {
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(reading).Error
}

// QuerySeries retrieves (timestamp, value) pairs for one field and sensor
// type within [start, end], ordered by timestamp ascending.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fieldID: field to query.
//   - sensorType: sensor type to query.
//   - start: range start, inclusive.
//   - end: range end, inclusive.
// Returns:
//   - []domain.TimedValue: ordered series, possibly empty.
//   - error: non-nil if the query fails.
func (r *ReadingRepository) QuerySeries(ctx context.Context, fieldID int, sensorType string, start, end time.Time) ([]domain.TimedValue, error) {
	var series []domain.TimedValue
	if err := r.db.WithContext(ctx).
		Model(&domain.SensorReading{}).
		Select("timestamp, value").
		Where("field_id = ? AND sensor_type = ?", fieldID, sensorType).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp ASC").
		Scan(&series).Error; err != nil {
		return nil, err
	}
	return series, nil
}

// AggregateRange computes min/max/avg/count for one field and sensor type
// within [start, end].
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fieldID: field to aggregate.
//   - sensorType: sensor type to aggregate.
//   - start: range start, inclusive.
//   - end: range end, inclusive.
// Returns:
//   - *domain.AggregateStats: stats with ReadingCount zero when nothing matched.
//   - error: non-nil if the query fails.
func (r *ReadingRepository) AggregateRange(ctx context.Context, fieldID int, sensorType string, start, end time.Time) (*domain.AggregateStats, error) {
	var stats domain.AggregateStats
	if err := r.db.WithContext(ctx).
		Model(&domain.SensorReading{}).
		Select("COALESCE(MIN(value), 0) AS min_value, COALESCE(MAX(value), 0) AS max_value, COALESCE(AVG(value), 0) AS avg_value, COUNT(id) AS reading_count").
		Where("field_id = ? AND sensor_type = ?", fieldID, sensorType).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Scan(&stats).Error; err != nil {
		return nil, err
	}
	stats.FieldID = fieldID
	stats.SensorType = sensorType
	return &stats, nil
}

// AggregateWindow computes grouped min/max/avg/count over all readings with
// window start inclusive and window end exclusive, grouped by
// (field_id, sensor_type). Groups with no readings produce no row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - start: window start, inclusive.
//   - end: window end, exclusive.
// Returns:
//   - []domain.AggregateStats: one entry per non-empty group.
//   - error: non-nil if the query fails.
func (r *ReadingRepository) AggregateWindow(ctx context.Context, start, end time.Time) ([]domain.AggregateStats, error) {
	var groups []domain.AggregateStats
	if err := r.db.WithContext(ctx).
		Model(&domain.SensorReading{}).
		Select("field_id, sensor_type, MIN(value) AS min_value, MAX(value) AS max_value, AVG(value) AS avg_value, COUNT(id) AS reading_count").
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Group("field_id").
		Group("sensor_type").
		Order("field_id ASC").
		Scan(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// CountByField counts readings attributed to a field.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fieldID: field to count.
// Returns:
//   - int64: number of readings.
//   - error: non-nil if the query fails.
func (r *ReadingRepository) CountByField(ctx context.Context, fieldID int) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.SensorReading{}).Where("field_id = ?", fieldID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
