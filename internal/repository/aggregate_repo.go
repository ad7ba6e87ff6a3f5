package repository

import (
	"context"

	"github.com/lukas/fieldinsights/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AggregateRepository handles hourly aggregate persistence.
type AggregateRepository struct {
	db *gorm.DB
}

// NewAggregateRepository creates a new AggregateRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *AggregateRepository: repository instance bound to db.
func NewAggregateRepository(db *gorm.DB) *AggregateRepository {
	return &AggregateRepository{db: db}
}

// UpsertWindow creates or replaces the aggregate row keyed by
// (field_id, sensor_type, hour_timestamp). Re-running the hourly job for a
// window overwrites the previous result rather than appending a duplicate.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - agg: aggregate row to create or update.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *AggregateRepository) UpsertWindow(ctx context.Context, agg *domain.HourlyAggregate) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "field_id"}, {Name: "sensor_type"}, {Name: "hour_timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"min_value", "max_value", "avg_value", "reading_count", "updated_at",
		}),
	}).Create(agg).Error
}

// ListByFieldAndSensor retrieves stored aggregates for one field and sensor
// type, newest window first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fieldID: field to query.
//   - sensorType: sensor type to query; empty means all types.
//   - limit: maximum number of rows to return.
// Returns:
//   - []domain.HourlyAggregate: matching aggregate rows.
//   - error: non-nil if the query fails.
func (r *AggregateRepository) ListByFieldAndSensor(ctx context.Context, fieldID int, sensorType string, limit int) ([]domain.HourlyAggregate, error) {
	query := r.db.WithContext(ctx).Where("field_id = ?", fieldID)
	if sensorType != "" {
		query = query.Where("sensor_type = ?", sensorType)
	}
	var aggregates []domain.HourlyAggregate
	if err := query.
		Order("hour_timestamp DESC").
		Limit(limit).
		Find(&aggregates).Error; err != nil {
		return nil, err
	}
	return aggregates, nil
}

// CountForWindow counts aggregate rows stored for one hour window.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - agg: aggregate carrying the window key fields.
// Returns:
//   - int64: number of matching rows.
//   - error: non-nil if the query fails.
func (r *AggregateRepository) CountForWindow(ctx context.Context, agg *domain.HourlyAggregate) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.HourlyAggregate{}).
		Where("field_id = ? AND sensor_type = ? AND hour_timestamp = ?", agg.FieldID, agg.SensorType, agg.HourTimestamp).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
