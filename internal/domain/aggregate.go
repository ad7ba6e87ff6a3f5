package domain

import "time"

// HourlyAggregate is the precomputed min/max/avg/count of readings for one
// (field, sensor type) pair within one clock-hour window. HourTimestamp is the
// window start truncated to the hour. The composite unique index makes the
// hourly job idempotent: re-running a window replaces the row instead of
// appending a duplicate.
type HourlyAggregate struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	FieldID       int       `gorm:"not null;uniqueIndex:idx_aggregates_window" json:"field_id"`
	SensorType    string    `gorm:"type:text;not null;uniqueIndex:idx_aggregates_window" json:"sensor_type"`
	HourTimestamp time.Time `gorm:"not null;uniqueIndex:idx_aggregates_window" json:"hour_timestamp"`
	MinValue      float64   `json:"min_value"`
	MaxValue      float64   `json:"max_value"`
	AvgValue      float64   `json:"avg_value"`
	ReadingCount  int64     `json:"reading_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for HourlyAggregate.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (HourlyAggregate) TableName() string {
	return "hourly_aggregates"
}

// AggregateStats holds grouped statistics computed over a set of readings.
// It is produced both by the hourly aggregation GROUP BY query and by the
// ad-hoc analytics endpoint.
type AggregateStats struct {
	FieldID      int     `json:"field_id"`
	SensorType   string  `json:"sensor_type"`
	MinValue     float64 `json:"min"`
	MaxValue     float64 `json:"max"`
	AvgValue     float64 `json:"avg"`
	ReadingCount int64   `json:"count"`
}
