package domain

import "time"

// SensorReading is one timestamped measurement from a sensor type at a field.
// Readings are append-only: once created they are never updated or deleted by
// the service.
type SensorReading struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FieldID    int       `gorm:"not null;index:idx_readings_field_sensor" json:"field_id"`
	SensorType string    `gorm:"type:text;not null;index:idx_readings_field_sensor" json:"sensor_type"`
	Value      float64   `gorm:"not null" json:"value"`
	Unit       string    `gorm:"type:text" json:"unit"`
	Timestamp  time.Time `gorm:"not null;index:idx_readings_timestamp" json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for SensorReading.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (SensorReading) TableName() string {
	return "sensor_readings"
}

// SensorTypeTemperature and SensorTypeSoilMoisture are the two series the
// chart endpoint merges. Sensor types are otherwise free-form strings.
const (
	SensorTypeTemperature  = "temperature"
	SensorTypeSoilMoisture = "soil_moisture"
)

// TimedValue is a (timestamp, value) pair projected out of sensor_readings
// for chart queries.
type TimedValue struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
