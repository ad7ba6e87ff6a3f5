package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldTaskID is the ingestion task ID
	FieldTaskID = "task_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldFieldID is the agricultural field identifier
	FieldFieldID = "field_id"

	// FieldSensorType is the sensor type of a reading or query
	FieldSensorType = "sensor_type"
)
