package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lukas/fieldinsights/internal/domain"
	"github.com/lukas/fieldinsights/internal/logger"
	"github.com/lukas/fieldinsights/internal/repository"
	"github.com/lukas/fieldinsights/internal/task"
)

// Required CSV columns. timestamp is optional and falls back to the
// ingestion time when missing or blank.
const (
	colFieldID    = "field_id"
	colSensorType = "sensor_type"
	colValue      = "value"
	colUnit       = "unit"
	colTimestamp  = "timestamp"
)

// timestampLayouts are tried in order when parsing the optional timestamp
// column.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// IngestService streams CSV payloads into the store with per-row progress
// reporting. Processing is weakly atomic: the first bad row aborts the task,
// but rows committed before it remain persisted (partial completion). The
// caller sees the failure detail, including the offending row number, in the
// task's terminal state.
type IngestService struct {
	fields   *repository.FieldRepository
	readings *repository.ReadingRepository
	tracker  *task.Tracker
	logger   *logger.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	fields *repository.FieldRepository,
	readings *repository.ReadingRepository,
	tracker *task.Tracker,
	log *logger.Logger,
) *IngestService {
	return &IngestService{
		fields:   fields,
		readings: readings,
		tracker:  tracker,
		logger:   log,
	}
}

// log returns a logger from context if available, otherwise the service logger
func (s *IngestService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// ProcessCSV runs the full ingestion pipeline for one task: count pass for
// rows_total, then a streaming pass that validates each row, lazily creates
// referenced fields, persists the reading, and advances the tracker. The
// terminal task state is always set before returning.
func (s *IngestService) ProcessCSV(ctx context.Context, taskID string, payload []byte) error {
	ctx = logger.SetTaskID(ctx, taskID)

	if err := s.tracker.Start(taskID); err != nil {
		return fmt.Errorf("failed to start task %s: %w", taskID, err)
	}

	total, err := countDataRows(payload)
	if err != nil {
		taskErr := domain.NewValidationError(0, err)
		s.failTask(ctx, taskID, taskErr)
		return taskErr
	}

	s.log(ctx).WithFields(logger.Fields{
		"rows_total": total,
		"bytes":      len(payload),
	}).Info("Starting CSV ingestion")

	if err := s.tracker.Update(taskID, 0, total); err != nil {
		return fmt.Errorf("failed to update task %s: %w", taskID, err)
	}

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		taskErr := domain.NewValidationError(0, fmt.Errorf("failed to read CSV header: %w", err))
		s.failTask(ctx, taskID, taskErr)
		return taskErr
	}

	columns, err := mapColumns(header)
	if err != nil {
		taskErr := domain.NewValidationError(0, err)
		s.failTask(ctx, taskID, taskErr)
		return taskErr
	}

	// Fields already created during this run; avoids an existence check per
	// repeated reference
	seenFields := make(map[int]struct{})

	var processed int64
	for {
		// Cancellation hook: an in-flight task observes shutdown between
		// rows and fails with the partial-completion contract intact
		if ctxErr := ctx.Err(); ctxErr != nil {
			taskErr := &domain.TaskError{Kind: domain.ErrorKindCanceled, Row: int(processed) + 1, Err: ctxErr}
			s.failTask(ctx, taskID, taskErr)
			return taskErr
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum := int(processed) + 1
		if err != nil {
			taskErr := domain.NewValidationError(rowNum, fmt.Errorf("malformed CSV: %w", err))
			s.failTask(ctx, taskID, taskErr)
			return taskErr
		}

		reading, err := parseRow(record, columns)
		if err != nil {
			taskErr := domain.NewValidationError(rowNum, err)
			s.failTask(ctx, taskID, taskErr)
			return taskErr
		}

		if _, ok := seenFields[reading.FieldID]; !ok {
			name := fmt.Sprintf("Field %d", reading.FieldID)
			if err := s.fields.EnsureExists(ctx, reading.FieldID, name); err != nil {
				taskErr := domain.NewStoreError(rowNum, fmt.Errorf("failed to ensure field %d: %w", reading.FieldID, err))
				s.failTask(ctx, taskID, taskErr)
				return taskErr
			}
			seenFields[reading.FieldID] = struct{}{}
		}

		if err := s.readings.Create(ctx, reading); err != nil {
			taskErr := domain.NewStoreError(rowNum, fmt.Errorf("failed to persist reading: %w", err))
			s.failTask(ctx, taskID, taskErr)
			return taskErr
		}

		processed++
		if err := s.tracker.Update(taskID, processed, total); err != nil {
			return fmt.Errorf("failed to update task %s: %w", taskID, err)
		}
	}

	if err := s.tracker.Succeed(taskID, "Completed!"); err != nil {
		return fmt.Errorf("failed to complete task %s: %w", taskID, err)
	}

	s.log(ctx).WithFields(logger.Fields{
		"rows_processed": processed,
		"fields_seen":    len(seenFields),
	}).Info("CSV ingestion completed")

	return nil
}

// CreateReading persists a single reading, lazily creating the referenced
// field so the field-reference invariant holds for every write path.
func (s *IngestService) CreateReading(ctx context.Context, reading *domain.SensorReading) error {
	if reading.SensorType == "" {
		return domain.NewValidationError(0, errors.New("sensor_type must not be empty"))
	}
	name := fmt.Sprintf("Field %d", reading.FieldID)
	if err := s.fields.EnsureExists(ctx, reading.FieldID, name); err != nil {
		return domain.NewStoreError(0, fmt.Errorf("failed to ensure field %d: %w", reading.FieldID, err))
	}
	if err := s.readings.Create(ctx, reading); err != nil {
		return domain.NewStoreError(0, fmt.Errorf("failed to persist reading: %w", err))
	}
	return nil
}

// failTask records the terminal FAILURE state and logs it. A tracker error
// here means the task was already terminal, which only happens when the
// submitting scheduler canceled it first; nothing to do but log.
func (s *IngestService) failTask(ctx context.Context, taskID string, taskErr *domain.TaskError) {
	s.log(ctx).WithFields(logger.Fields{
		"error_kind": string(taskErr.Kind),
		"row":        taskErr.Row,
	}).WithError(taskErr.Err).Error("Ingestion task failed")

	if err := s.tracker.Fail(taskID, taskErr.Kind, taskErr.Error()); err != nil {
		s.log(ctx).WithError(err).Warn("Could not record task failure")
	}
}

// countDataRows counts the data rows in the payload so progress can report a
// known total. The payload is already fully buffered by the upload handler,
// so the extra pass costs one scan and no I/O.
func countDataRows(payload []byte) (int64, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return 0, errors.New("empty CSV payload")
		}
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var total int64
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed rows still count toward the total; the streaming
			// pass reports the precise row-level error
			total++
			continue
		}
		total++
	}
	return total, nil
}

// mapColumns maps required column names to their header positions.
func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{colFieldID, colSensorType, colValue, colUnit} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}
	return columns, nil
}

// parseRow validates and normalizes one CSV record into a reading.
func parseRow(record []string, columns map[string]int) (*domain.SensorReading, error) {
	get := func(name string) (string, bool) {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[idx]), true
	}

	rawFieldID, ok := get(colFieldID)
	if !ok || rawFieldID == "" {
		return nil, errors.New("missing field_id")
	}
	fieldID, err := strconv.Atoi(rawFieldID)
	if err != nil {
		return nil, fmt.Errorf("invalid field_id %q", rawFieldID)
	}

	sensorType, ok := get(colSensorType)
	if !ok || sensorType == "" {
		return nil, errors.New("missing sensor_type")
	}

	rawValue, ok := get(colValue)
	if !ok || rawValue == "" {
		return nil, errors.New("missing value")
	}
	value, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q", rawValue)
	}

	unit, _ := get(colUnit)

	reading := &domain.SensorReading{
		FieldID:    fieldID,
		SensorType: sensorType,
		Value:      value,
		Unit:       unit,
	}

	if rawTS, ok := get(colTimestamp); ok && rawTS != "" {
		ts, err := parseTimestamp(rawTS)
		if err != nil {
			return nil, err
		}
		reading.Timestamp = ts
	} else {
		reading.Timestamp = time.Now().UTC()
	}

	return reading, nil
}

// parseTimestamp tries the accepted layouts in order.
func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", raw)
}
