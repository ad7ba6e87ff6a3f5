package service

import (
	"context"
	"testing"
	"time"

	"github.com/lukas/fieldinsights/internal/domain"
	"github.com/lukas/fieldinsights/internal/repository"
	"gorm.io/gorm"
)

func newAggregationFixture(t *testing.T) (*AggregationService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewAggregationService(
		repository.NewReadingRepository(db),
		repository.NewAggregateRepository(db),
		nil,
	)
	return svc, db
}

func seedReading(t *testing.T, db *gorm.DB, fieldID int, sensorType string, value float64, ts time.Time) {
	t.Helper()
	if err := db.Create(&domain.Field{ID: fieldID, Name: "Field"}).Error; err != nil {
		// Field may already exist from an earlier seed
		var existing domain.Field
		if db.First(&existing, "id = ?", fieldID).Error != nil {
			t.Fatalf("failed to seed field %d: %v", fieldID, err)
		}
	}
	reading := &domain.SensorReading{
		FieldID:    fieldID,
		SensorType: sensorType,
		Value:      value,
		Unit:       "u",
		Timestamp:  ts,
	}
	if err := db.Create(reading).Error; err != nil {
		t.Fatalf("failed to seed reading: %v", err)
	}
}

func TestWindowFor(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 37, 12, 0, time.UTC)
	start, end := WindowFor(now)

	wantStart := time.Date(2026, 8, 29, 13, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantStart.Add(time.Hour)) {
		t.Errorf("end = %v, want %v", end, wantStart.Add(time.Hour))
	}

	// Exactly on the hour: the preceding full hour is aggregated
	onHour := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	start, _ = WindowFor(onHour)
	if !start.Equal(time.Date(2026, 8, 29, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("on-the-hour start = %v, want 13:00", start)
	}
}

func TestAggregationRunStats(t *testing.T) {
	svc, db := newAggregationFixture(t)

	now := time.Date(2026, 8, 29, 12, 5, 0, 0, time.UTC)
	windowStart := time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC)

	seedReading(t, db, 1, "temperature", 20, windowStart.Add(10*time.Minute))
	seedReading(t, db, 1, "temperature", 30, windowStart.Add(40*time.Minute))

	groups, err := svc.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if groups != 1 {
		t.Fatalf("groups = %d, want 1", groups)
	}

	var agg domain.HourlyAggregate
	if err := db.First(&agg).Error; err != nil {
		t.Fatalf("aggregate query failed: %v", err)
	}
	if agg.MinValue != 20 || agg.MaxValue != 30 || agg.AvgValue != 25 || agg.ReadingCount != 2 {
		t.Errorf("aggregate = {min:%v max:%v avg:%v count:%v}, want {20 30 25 2}",
			agg.MinValue, agg.MaxValue, agg.AvgValue, agg.ReadingCount)
	}
	if !agg.HourTimestamp.UTC().Equal(windowStart) {
		t.Errorf("hour_timestamp = %v, want %v", agg.HourTimestamp, windowStart)
	}
}

func TestAggregationWindowBoundaries(t *testing.T) {
	svc, db := newAggregationFixture(t)

	now := time.Date(2026, 8, 29, 12, 0, 30, 0, time.UTC)
	windowStart := time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC)

	// Start is inclusive, end exclusive
	seedReading(t, db, 1, "temperature", 10, windowStart)
	seedReading(t, db, 1, "temperature", 99, windowStart.Add(time.Hour))
	seedReading(t, db, 1, "temperature", 98, windowStart.Add(-time.Second))

	if _, err := svc.Run(context.Background(), now); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var agg domain.HourlyAggregate
	if err := db.First(&agg).Error; err != nil {
		t.Fatalf("aggregate query failed: %v", err)
	}
	if agg.ReadingCount != 1 || agg.MinValue != 10 || agg.MaxValue != 10 {
		t.Errorf("aggregate = {min:%v max:%v count:%v}, want only the boundary-start reading",
			agg.MinValue, agg.MaxValue, agg.ReadingCount)
	}
}

func TestAggregationEmptyWindowWritesNothing(t *testing.T) {
	svc, db := newAggregationFixture(t)

	// Reading far outside the aggregated window
	seedReading(t, db, 1, "temperature", 20, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	groups, err := svc.Run(context.Background(), time.Date(2026, 8, 29, 12, 5, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if groups != 0 {
		t.Errorf("groups = %d, want 0", groups)
	}

	var count int64
	db.Model(&domain.HourlyAggregate{}).Count(&count)
	if count != 0 {
		t.Errorf("aggregate rows = %d, want 0 (absence means no data, not zero)", count)
	}
}

func TestAggregationRerunIsIdempotent(t *testing.T) {
	svc, db := newAggregationFixture(t)

	now := time.Date(2026, 8, 29, 12, 5, 0, 0, time.UTC)
	windowStart := time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC)
	seedReading(t, db, 1, "temperature", 20, windowStart.Add(5*time.Minute))

	if _, err := svc.Run(context.Background(), now); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// A reading that lands in the window between runs changes the stats;
	// the rerun must replace the row, not append a second one
	seedReading(t, db, 1, "temperature", 40, windowStart.Add(30*time.Minute))
	if _, err := svc.Run(context.Background(), now); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	var aggs []domain.HourlyAggregate
	if err := db.Find(&aggs).Error; err != nil {
		t.Fatalf("aggregate query failed: %v", err)
	}
	if len(aggs) != 1 {
		t.Fatalf("aggregate rows = %d, want 1 after rerun", len(aggs))
	}
	if aggs[0].ReadingCount != 2 || aggs[0].MaxValue != 40 || aggs[0].AvgValue != 30 {
		t.Errorf("rerun aggregate = {max:%v avg:%v count:%v}, want updated {40 30 2}",
			aggs[0].MaxValue, aggs[0].AvgValue, aggs[0].ReadingCount)
	}
}

func TestAggregationGroupsPerFieldAndSensor(t *testing.T) {
	svc, db := newAggregationFixture(t)

	now := time.Date(2026, 8, 29, 12, 5, 0, 0, time.UTC)
	ts := time.Date(2026, 8, 29, 11, 30, 0, 0, time.UTC)

	seedReading(t, db, 1, "temperature", 20, ts)
	seedReading(t, db, 1, "soil_moisture", 60, ts)
	seedReading(t, db, 2, "temperature", 25, ts)

	groups, err := svc.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if groups != 3 {
		t.Errorf("groups = %d, want 3 (one per field/sensor pair)", groups)
	}
}
