package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lukas/fieldinsights/internal/domain"
	"github.com/lukas/fieldinsights/internal/repository"
	"gorm.io/gorm"
)

func newAnalyticsFixture(t *testing.T) (*AnalyticsService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewAnalyticsService(
		repository.NewFieldRepository(db),
		repository.NewReadingRepository(db),
		repository.NewAggregateRepository(db),
		nil,
	)
	return svc, db
}

func TestGetAnalyticsStats(t *testing.T) {
	svc, db := newAnalyticsFixture(t)

	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	seedReading(t, db, 1, "temperature", 22, base)
	seedReading(t, db, 1, "temperature", 28, base.Add(10*time.Minute))
	seedReading(t, db, 1, "soil_moisture", 60, base) // different sensor, excluded
	seedReading(t, db, 2, "temperature", 99, base)   // different field, excluded

	stats, err := svc.GetAnalytics(context.Background(), 1, "temperature", base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetAnalytics failed: %v", err)
	}
	if stats.MinValue != 22 || stats.MaxValue != 28 || stats.AvgValue != 25 || stats.ReadingCount != 2 {
		t.Errorf("stats = {min:%v max:%v avg:%v count:%v}, want {22 28 25 2}",
			stats.MinValue, stats.MaxValue, stats.AvgValue, stats.ReadingCount)
	}
}

func TestGetAnalyticsNoData(t *testing.T) {
	svc, db := newAnalyticsFixture(t)

	// Data exists, but outside the queried range
	seedReading(t, db, 1, "temperature", 22, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	start := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	_, err := svc.GetAnalytics(context.Background(), 1, "temperature", start, start.Add(time.Hour))
	if !errors.Is(err, domain.ErrNoData) {
		t.Errorf("error = %v, want ErrNoData (absence is not a zero-valued result)", err)
	}
}

func TestGetChartDataMergesSeries(t *testing.T) {
	svc, db := newAnalyticsFixture(t)

	now := time.Now().UTC()
	m0 := now.Add(-30 * time.Minute).Truncate(time.Minute)
	m1 := m0.Add(time.Minute)
	m2 := m0.Add(2 * time.Minute)

	seedReading(t, db, 1, "temperature", 21, m0)
	seedReading(t, db, 1, "soil_moisture", 55, m0)
	seedReading(t, db, 1, "temperature", 22, m1) // temperature only
	seedReading(t, db, 1, "soil_moisture", 56, m2)

	points, err := svc.GetChartData(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("GetChartData failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}

	if points[0].Temperature == nil || *points[0].Temperature != 21 {
		t.Errorf("point 0 temperature = %v, want 21", points[0].Temperature)
	}
	if points[0].SoilMoisture == nil || *points[0].SoilMoisture != 55 {
		t.Errorf("point 0 soil_moisture = %v, want 55", points[0].SoilMoisture)
	}

	// Outer join: minute with only one series carries just that value
	if points[1].Temperature == nil || *points[1].Temperature != 22 {
		t.Errorf("point 1 temperature = %v, want 22", points[1].Temperature)
	}
	if points[1].SoilMoisture != nil {
		t.Errorf("point 1 soil_moisture = %v, want absent", *points[1].SoilMoisture)
	}
	if points[2].Temperature != nil {
		t.Errorf("point 2 temperature = %v, want absent", *points[2].Temperature)
	}
	if points[2].SoilMoisture == nil || *points[2].SoilMoisture != 56 {
		t.Errorf("point 2 soil_moisture = %v, want 56", points[2].SoilMoisture)
	}
}

func TestMergeChartSeriesOrderingAndLastWins(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	temps := []domain.TimedValue{
		{Timestamp: base.Add(2 * time.Minute), Value: 23},
		{Timestamp: base, Value: 21},
		// Two readings in the same minute: the later one wins
		{Timestamp: base.Add(10 * time.Second), Value: 21.5},
	}
	moisture := []domain.TimedValue{
		{Timestamp: base.Add(time.Minute), Value: 50},
	}

	points := mergeChartSeries(temps, moisture)
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}

	wantTimes := []string{"10:00", "10:01", "10:02"}
	for i, want := range wantTimes {
		if points[i].Time != want {
			t.Errorf("point %d time = %q, want %q (ascending by minute)", i, points[i].Time, want)
		}
	}
	if points[0].Temperature == nil || *points[0].Temperature != 21.5 {
		t.Errorf("same-minute merge: temperature = %v, want 21.5", points[0].Temperature)
	}
}

func TestListFields(t *testing.T) {
	svc, db := newAnalyticsFixture(t)

	seedReading(t, db, 3, "temperature", 20, time.Now().UTC())
	seedReading(t, db, 1, "temperature", 20, time.Now().UTC())

	fields, err := svc.ListFields(context.Background())
	if err != nil {
		t.Fatalf("ListFields failed: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(fields))
	}
	if fields[0].ID != 1 || fields[1].ID != 3 {
		t.Errorf("fields not ordered by ID: %+v", fields)
	}
}

func TestListHourlyAggregates(t *testing.T) {
	svc, db := newAnalyticsFixture(t)

	older := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	for _, hour := range []time.Time{older, newer} {
		agg := &domain.HourlyAggregate{
			FieldID:       1,
			SensorType:    "temperature",
			HourTimestamp: hour,
			MinValue:      20,
			MaxValue:      30,
			AvgValue:      25,
			ReadingCount:  2,
		}
		if err := db.Create(agg).Error; err != nil {
			t.Fatalf("failed to seed aggregate: %v", err)
		}
	}

	aggs, err := svc.ListHourlyAggregates(context.Background(), 1, "temperature", 10)
	if err != nil {
		t.Fatalf("ListHourlyAggregates failed: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("aggregates = %d, want 2", len(aggs))
	}
	if !aggs[0].HourTimestamp.UTC().Equal(newer) {
		t.Errorf("aggregates not newest-first: %v", aggs[0].HourTimestamp)
	}
}
