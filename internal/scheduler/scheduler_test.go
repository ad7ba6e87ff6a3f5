package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukas/fieldinsights/internal/domain"
	"github.com/lukas/fieldinsights/internal/repository"
	"github.com/lukas/fieldinsights/internal/service"
	"github.com/lukas/fieldinsights/internal/task"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:schedulertest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type recordingNotifier struct {
	mu    sync.Mutex
	views []domain.TaskView
}

func (n *recordingNotifier) TaskCompleted(_ context.Context, view domain.TaskView) error {
	n.mu.Lock()
	n.views = append(n.views, view)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) snapshot() []domain.TaskView {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.TaskView(nil), n.views...)
}

func newSchedulerFixture(t *testing.T, notifier TaskNotifier) (*Scheduler, *task.Tracker, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	tracker := task.NewTracker()

	fieldRepo := repository.NewFieldRepository(db)
	readingRepo := repository.NewReadingRepository(db)
	aggregateRepo := repository.NewAggregateRepository(db)

	ingest := service.NewIngestService(fieldRepo, readingRepo, tracker, nil)
	aggregation := service.NewAggregationService(readingRepo, aggregateRepo, nil)

	s := NewScheduler(ingest, aggregation, tracker, nil, notifier, nil, Config{
		AggregationInterval: time.Hour,
	})
	t.Cleanup(s.Stop)
	return s, tracker, db
}

// waitForTerminal polls the tracker until the task reaches a terminal state.
func waitForTerminal(t *testing.T, tracker *task.Tracker, taskID string) domain.TaskView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view, err := tracker.Get(taskID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if view.Status.Terminal() {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not reach a terminal state", taskID)
	return domain.TaskView{}
}

func TestSubmitIngestionReturnsImmediately(t *testing.T) {
	s, tracker, db := newSchedulerFixture(t, nil)

	csv := "field_id,sensor_type,value,unit\n" +
		"1,temperature,22,C\n" +
		"1,soil_moisture,60,%\n"

	taskID, err := s.SubmitIngestion([]byte(csv))
	if err != nil {
		t.Fatalf("SubmitIngestion failed: %v", err)
	}
	if taskID == "" {
		t.Fatal("SubmitIngestion returned empty task ID")
	}

	// The task must already be pollable, whatever state it is in
	if _, err := tracker.Get(taskID); err != nil {
		t.Fatalf("task not pollable right after submit: %v", err)
	}

	view := waitForTerminal(t, tracker, taskID)
	if view.Status != domain.TaskStatusSuccess {
		t.Fatalf("status = %s, want SUCCESS (result: %+v)", view.Status, view.Result)
	}
	if view.Progress.Current != 2 || view.Progress.Total != 2 {
		t.Errorf("progress = %d/%d, want 2/2", view.Progress.Current, view.Progress.Total)
	}

	var count int64
	db.Model(&domain.SensorReading{}).Count(&count)
	if count != 2 {
		t.Errorf("persisted readings = %d, want 2", count)
	}
}

func TestSubmitIngestionEmptyPayload(t *testing.T) {
	s, _, _ := newSchedulerFixture(t, nil)

	if _, err := s.SubmitIngestion(nil); err == nil {
		t.Error("SubmitIngestion accepted an empty payload")
	}
}

func TestSubmitIngestionConcurrentTasks(t *testing.T) {
	s, tracker, db := newSchedulerFixture(t, nil)

	ids := make([]string, 5)
	for i := range ids {
		csv := fmt.Sprintf("field_id,sensor_type,value,unit\n%d,temperature,%d,C\n", i+1, 20+i)
		id, err := s.SubmitIngestion([]byte(csv))
		if err != nil {
			t.Fatalf("SubmitIngestion %d failed: %v", i, err)
		}
		ids[i] = id
	}

	for _, id := range ids {
		view := waitForTerminal(t, tracker, id)
		if view.Status != domain.TaskStatusSuccess {
			t.Errorf("task %s status = %s, want SUCCESS", id, view.Status)
		}
	}

	var count int64
	db.Model(&domain.SensorReading{}).Count(&count)
	if count != 5 {
		t.Errorf("persisted readings = %d, want 5", count)
	}
}

func TestSchedulerNotifiesTerminalState(t *testing.T) {
	notifier := &recordingNotifier{}
	s, tracker, _ := newSchedulerFixture(t, notifier)

	// One success, one validation failure
	okID, err := s.SubmitIngestion([]byte("field_id,sensor_type,value,unit\n1,temperature,22,C\n"))
	if err != nil {
		t.Fatalf("SubmitIngestion failed: %v", err)
	}
	badID, err := s.SubmitIngestion([]byte("field_id,sensor_type,value,unit\n1,temperature,oops,C\n"))
	if err != nil {
		t.Fatalf("SubmitIngestion failed: %v", err)
	}

	waitForTerminal(t, tracker, okID)
	waitForTerminal(t, tracker, badID)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(notifier.snapshot()) < 2 {
		time.Sleep(5 * time.Millisecond)
	}

	views := notifier.snapshot()
	if len(views) != 2 {
		t.Fatalf("notifications = %d, want 2", len(views))
	}
	byID := make(map[string]domain.TaskView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}
	if byID[okID].Status != domain.TaskStatusSuccess {
		t.Errorf("notified status for %s = %s, want SUCCESS", okID, byID[okID].Status)
	}
	if byID[badID].Status != domain.TaskStatusFailure {
		t.Errorf("notified status for %s = %s, want FAILURE", badID, byID[badID].Status)
	}
}

func TestRunAggregationNow(t *testing.T) {
	s, _, db := newSchedulerFixture(t, nil)

	windowStart := time.Now().UTC().Add(-time.Hour).Truncate(time.Hour)
	reading := &domain.SensorReading{
		FieldID:    1,
		SensorType: "temperature",
		Value:      25,
		Unit:       "C",
		Timestamp:  windowStart.Add(time.Minute),
	}
	if err := db.Create(&domain.Field{ID: 1, Name: "Field 1"}).Error; err != nil {
		t.Fatalf("failed to seed field: %v", err)
	}
	if err := db.Create(reading).Error; err != nil {
		t.Fatalf("failed to seed reading: %v", err)
	}

	groups, err := s.RunAggregationNow(context.Background())
	if err != nil {
		t.Fatalf("RunAggregationNow failed: %v", err)
	}
	if groups != 1 {
		t.Errorf("groups = %d, want 1", groups)
	}
}

func TestStopCancelsInFlightIngestion(t *testing.T) {
	db := newTestDB(t)
	tracker := task.NewTracker()

	fieldRepo := repository.NewFieldRepository(db)
	readingRepo := repository.NewReadingRepository(db)
	aggregateRepo := repository.NewAggregateRepository(db)
	ingest := service.NewIngestService(fieldRepo, readingRepo, tracker, nil)
	aggregation := service.NewAggregationService(readingRepo, aggregateRepo, nil)

	s := NewScheduler(ingest, aggregation, tracker, nil, nil, nil, Config{
		AggregationInterval: time.Hour,
	})

	// Large payload so the task is still running when Stop cancels it
	var csv strings.Builder
	csv.WriteString("field_id,sensor_type,value,unit\n")
	for i := 0; i < 50000; i++ {
		csv.WriteString("1,temperature,22,C\n")
	}

	taskID, err := s.SubmitIngestion([]byte(csv.String()))
	if err != nil {
		t.Fatalf("SubmitIngestion failed: %v", err)
	}

	s.Stop()

	view, err := tracker.Get(taskID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !view.Status.Terminal() {
		t.Fatalf("task not terminal after Stop, status = %s", view.Status)
	}
	// Either the task finished before cancellation landed or it was
	// canceled mid-file; both are terminal and the committed prefix survives
	if view.Status == domain.TaskStatusFailure && view.Result.ErrorKind != domain.ErrorKindCanceled {
		t.Errorf("failure kind = %s, want canceled", view.Result.ErrorKind)
	}
}
