package usage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/RichardKnop/machinery/v1/tasks"
	"go.uber.org/zap"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/cache"
	"fleet-api-server/internal/models"
)

type fakeUsageRepo struct {
	samples []models.UsageSample

	lastStart time.Time
	lastEnd   time.Time
}

func (r *fakeUsageRepo) SamplesBetween(ctx context.Context, projectID uint, start, end time.Time) ([]models.UsageSample, error) {
	r.lastStart = start
	r.lastEnd = end
	var out []models.UsageSample
	for _, s := range r.samples {
		if s.ProjectID != projectID || s.Timestamp.Before(start) || s.Timestamp.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeUsageRepo) EarliestSampleTime(ctx context.Context, projectID uint) (*time.Time, error) {
	var earliest *time.Time
	for i := range r.samples {
		s := r.samples[i]
		if s.ProjectID != projectID {
			continue
		}
		if earliest == nil || s.Timestamp.Before(*earliest) {
			earliest = &s.Timestamp
		}
	}
	return earliest, nil
}

// fakeTaskRunner tracks enqueued tasks by logical name the way the worker's
// dedup cache does.
type fakeTaskRunner struct {
	nextUUID int
	byName   map[string]string
	sent     int
}

func newFakeTaskRunner() *fakeTaskRunner {
	return &fakeTaskRunner{byName: make(map[string]string)}
}

func (f *fakeTaskRunner) RegisterTask(name string, task interface{}) error { return nil }

func (f *fakeTaskRunner) SendTaskWithContext(ctx context.Context, task *tasks.Signature, name string) (*tasks.TaskState, error) {
	if uuid, ok := f.byName[name]; ok {
		return &tasks.TaskState{TaskUUID: uuid, State: tasks.StateStarted}, nil
	}
	f.sent++
	f.nextUUID++
	uuid := fmt.Sprintf("task-%d", f.nextUUID)
	f.byName[name] = uuid
	return &tasks.TaskState{TaskUUID: uuid, State: tasks.StatePending}, nil
}

func (f *fakeTaskRunner) GetUUID(name string) (string, error) {
	uuid, ok := f.byName[name]
	if !ok {
		return "", commonerrors.NotFoundErr("uuid", name)
	}
	return uuid, nil
}

func (f *fakeTaskRunner) GetTaskStatus(uuid string) (string, error) {
	return tasks.StatePending, nil
}

func (f *fakeTaskRunner) GetTaskResult(uuid string) ([]reflect.Value, error) {
	return nil, tasks.ErrTaskReturnsNoValue
}

func newTestService(t *testing.T, repo UsageRepository) *usageService {
	t.Helper()
	c, err := cache.NewCache()
	if err != nil {
		t.Fatalf("cache init failed: %v", err)
	}
	// worker stays nil: the query path never touches the broker
	return &usageService{
		cache:      c,
		repository: repo,
		logger:     zap.NewNop(),
	}
}

func TestGetUsageEmptyProject(t *testing.T) {
	svc := newTestService(t, &fakeUsageRepo{})

	for _, window := range []Window{WindowDay, WindowTotal} {
		points, err := svc.GetUsage(context.Background(), 1, window)
		if err != nil {
			t.Fatalf("window %s: unexpected error: %v", window, err)
		}
		if points == nil || len(points) != 0 {
			t.Fatalf("window %s: expected an empty series, got %v", window, points)
		}
	}
}

func TestGetUsageFixedWindowSpan(t *testing.T) {
	now := time.Now()
	repo := &fakeUsageRepo{
		samples: []models.UsageSample{
			{ProjectID: 1, Timestamp: now.Add(-time.Hour), CpuPercent: 40, CpuCount: 2},
			{ProjectID: 1, Timestamp: now.Add(-8 * 24 * time.Hour), CpuPercent: 90, CpuCount: 2},
			{ProjectID: 2, Timestamp: now.Add(-time.Hour), CpuPercent: 70, CpuCount: 2},
		},
	}
	svc := newTestService(t, repo)

	points, err := svc.GetUsage(context.Background(), 1, WindowWeek)
	if err != nil {
		t.Fatalf("get usage failed: %v", err)
	}

	span := repo.lastEnd.Sub(repo.lastStart)
	if span != WindowWeek.Duration() {
		t.Fatalf("queried span %v, want %v", span, WindowWeek.Duration())
	}
	// the 8-day-old sample and the other project's sample are out of scope
	if len(points) != 1 {
		t.Fatalf("expected one point, got %d", len(points))
	}
	if points[0].CpuPercent != 40 {
		t.Fatalf("unexpected point: %+v", points[0])
	}
}

func TestGetUsageTotalWindowStartsAtEarliestSample(t *testing.T) {
	first := time.Now().Add(-90 * 24 * time.Hour)
	repo := &fakeUsageRepo{
		samples: []models.UsageSample{
			{ProjectID: 1, Timestamp: first, CpuPercent: 10, CpuCount: 1},
			{ProjectID: 1, Timestamp: time.Now().Add(-time.Hour), CpuPercent: 30, CpuCount: 1},
		},
	}
	svc := newTestService(t, repo)

	points, err := svc.GetUsage(context.Background(), 1, WindowTotal)
	if err != nil {
		t.Fatalf("get usage failed: %v", err)
	}
	if !repo.lastStart.Equal(first) {
		t.Fatalf("total window should start at the earliest sample %v, got %v", first, repo.lastStart)
	}
	if len(points) != 2 {
		t.Fatalf("expected both samples represented, got %d points", len(points))
	}
}

func TestReportUUIDRecoverableWhileInFlight(t *testing.T) {
	runner := newFakeTaskRunner()
	c, err := cache.NewCache()
	if err != nil {
		t.Fatalf("cache init failed: %v", err)
	}
	svc := NewUsageService(c, runner, &fakeUsageRepo{}, zap.NewNop())
	ctx := context.Background()

	// nothing tracked yet
	_, err = svc.GetReportUUID(7, WindowWeek)
	var notFound commonerrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError before any request, got %v", err)
	}

	uuid, err := svc.RequestReport(ctx, 7, WindowWeek)
	if err != nil {
		t.Fatalf("request report failed: %v", err)
	}

	recovered, err := svc.GetReportUUID(7, WindowWeek)
	if err != nil {
		t.Fatalf("uuid recovery failed: %v", err)
	}
	if recovered != uuid {
		t.Fatalf("recovered uuid %q, want the enqueued %q", recovered, uuid)
	}

	// a repeated request attaches to the tracked task instead of enqueueing
	again, err := svc.RequestReport(ctx, 7, WindowWeek)
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if again != uuid || runner.sent != 1 {
		t.Fatalf("expected one enqueued task with uuid %q, got %q after %d sends", uuid, again, runner.sent)
	}

	// a different window is a different report
	if _, err := svc.GetReportUUID(7, WindowDay); err == nil {
		t.Fatal("a different window must not share the tracked task")
	}
}

func TestReportEncodingRoundTrip(t *testing.T) {
	report := &Report{
		ProjectID:   7,
		Window:      WindowWeek,
		GeneratedAt: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		Points: []UsagePoint{
			{Timestamp: time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), CpuPercent: 55, CpuCount: 4},
		},
	}

	encoded, err := EncodeReport(report)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeReport(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.ProjectID != report.ProjectID || decoded.Window != report.Window {
		t.Fatalf("decoded header mismatch: %+v", decoded)
	}
	if len(decoded.Points) != 1 || decoded.Points[0].CpuPercent != 55 {
		t.Fatalf("decoded points mismatch: %+v", decoded.Points)
	}
}
