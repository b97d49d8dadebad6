package usage

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"time"

	"github.com/RichardKnop/machinery/v1/tasks"
	"go.uber.org/zap"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/cache"
)

const (
	taskName = "usage_report"
	cacheTTL = time.Minute
)

// TaskRunner is the slice of the worker this service depends on: enqueueing
// with per-name dedup, recovering an in-flight task's UUID by name, and
// polling state by UUID.
type TaskRunner interface {
	RegisterTask(name string, task interface{}) error
	SendTaskWithContext(ctx context.Context, task *tasks.Signature, name string) (*tasks.TaskState, error)
	GetUUID(name string) (string, error)
	GetTaskStatus(uuid string) (string, error)
	GetTaskResult(uuid string) ([]reflect.Value, error)
}

type usageService struct {
	cache      *cache.Cache
	worker     TaskRunner
	repository UsageRepository
	logger     *zap.Logger
}

var _ UsageService = (*usageService)(nil)

func NewUsageService(
	cache *cache.Cache,
	worker TaskRunner,
	r UsageRepository,
	logger *zap.Logger) UsageService {
	s := &usageService{
		cache:      cache,
		worker:     worker,
		repository: r,
		logger:     logger,
	}

	worker.RegisterTask(taskName, s.reportTask)

	return s
}

// GetUsage downsamples the project's sample series over the window to at
// most 50 ascending points. A project with no samples gets an empty series,
// not an error. Responses are cached briefly; the series only grows at the
// tail, so staleness is bounded by the TTL.
func (s *usageService) GetUsage(ctx context.Context, projectID uint, window Window) ([]UsagePoint, error) {
	cacheKey := reportName(projectID, window)
	if item, exist := s.cache.Get(cacheKey); exist {
		return item.([]UsagePoint), nil
	}

	points, err := s.computeUsage(ctx, projectID, window)
	if err != nil {
		s.logger.Error("failed to compute usage",
			zap.Uint("project_id", projectID),
			zap.String("window", string(window)),
			zap.Error(err))
		return nil, err
	}

	s.cache.SetWithTTL(cacheKey, points, cacheTTL)
	return points, nil
}

func (s *usageService) computeUsage(ctx context.Context, projectID uint, window Window) ([]UsagePoint, error) {
	end := time.Now()
	var start time.Time

	if window == WindowTotal {
		earliest, err := s.repository.EarliestSampleTime(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if earliest == nil {
			return []UsagePoint{}, nil
		}
		start = *earliest
	} else {
		start = end.Add(-window.Duration())
	}

	samples, err := s.repository.SamplesBetween(ctx, projectID, start, end)
	if err != nil {
		return nil, err
	}
	return Downsample(samples, start, end), nil
}

// RequestReport enqueues asynchronous report generation and returns the
// task UUID to poll. Requests for a report already in flight attach to the
// running task.
func (s *usageService) RequestReport(ctx context.Context, projectID uint, window Window) (string, error) {
	task := &tasks.Signature{
		Name: taskName,
		Args: []tasks.Arg{
			{
				Type:  "string",
				Value: strconv.FormatUint(uint64(projectID), 10),
			},
			{
				Type:  "string",
				Value: string(window),
			},
		},
		RetryCount: 1,
	}

	taskState, err := s.worker.SendTaskWithContext(ctx, task, taskKey(projectID, window))
	if err != nil {
		return "", err
	}
	return taskState.TaskUUID, nil
}

// GetReportUUID recovers the UUID of a report task that is still tracked
// for the project and window, so a client that lost the enqueue response
// can resume polling instead of requesting a duplicate.
func (s *usageService) GetReportUUID(projectID uint, window Window) (string, error) {
	return s.worker.GetUUID(taskKey(projectID, window))
}

func (s *usageService) reportTask(projectIDStr, windowStr string) (string, error) {
	projectID, err := strconv.ParseUint(projectIDStr, 10, 64)
	if err != nil {
		return "", err
	}
	window, err := ParseWindow(windowStr)
	if err != nil {
		return "", err
	}

	points, err := s.computeUsage(context.Background(), uint(projectID), window)
	if err != nil {
		return "", err
	}

	report := &Report{
		ProjectID:   uint(projectID),
		Window:      window,
		GeneratedAt: time.Now(),
		Points:      points,
	}
	return EncodeReport(report)
}

func (s *usageService) GetReportStatus(uuid string) (string, error) {
	return s.worker.GetTaskStatus(uuid)
}

func (s *usageService) GetReportResult(uuid string) (*Report, error) {
	results, err := s.worker.GetTaskResult(uuid)
	if errors.Is(err, tasks.ErrTaskReturnsNoValue) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, commonerrors.NotFoundErr("report result", uuid)
	}

	encoded := results[0].Interface().(string)
	return DecodeReport(encoded)
}
