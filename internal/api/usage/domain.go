package usage

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pquerna/ffjson/ffjson"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/models"
)

// Window is the display range a sample series is downsampled over.
type Window string

const (
	WindowDay   Window = "day"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
	WindowYear  Window = "year"
	// WindowTotal spans from the project's earliest sample to now.
	WindowTotal Window = "total"
)

func ParseWindow(raw string) (Window, error) {
	switch Window(raw) {
	case WindowDay, WindowWeek, WindowMonth, WindowYear, WindowTotal:
		return Window(raw), nil
	case "":
		return WindowDay, nil
	}
	return "", commonerrors.NotFoundErr("usage window", raw)
}

// Duration is the fixed span of the window; total has none and reports zero.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowDay:
		return 24 * time.Hour
	case WindowWeek:
		return 7 * 24 * time.Hour
	case WindowMonth:
		return 30 * 24 * time.Hour
	case WindowYear:
		return 365 * 24 * time.Hour
	}
	return 0
}

// UsagePoint is one downsampled display point, timestamped at its bucket
// midpoint. Utilization and rate metrics are bucket means; capacity metrics
// are bucket maxima.
type UsagePoint struct {
	Timestamp     time.Time `json:"timestamp"`
	CpuPercent    float64   `json:"cpu_percent"`
	CpuCount      float64   `json:"cpu_count"`
	MemoryUsedMB  float64   `json:"memory_used_mb"`
	MemoryTotalMB float64   `json:"memory_total_mb"`
	DiskUsedMB    float64   `json:"disk_used_mb"`
	DiskTotalMB   float64   `json:"disk_total_mb"`
	NetworkRxKBps float64   `json:"network_rx_kbps"`
	NetworkTxKBps float64   `json:"network_tx_kbps"`
}

// Report is the payload of an asynchronously generated usage report.
type Report struct {
	ProjectID   uint         `json:"project_id"`
	Window      Window       `json:"window"`
	GeneratedAt time.Time    `json:"generated_at"`
	Points      []UsagePoint `json:"points"`
}

func EncodeReport(report *Report) (string, error) {
	buf, err := ffjson.Marshal(report)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func DecodeReport(data string) (*Report, error) {
	b64Decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	var report Report
	if err := ffjson.Unmarshal(b64Decoded, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

type UsageRepository interface {
	// SamplesBetween returns the project's samples in [start, end],
	// ordered by ascending timestamp.
	SamplesBetween(ctx context.Context, projectID uint, start, end time.Time) ([]models.UsageSample, error)
	// EarliestSampleTime is nil when the project has no samples yet.
	EarliestSampleTime(ctx context.Context, projectID uint) (*time.Time, error)
}

type UsageService interface {
	GetUsage(ctx context.Context, projectID uint, window Window) ([]UsagePoint, error)
	RequestReport(ctx context.Context, projectID uint, window Window) (string, error)
	GetReportUUID(projectID uint, window Window) (string, error)
	GetReportStatus(uuid string) (string, error)
	GetReportResult(uuid string) (*Report, error)
}

func reportName(projectID uint, window Window) string {
	return fmt.Sprintf("usage_report:%d:%s", projectID, window)
}

// taskKey is the dedup key a report task is tracked under while in flight.
func taskKey(projectID uint, window Window) string {
	return reportName(projectID, window) + ":task"
}
