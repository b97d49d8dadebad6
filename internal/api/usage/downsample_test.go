package usage

import (
	"errors"
	"testing"
	"time"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/models"
)

func sampleAt(ts time.Time, cpuPercent, cpuCount float64) models.UsageSample {
	return models.UsageSample{
		ProjectID:     1,
		Timestamp:     ts,
		CpuPercent:    cpuPercent,
		CpuCount:      cpuCount,
		MemoryUsedMB:  512,
		MemoryTotalMB: 2048,
		DiskUsedMB:    100,
		DiskTotalMB:   10240,
		NetworkRxKBps: 5,
		NetworkTxKBps: 3,
	}
}

func TestDownsampleMeanAndMaxWithinBucket(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	// bucket width is 28.8 minutes; all three land in the first bucket
	samples := []models.UsageSample{
		sampleAt(start.Add(1*time.Minute), 10, 2),
		sampleAt(start.Add(5*time.Minute), 20, 2),
		sampleAt(start.Add(10*time.Minute), 30, 4),
	}

	points := Downsample(samples, start, end)
	if len(points) != 1 {
		t.Fatalf("expected a single point, got %d", len(points))
	}
	p := points[0]
	if p.CpuPercent != 20 {
		t.Errorf("cpu_percent should be the bucket mean 20, got %v", p.CpuPercent)
	}
	if p.CpuCount != 4 {
		t.Errorf("cpu_count should be the bucket max 4, got %v", p.CpuCount)
	}
	if p.MemoryTotalMB != 2048 {
		t.Errorf("memory_total_mb should be the bucket max, got %v", p.MemoryTotalMB)
	}
	width := end.Sub(start) / maxPoints
	if !p.Timestamp.Equal(start.Add(width / 2)) {
		t.Errorf("point should sit at the bucket midpoint, got %v", p.Timestamp)
	}
}

func TestDownsampleBoundsAndOrder(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	// one sample a minute for a day, far more than 50
	var samples []models.UsageSample
	for ts := start; ts.Before(end); ts = ts.Add(time.Minute) {
		samples = append(samples, sampleAt(ts, 50, 2))
	}

	points := Downsample(samples, start, end)
	if len(points) == 0 || len(points) > maxPoints {
		t.Fatalf("expected between 1 and %d points, got %d", maxPoints, len(points))
	}
	for i := 1; i < len(points); i++ {
		if !points[i].Timestamp.After(points[i-1].Timestamp) {
			t.Fatalf("timestamps must strictly ascend: %v then %v",
				points[i-1].Timestamp, points[i].Timestamp)
		}
	}
}

func TestDownsampleSparseSeriesSkipsEmptyBuckets(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	samples := []models.UsageSample{
		sampleAt(start.Add(1*time.Hour), 10, 2),
		sampleAt(start.Add(20*time.Hour), 90, 2),
	}

	points := Downsample(samples, start, end)
	if len(points) != 2 {
		t.Fatalf("two distant samples should produce two points, got %d", len(points))
	}
	if points[0].CpuPercent != 10 || points[1].CpuPercent != 90 {
		t.Fatalf("unexpected point values: %v, %v", points[0].CpuPercent, points[1].CpuPercent)
	}
}

func TestDownsampleSingleSample(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	points := Downsample([]models.UsageSample{sampleAt(start.Add(time.Minute), 42, 8)}, start, end)
	if len(points) != 1 {
		t.Fatalf("expected one point, got %d", len(points))
	}
	if points[0].CpuPercent != 42 || points[0].CpuCount != 8 {
		t.Fatalf("single sample should pass through unchanged, got %+v", points[0])
	}
}

func TestDownsampleEmptyAndDegenerate(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	if points := Downsample(nil, start, start.Add(time.Hour)); len(points) != 0 {
		t.Fatalf("no samples should yield an empty series, got %d points", len(points))
	}
	if points := Downsample([]models.UsageSample{sampleAt(start, 1, 1)}, start, start); len(points) != 0 {
		t.Fatalf("a zero-length span should yield an empty series, got %d points", len(points))
	}
}

func TestDownsampleIgnoresSamplesOutsideSpan(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	samples := []models.UsageSample{
		sampleAt(start.Add(-time.Minute), 99, 64),
		sampleAt(start.Add(30*time.Minute), 10, 2),
		sampleAt(end.Add(time.Minute), 99, 64),
	}

	points := Downsample(samples, start, end)
	if len(points) != 1 {
		t.Fatalf("expected one point, got %d", len(points))
	}
	if points[0].CpuPercent != 10 {
		t.Fatalf("out-of-span samples leaked into the series: %+v", points[0])
	}
}

func TestParseWindow(t *testing.T) {
	cases := []struct {
		raw  string
		want Window
		ok   bool
	}{
		{"day", WindowDay, true},
		{"week", WindowWeek, true},
		{"month", WindowMonth, true},
		{"year", WindowYear, true},
		{"total", WindowTotal, true},
		{"", WindowDay, true},
		{"fortnight", "", false},
	}
	for _, tc := range cases {
		got, err := ParseWindow(tc.raw)
		if tc.ok {
			if err != nil {
				t.Errorf("ParseWindow(%q) unexpected error: %v", tc.raw, err)
			} else if got != tc.want {
				t.Errorf("ParseWindow(%q) = %q, want %q", tc.raw, got, tc.want)
			}
			continue
		}
		var notFound commonerrors.NotFoundError
		if !errors.As(err, &notFound) {
			t.Errorf("ParseWindow(%q) should fail with NotFoundError, got %v", tc.raw, err)
		}
	}
}

func TestWindowDuration(t *testing.T) {
	if d := WindowWeek.Duration(); d != 7*24*time.Hour {
		t.Errorf("week duration = %v", d)
	}
	if d := WindowMonth.Duration(); d != 30*24*time.Hour {
		t.Errorf("month duration = %v", d)
	}
	if d := WindowTotal.Duration(); d != 0 {
		t.Errorf("total window has no fixed duration, got %v", d)
	}
}
