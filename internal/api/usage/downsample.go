package usage

import (
	"time"

	"fleet-api-server/internal/models"
)

// maxPoints bounds every downsampled series; bucket width is the queried
// span divided by this.
const maxPoints = 50

type bucketAgg struct {
	count         int
	cpuPercent    float64
	cpuCount      float64
	memoryUsedMB  float64
	memoryTotalMB float64
	diskUsedMB    float64
	diskTotalMB   float64
	networkRxKBps float64
	networkTxKBps float64
}

func (b *bucketAgg) add(s models.UsageSample) {
	b.count++
	// utilization and rates accumulate for the mean
	b.cpuPercent += s.CpuPercent
	b.memoryUsedMB += s.MemoryUsedMB
	b.diskUsedMB += s.DiskUsedMB
	b.networkRxKBps += s.NetworkRxKBps
	b.networkTxKBps += s.NetworkTxKBps
	// capacity keeps the ceiling; a max is never averaged down
	if s.CpuCount > b.cpuCount {
		b.cpuCount = s.CpuCount
	}
	if s.MemoryTotalMB > b.memoryTotalMB {
		b.memoryTotalMB = s.MemoryTotalMB
	}
	if s.DiskTotalMB > b.diskTotalMB {
		b.diskTotalMB = s.DiskTotalMB
	}
}

func (b *bucketAgg) point(ts time.Time) UsagePoint {
	n := float64(b.count)
	return UsagePoint{
		Timestamp:     ts,
		CpuPercent:    b.cpuPercent / n,
		CpuCount:      b.cpuCount,
		MemoryUsedMB:  b.memoryUsedMB / n,
		MemoryTotalMB: b.memoryTotalMB,
		DiskUsedMB:    b.diskUsedMB / n,
		DiskTotalMB:   b.diskTotalMB,
		NetworkRxKBps: b.networkRxKBps / n,
		NetworkTxKBps: b.networkTxKBps / n,
	}
}

// Downsample compresses an ordered sample series over [start, end] into at
// most maxPoints display points. Empty buckets emit nothing; there is no
// zero-fill. Output timestamps ascend strictly since each comes from a
// distinct bucket midpoint.
func Downsample(samples []models.UsageSample, start, end time.Time) []UsagePoint {
	if len(samples) == 0 || !end.After(start) {
		return []UsagePoint{}
	}

	width := end.Sub(start) / maxPoints
	if width <= 0 {
		width = time.Nanosecond
	}

	var buckets [maxPoints]*bucketAgg
	for _, s := range samples {
		if s.Timestamp.Before(start) || s.Timestamp.After(end) {
			continue
		}
		idx := int(s.Timestamp.Sub(start) / width)
		if idx >= maxPoints {
			idx = maxPoints - 1
		}
		if buckets[idx] == nil {
			buckets[idx] = &bucketAgg{}
		}
		buckets[idx].add(s)
	}

	points := make([]UsagePoint, 0, maxPoints)
	for idx, bucket := range buckets {
		if bucket == nil {
			continue
		}
		midpoint := start.Add(time.Duration(idx)*width + width/2)
		points = append(points, bucket.point(midpoint))
	}
	return points
}
