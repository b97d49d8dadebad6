package models

import (
	"time"
)

// UsageSample is one metering datapoint of a project. The table is
// append-only and ordered by timestamp; rows are never updated, soft-deleted
// or removed, so there is no gorm.Model here.
type UsageSample struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"column:project_id;not null;index:idx_usage_project_time" json:"project_id"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index:idx_usage_project_time" json:"timestamp"`

	CpuPercent    float64 `gorm:"column:cpu_percent" json:"cpu_percent"`
	CpuCount      float64 `gorm:"column:cpu_count" json:"cpu_count"`
	MemoryUsedMB  float64 `gorm:"column:memory_used_mb" json:"memory_used_mb"`
	MemoryTotalMB float64 `gorm:"column:memory_total_mb" json:"memory_total_mb"`
	DiskUsedMB    float64 `gorm:"column:disk_used_mb" json:"disk_used_mb"`
	DiskTotalMB   float64 `gorm:"column:disk_total_mb" json:"disk_total_mb"`
	NetworkRxKBps float64 `gorm:"column:network_rx_kbps" json:"network_rx_kbps"`
	NetworkTxKBps float64 `gorm:"column:network_tx_kbps" json:"network_tx_kbps"`
}
