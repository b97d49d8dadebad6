package models

import (
	"gorm.io/gorm"
)

// Location is a geographic region servers are provisioned in.
type Location struct {
	gorm.Model
	Code    string `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Country string `gorm:"column:country;not null" json:"country"`
	Region  string `gorm:"column:region" json:"region"`
}

// ServerTier is a named capacity class with an associated price.
// Pricing decisions belong to the billing system; the price here is
// informational only.
type ServerTier struct {
	gorm.Model
	Name       string `gorm:"column:name;not null;uniqueIndex" json:"name"`
	CpuCores   int    `gorm:"column:cpu_cores;not null" json:"cpu_cores"`
	MemoryMB   int64  `gorm:"column:memory_mb;not null" json:"memory_mb"`
	DiskGB     int64  `gorm:"column:disk_gb;not null" json:"disk_gb"`
	PriceCents int64  `gorm:"column:price_cents" json:"price_cents"`
}

type ServerVisibility string

const (
	ServerVisibilityPublic  ServerVisibility = "public"
	ServerVisibilityPrivate ServerVisibility = "private"
)

// Server is a provisioned machine supplied by the server registry.
// Only the identifiers and the latest usage snapshot are read here.
type Server struct {
	gorm.Model
	Name            string           `gorm:"column:name;not null;uniqueIndex" json:"name"`
	InternalAddress string           `gorm:"column:internal_address" json:"internal_address"`
	LocationID      uint             `gorm:"column:location_id;not null;index" json:"location_id"`
	Location        Location         `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	TierID          uint             `gorm:"column:tier_id;not null;index" json:"tier_id"`
	Tier            ServerTier       `gorm:"foreignKey:TierID" json:"tier,omitempty"`
	Visibility      ServerVisibility `gorm:"column:visibility;default:'public'" json:"visibility"`
	// latest usage snapshot pushed by the registry
	CpuPercent   float64 `gorm:"column:cpu_percent" json:"cpu_percent"`
	MemoryUsedMB float64 `gorm:"column:memory_used_mb" json:"memory_used_mb"`
	DiskUsedMB   float64 `gorm:"column:disk_used_mb" json:"disk_used_mb"`
}
