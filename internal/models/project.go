package models

import (
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusWaitingCapacity ProjectStatus = "waiting_capacity"
	ProjectStatusProvisioning    ProjectStatus = "provisioning"
	ProjectStatusRunning         ProjectStatus = "running"
	ProjectStatusStopped         ProjectStatus = "stopped"
	ProjectStatusTornDown        ProjectStatus = "torn_down"
)

// Project is a tenant workload that consumes one delegated pool slot.
// ServerID/LocationID stay null until a pool claim succeeds.
type Project struct {
	gorm.Model
	OwnerID    uint          `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Name       string        `gorm:"column:name;not null" json:"name"`
	Type       string        `gorm:"column:type;not null" json:"type"`
	TierID     uint          `gorm:"column:tier_id;not null" json:"tier_id"`
	Tier       ServerTier    `gorm:"foreignKey:TierID" json:"tier,omitempty"`
	Status     ProjectStatus `gorm:"column:status;default:'waiting_capacity'" json:"status"`
	ServerID   *uint         `gorm:"column:server_id" json:"server_id"`
	Server     *Server       `gorm:"foreignKey:ServerID" json:"server,omitempty"`
	LocationID *uint         `gorm:"column:location_id" json:"location_id"`
}
