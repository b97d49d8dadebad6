package models

import (
	"time"

	"gorm.io/gorm"
)

type DeploymentStatus string

const (
	DeploymentStatusPending   DeploymentStatus = "pending"
	DeploymentStatusBuilding  DeploymentStatus = "building"
	DeploymentStatusCompleted DeploymentStatus = "completed"
	DeploymentStatusFailed    DeploymentStatus = "failed"
)

// Terminal reports whether the status accepts no further transition.
// A retry is a new Deployment row, never a re-entry into pending.
func (s DeploymentStatus) Terminal() bool {
	return s == DeploymentStatusCompleted || s == DeploymentStatusFailed
}

// Deployment is one deploy attempt of a project's code onto its assigned
// server. ServerID may be null while a pool claim is still outstanding.
// Status only moves forward; rows never revert.
type Deployment struct {
	gorm.Model
	ProjectID     uint             `gorm:"column:project_id;not null;index" json:"project_id"`
	Project       Project          `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	ServerID      *uint            `gorm:"column:server_id" json:"server_id"`
	CommitHash    string           `gorm:"column:commit_hash" json:"commit_hash"`
	CommitAuthor  string           `gorm:"column:commit_author" json:"commit_author"`
	CommitBranch  string           `gorm:"column:commit_branch" json:"commit_branch"`
	CommitMessage string           `gorm:"column:commit_message" json:"commit_message"`
	Status        DeploymentStatus `gorm:"column:status;not null;default:'pending';index" json:"status"`
	BuildSeconds  *float64         `gorm:"column:build_seconds" json:"build_seconds"`
	FailReason    string           `gorm:"column:fail_reason" json:"fail_reason"`
	FinishedAt    *time.Time       `gorm:"column:finished_at" json:"finished_at"`
}
