package deployment

import (
	"context"
	"time"

	"fleet-api-server/internal/models"
)

// CommitMeta is the opaque commit metadata supplied by the source-control
// integration; this core stores it verbatim.
type CommitMeta struct {
	Hash    string `json:"hash"`
	Author  string `json:"author"`
	Branch  string `json:"branch"`
	Message string `json:"message"`
}

// StatusUpdate is one monotonic transition, compare-and-set on From.
type StatusUpdate struct {
	ID           uint
	From         models.DeploymentStatus
	To           models.DeploymentStatus
	BuildSeconds *float64
	FailReason   string
	FinishedAt   *time.Time
}

// validNext is the whole state machine: pending -> building -> {completed,
// failed}. Terminal states accept nothing; a retry is a new row.
var validNext = map[models.DeploymentStatus]map[models.DeploymentStatus]bool{
	models.DeploymentStatusPending: {
		models.DeploymentStatusBuilding: true,
	},
	models.DeploymentStatusBuilding: {
		models.DeploymentStatusCompleted: true,
		models.DeploymentStatusFailed:    true,
	},
}

func CanTransition(from, to models.DeploymentStatus) bool {
	return validNext[from][to]
}

type DeploymentRepository interface {
	Create(ctx context.Context, d *models.Deployment) error
	Get(ctx context.Context, id uint) (*models.Deployment, error)
	GetProject(ctx context.Context, id uint) (*models.Project, error)
	// UpdateStatus applies the transition only if the row still has
	// update.From; otherwise Conflict (row moved) or NotFound (no row).
	UpdateStatus(ctx context.Context, update StatusUpdate) error
	Current(ctx context.Context, projectID uint) (*models.Deployment, error)
	ListByProject(ctx context.Context, projectID uint, limit int) ([]*models.Deployment, error)
}

type DeploymentService interface {
	Create(ctx context.Context, projectID uint, commit CommitMeta) (*models.Deployment, error)
	MarkBuilding(ctx context.Context, id uint) (*models.Deployment, error)
	MarkCompleted(ctx context.Context, id uint, buildSeconds float64) (*models.Deployment, error)
	MarkFailed(ctx context.Context, id uint, reason string) (*models.Deployment, error)
	Current(ctx context.Context, projectID uint) (*models.Deployment, error)
	ListByProject(ctx context.Context, projectID uint, limit int) ([]*models.Deployment, error)
}
