package deployment

import (
	"context"
	"time"

	"go.uber.org/zap"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/models"
)

type deploymentService struct {
	repository DeploymentRepository
	logger     *zap.Logger
}

var _ DeploymentService = (*deploymentService)(nil)

func NewDeploymentService(r DeploymentRepository, logger *zap.Logger) DeploymentService {
	return &deploymentService{
		repository: r,
		logger:     logger,
	}
}

// Create opens a new deploy attempt in pending, bound to whatever server
// the project holds right now. A null server is fine: the pool claim may
// still be outstanding.
func (ds *deploymentService) Create(ctx context.Context, projectID uint, commit CommitMeta) (*models.Deployment, error) {
	project, err := ds.repository.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	d := &models.Deployment{
		ProjectID:     project.ID,
		ServerID:      project.ServerID,
		CommitHash:    commit.Hash,
		CommitAuthor:  commit.Author,
		CommitBranch:  commit.Branch,
		CommitMessage: commit.Message,
		Status:        models.DeploymentStatusPending,
	}
	if err := ds.repository.Create(ctx, d); err != nil {
		ds.logger.Error("failed to create deployment", zap.Uint("project_id", projectID), zap.Error(err))
		return nil, err
	}

	ds.logger.Info("deployment created",
		zap.Uint("deployment_id", d.ID),
		zap.Uint("project_id", project.ID),
		zap.String("commit", commit.Hash))
	return d, nil
}

func (ds *deploymentService) MarkBuilding(ctx context.Context, id uint) (*models.Deployment, error) {
	return ds.transition(ctx, id, models.DeploymentStatusBuilding, StatusUpdate{})
}

func (ds *deploymentService) MarkCompleted(ctx context.Context, id uint, buildSeconds float64) (*models.Deployment, error) {
	now := time.Now()
	return ds.transition(ctx, id, models.DeploymentStatusCompleted, StatusUpdate{
		BuildSeconds: &buildSeconds,
		FinishedAt:   &now,
	})
}

func (ds *deploymentService) MarkFailed(ctx context.Context, id uint, reason string) (*models.Deployment, error) {
	now := time.Now()
	return ds.transition(ctx, id, models.DeploymentStatusFailed, StatusUpdate{
		FailReason: reason,
		FinishedAt: &now,
	})
}

// transition validates against the row's current status, then writes with
// that status as the compare-and-set guard. Status only moves forward, so a
// guard miss means another writer advanced the row first; the re-read tells
// the two cases apart. A row already at the requested status is a lost race
// on the very same transition (Conflict); anything else makes the request
// illegal against what the row has become (InvalidTransition). Neither is
// retried here.
func (ds *deploymentService) transition(ctx context.Context, id uint, to models.DeploymentStatus, fields StatusUpdate) (*models.Deployment, error) {
	d, err := ds.repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(d.Status, to) {
		return nil, commonerrors.InvalidTransitionErr(string(d.Status), string(to))
	}

	fields.ID = id
	fields.From = d.Status
	fields.To = to
	if err := ds.repository.UpdateStatus(ctx, fields); err != nil {
		if _, ok := err.(commonerrors.ConflictError); ok {
			current, gerr := ds.repository.Get(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			if current.Status != to {
				return nil, commonerrors.InvalidTransitionErr(string(current.Status), string(to))
			}
		}
		return nil, err
	}

	ds.logger.Info("deployment transitioned",
		zap.Uint("deployment_id", id),
		zap.String("from", string(d.Status)),
		zap.String("to", string(to)))
	return ds.repository.Get(ctx, id)
}

func (ds *deploymentService) Current(ctx context.Context, projectID uint) (*models.Deployment, error) {
	return ds.repository.Current(ctx, projectID)
}

func (ds *deploymentService) ListByProject(ctx context.Context, projectID uint, limit int) ([]*models.Deployment, error) {
	if limit <= 0 {
		limit = 20
	}
	return ds.repository.ListByProject(ctx, projectID, limit)
}
