package deployment

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/models"
)

type deploymentRepository struct {
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) DeploymentRepository {
	return &deploymentRepository{
		db: db,
	}
}

func (r *deploymentRepository) Create(ctx context.Context, d *models.Deployment) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *deploymentRepository) Get(ctx context.Context, id uint) (*models.Deployment, error) {
	var d models.Deployment
	err := r.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, commonerrors.NotFoundErr("deployment", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deploymentRepository) GetProject(ctx context.Context, id uint) (*models.Project, error) {
	var p models.Project
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, commonerrors.NotFoundErr("project", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus is the optimistic write behind every transition: the UPDATE
// carries the expected current status, so an interleaved writer makes it a
// zero-row no-op instead of overwriting. The row is never touched on a miss.
func (r *deploymentRepository) UpdateStatus(ctx context.Context, update StatusUpdate) error {
	fields := map[string]interface{}{
		"status": update.To,
	}
	if update.BuildSeconds != nil {
		fields["build_seconds"] = *update.BuildSeconds
	}
	if update.FailReason != "" {
		fields["fail_reason"] = update.FailReason
	}
	if update.FinishedAt != nil {
		fields["finished_at"] = *update.FinishedAt
	}

	res := r.db.WithContext(ctx).Model(&models.Deployment{}).
		Where("id = ? AND status = ?", update.ID, update.From).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Deployment{}).
			Where("id = ?", update.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return commonerrors.NotFoundErr("deployment", strconv.FormatUint(uint64(update.ID), 10))
		}
		return commonerrors.ConflictErr("deployment", strconv.FormatUint(uint64(update.ID), 10))
	}
	return nil
}

// Current returns what is live for the project: the most recently created
// completed deployment. Pending, building and failed rows never displace it.
func (r *deploymentRepository) Current(ctx context.Context, projectID uint) (*models.Deployment, error) {
	var d models.Deployment
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, models.DeploymentStatusCompleted).
		Order("created_at DESC, id DESC").
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, commonerrors.NotFoundErr("current deployment for project", strconv.FormatUint(uint64(projectID), 10))
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deploymentRepository) ListByProject(ctx context.Context, projectID uint, limit int) ([]*models.Deployment, error) {
	var ds []*models.Deployment
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&ds).Error
	if err != nil {
		return nil, err
	}
	return ds, nil
}
