package usage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"fleet-api-server/internal/models"
)

type usageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{
		db: db,
	}
}

// SamplesBetween reads an already-committed snapshot; the table is
// append-only, so no locking is needed and writers are never blocked.
func (r *usageRepository) SamplesBetween(ctx context.Context, projectID uint, start, end time.Time) ([]models.UsageSample, error) {
	var samples []models.UsageSample
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND timestamp >= ? AND timestamp <= ?", projectID, start, end).
		Order("timestamp ASC").
		Find(&samples).Error
	if err != nil {
		return nil, err
	}
	return samples, nil
}

func (r *usageRepository) EarliestSampleTime(ctx context.Context, projectID uint) (*time.Time, error) {
	var sample models.UsageSample
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("timestamp ASC").
		First(&sample).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sample.Timestamp, nil
}
