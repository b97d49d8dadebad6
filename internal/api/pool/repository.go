package pool

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/models"
)

type poolRepository struct {
	db *gorm.DB
}

func NewPoolRepository(db *gorm.DB) PoolRepository {
	return &poolRepository{
		db: db,
	}
}

// ClaimItem runs the whole claim as one transaction: pick the oldest
// available item of a matching pool under a row lock (SKIP LOCKED keeps
// concurrent claimers off the same row), delegate it, and point the project
// at the item's server. The delegation UPDATE re-checks availability so the
// row-lock path and any lock-free replica behave the same: zero rows
// affected means the claim lost its race.
func (r *poolRepository) ClaimItem(ctx context.Context, req ClaimRequest) (*Assignment, error) {
	var assignment *Assignment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.VMPoolItem
		err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Table:    clause.Table{Name: "vm_pool_items"},
				Options:  "SKIP LOCKED",
			}).
			Joins("JOIN vm_pools ON vm_pools.id = vm_pool_items.pool_id AND vm_pools.deleted_at IS NULL").
			Where("vm_pools.location_id = ? AND vm_pools.tier_id = ? AND vm_pools.project_type = ?",
				req.LocationID, req.TierID, req.ProjectType).
			Where("vm_pool_items.delegated_project_id IS NULL").
			Order("vm_pool_items.created_at ASC").
			First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return commonerrors.CapacityExhaustedErr(req.LocationID, req.TierID, req.ProjectType)
		}
		if err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.VMPoolItem{}).
			Where("id = ? AND delegated_project_id IS NULL", item.ID).
			Updates(map[string]interface{}{
				"delegated_at":         now,
				"delegated_project_id": req.ProjectID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return commonerrors.ConflictErr("pool item", strconv.FormatUint(uint64(item.ID), 10))
		}

		if err := tx.Model(&models.Project{}).
			Where("id = ?", req.ProjectID).
			Updates(map[string]interface{}{
				"server_id":   item.ServerID,
				"location_id": req.LocationID,
				"status":      models.ProjectStatusProvisioning,
			}).Error; err != nil {
			return err
		}

		assignment = &Assignment{
			ItemID:     item.ID,
			PoolID:     item.PoolID,
			ServerID:   item.ServerID,
			LocationID: req.LocationID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// ReleaseItem clears the delegation and detaches the holding project from
// the item's server. Releasing an already-released item affects zero rows
// and succeeds.
func (r *poolRepository) ReleaseItem(ctx context.Context, itemID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.VMPoolItem
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, itemID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return commonerrors.NotFoundErr("pool item", strconv.FormatUint(uint64(itemID), 10))
		}
		if err != nil {
			return err
		}
		if item.DelegatedProjectID == nil {
			return nil
		}

		if err := tx.Model(&models.Project{}).
			Where("id = ? AND server_id = ?", *item.DelegatedProjectID, item.ServerID).
			Updates(map[string]interface{}{
				"server_id":   nil,
				"location_id": nil,
			}).Error; err != nil {
			return err
		}

		return tx.Model(&models.VMPoolItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"delegated_at":         nil,
				"delegated_project_id": nil,
			}).Error
	})
}

func (r *poolRepository) SetProjectWaiting(ctx context.Context, projectID uint) error {
	return r.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", projectID).
		Update("status", models.ProjectStatusWaitingCapacity).Error
}

func (r *poolRepository) CreatePool(ctx context.Context, pool *models.VMPool) error {
	return r.db.WithContext(ctx).Create(pool).Error
}

func (r *poolRepository) AddItem(ctx context.Context, item *models.VMPoolItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pool models.VMPool
		err := tx.First(&pool, item.PoolID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return commonerrors.NotFoundErr("pool", strconv.FormatUint(uint64(item.PoolID), 10))
		}
		if err != nil {
			return err
		}
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return tx.Model(&models.VMPool{}).
			Where("id = ?", pool.ID).
			Update("item_count", gorm.Expr("item_count + 1")).Error
	})
}

func (r *poolRepository) ListPools(ctx context.Context) ([]*PoolCapacity, error) {
	var pools []*PoolCapacity
	err := r.db.WithContext(ctx).Model(&models.VMPool{}).
		Select("vm_pools.*, count(vm_pool_items.id) AS available").
		Joins("LEFT JOIN vm_pool_items ON vm_pool_items.pool_id = vm_pools.id"+
			" AND vm_pool_items.delegated_project_id IS NULL AND vm_pool_items.deleted_at IS NULL").
		Group("vm_pools.id").
		Order("vm_pools.id").
		Find(&pools).Error
	if err != nil {
		return nil, err
	}
	return pools, nil
}
