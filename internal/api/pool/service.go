package pool

import (
	"context"

	"go.uber.org/zap"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/models"
)

type poolService struct {
	repository PoolRepository
	logger     *zap.Logger
}

var _ PoolService = (*poolService)(nil)

func NewPoolService(r PoolRepository, logger *zap.Logger) PoolService {
	return &poolService{
		repository: r,
		logger:     logger,
	}
}

// Claim delegates one pool slot to the requesting project. A claim that
// lost its race is retried exactly once; every other retry decision belongs
// to the caller. On exhausted capacity the project is parked in
// waiting_capacity and the error is returned as backpressure, not failure.
func (ps *poolService) Claim(ctx context.Context, req ClaimRequest) (*Assignment, error) {
	assignment, err := ps.repository.ClaimItem(ctx, req)
	if isConflict(err) {
		ps.logger.Debug("claim lost race, retrying once",
			zap.Uint("project_id", req.ProjectID),
			zap.Uint("location_id", req.LocationID),
			zap.Uint("tier_id", req.TierID))
		assignment, err = ps.repository.ClaimItem(ctx, req)
	}
	if err != nil {
		if isCapacityExhausted(err) {
			ps.logger.Info("pool capacity exhausted",
				zap.Uint("project_id", req.ProjectID),
				zap.Uint("location_id", req.LocationID),
				zap.Uint("tier_id", req.TierID),
				zap.String("project_type", req.ProjectType))
			if werr := ps.repository.SetProjectWaiting(ctx, req.ProjectID); werr != nil {
				ps.logger.Error("failed to park project while waiting for capacity",
					zap.Uint("project_id", req.ProjectID), zap.Error(werr))
			}
		}
		return nil, err
	}

	ps.logger.Info("pool item claimed",
		zap.Uint("project_id", req.ProjectID),
		zap.Uint("item_id", assignment.ItemID),
		zap.Uint("server_id", assignment.ServerID))
	return assignment, nil
}

func (ps *poolService) Release(ctx context.Context, itemID uint) error {
	if err := ps.repository.ReleaseItem(ctx, itemID); err != nil {
		ps.logger.Error("failed to release pool item", zap.Uint("item_id", itemID), zap.Error(err))
		return err
	}
	ps.logger.Info("pool item released", zap.Uint("item_id", itemID))
	return nil
}

func (ps *poolService) CreatePool(ctx context.Context, pool *models.VMPool) error {
	pool.ItemCount = 0
	if err := ps.repository.CreatePool(ctx, pool); err != nil {
		ps.logger.Error("failed to create pool", zap.Error(err))
		return err
	}
	ps.logger.Info("pool created",
		zap.Uint("pool_id", pool.ID),
		zap.Uint("location_id", pool.LocationID),
		zap.Uint("tier_id", pool.TierID),
		zap.String("project_type", pool.ProjectType))
	return nil
}

func (ps *poolService) AddItem(ctx context.Context, poolID, serverID uint) (*models.VMPoolItem, error) {
	item := &models.VMPoolItem{
		PoolID:   poolID,
		ServerID: serverID,
	}
	if err := ps.repository.AddItem(ctx, item); err != nil {
		return nil, err
	}
	ps.logger.Info("pool item added", zap.Uint("pool_id", poolID), zap.Uint("item_id", item.ID))
	return item, nil
}

func (ps *poolService) ListPools(ctx context.Context) ([]*PoolCapacity, error) {
	return ps.repository.ListPools(ctx)
}

func isConflict(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(commonerrors.ConflictError)
	return ok
}

func isCapacityExhausted(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(commonerrors.CapacityExhaustedError)
	return ok
}
