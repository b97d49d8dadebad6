package pool

import (
	"context"

	"fleet-api-server/internal/models"
)

// ClaimRequest identifies the pool criteria and the project asking for a
// slot. The project is always explicit; there is no ambient caller.
type ClaimRequest struct {
	ProjectID   uint   `json:"project_id"`
	LocationID  uint   `json:"location_id"`
	TierID      uint   `json:"tier_id"`
	ProjectType string `json:"project_type"`
}

// Assignment is the result of a successful claim: which slot was delegated
// and which server the project now runs on.
type Assignment struct {
	ItemID     uint `json:"item_id"`
	PoolID     uint `json:"pool_id"`
	ServerID   uint `json:"server_id"`
	LocationID uint `json:"location_id"`
}

// PoolCapacity is a pool together with its current number of claimable items.
type PoolCapacity struct {
	models.VMPool
	Available int64 `json:"available"`
}

type PoolRepository interface {
	// ClaimItem atomically selects the oldest available item matching the
	// criteria and delegates it to the project, assigning the project's
	// server and location in the same transaction.
	ClaimItem(ctx context.Context, req ClaimRequest) (*Assignment, error)
	// ReleaseItem clears the delegation; no-op when already released.
	ReleaseItem(ctx context.Context, itemID uint) error
	SetProjectWaiting(ctx context.Context, projectID uint) error
	CreatePool(ctx context.Context, pool *models.VMPool) error
	AddItem(ctx context.Context, item *models.VMPoolItem) error
	ListPools(ctx context.Context) ([]*PoolCapacity, error)
}

type PoolService interface {
	Claim(ctx context.Context, req ClaimRequest) (*Assignment, error)
	Release(ctx context.Context, itemID uint) error
	CreatePool(ctx context.Context, pool *models.VMPool) error
	AddItem(ctx context.Context, poolID, serverID uint) (*models.VMPoolItem, error)
	ListPools(ctx context.Context) ([]*PoolCapacity, error)
}
