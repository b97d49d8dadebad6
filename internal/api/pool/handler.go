package pool

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/api/common/query"
	"fleet-api-server/internal/models"
)

type PoolHandler struct {
	ps     PoolService
	logger *zap.Logger
}

func PoolRouter(route fiber.Router, ps PoolService, logger *zap.Logger) {
	handler := &PoolHandler{
		ps:     ps,
		logger: logger,
	}

	rg := route.Group("/pools")
	rg.Get("/", handler.listPools)
	rg.Post("/", handler.createPool)
	rg.Post("/claim", handler.claim)
	rg.Post("/:id/items", handler.addItem)
	rg.Post("/items/:id/release", handler.release)
}

// @Summary Claim one pool slot for a project
// @Description Delegates the oldest available item of a matching pool to the
// project and assigns the project's server and location. 503 means no
// capacity in this location/tier; try another.
// @Accept  json
// @Produce json
// @Param request body ClaimRequest true "claim criteria"
// @Success 201 {object} Assignment
// @Failure 400 {object} object
// @Failure 503 {object} object
// @Router /api/v1/pools/claim [post]
func (h *PoolHandler) claim(c *fiber.Ctx) error {
	var req ClaimRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("body parser error", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	if req.ProjectID == 0 || req.LocationID == 0 || req.TierID == 0 || req.ProjectType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": "project_id, location_id, tier_id and project_type are required",
		})
	}

	assignment, err := h.ps.Claim(c.UserContext(), req)
	if err != nil {
		return c.Status(commonerrors.HTTPStatus(err)).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(assignment)
}

// @Summary Release a delegated pool item
// @Description Clears the delegation so the item becomes claimable again.
// Releasing an already-released item is a no-op.
// @Produce json
// @Param id path int true "pool item id"
// @Success 204
// @Failure 404 {object} object
// @Router /api/v1/pools/items/{id}/release [post]
func (h *PoolHandler) release(c *fiber.Ctx) error {
	itemID, err := query.ParamID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}

	if err := h.ps.Release(c.UserContext(), itemID); err != nil {
		return c.Status(commonerrors.HTTPStatus(err)).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// @Summary List pools with availability
// @Produce json
// @Success 200 {array} PoolCapacity
// @Router /api/v1/pools [get]
func (h *PoolHandler) listPools(c *fiber.Ctx) error {
	pools, err := h.ps.ListPools(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(pools)
}

// @Summary Create a pool (administrative)
// @Accept  json
// @Produce json
// @Success 201 {object} models.VMPool
// @Failure 400 {object} object
// @Router /api/v1/pools [post]
func (h *PoolHandler) createPool(c *fiber.Ctx) error {
	var pool models.VMPool
	if err := c.BodyParser(&pool); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	if pool.LocationID == 0 || pool.TierID == 0 || pool.ProjectType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": "location_id, tier_id and project_type are required",
		})
	}

	if err := h.ps.CreatePool(c.UserContext(), &pool); err != nil {
		return c.Status(commonerrors.HTTPStatus(err)).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(pool)
}

type addItemRequest struct {
	ServerID uint `json:"server_id"`
}

// @Summary Add a provisioned slot to a pool (administrative)
// @Accept  json
// @Produce json
// @Param id path int true "pool id"
// @Success 201 {object} models.VMPoolItem
// @Failure 404 {object} object
// @Router /api/v1/pools/{id}/items [post]
func (h *PoolHandler) addItem(c *fiber.Ctx) error {
	poolID, err := query.ParamID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	var req addItemRequest
	if err := c.BodyParser(&req); err != nil || req.ServerID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": "server_id is required",
		})
	}

	item, err := h.ps.AddItem(c.UserContext(), poolID, req.ServerID)
	if err != nil {
		return c.Status(commonerrors.HTTPStatus(err)).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}
