package deployment

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/api/common/query"
)

type DeploymentHandler struct {
	ds     DeploymentService
	logger *zap.Logger
}

func DeploymentRouter(route fiber.Router, ds DeploymentService, logger *zap.Logger) {
	handler := &DeploymentHandler{
		ds:     ds,
		logger: logger,
	}

	pg := route.Group("/projects/:project/deployments")
	pg.Post("/", handler.create)
	pg.Get("/", handler.listByProject)
	pg.Get("/current", handler.current)

	dg := route.Group("/deployments/:id")
	dg.Post("/building", handler.markBuilding)
	dg.Post("/completed", handler.markCompleted)
	dg.Post("/failed", handler.markFailed)
}

func (h *DeploymentHandler) fail(c *fiber.Ctx, err error) error {
	return c.Status(commonerrors.HTTPStatus(err)).JSON(&fiber.Map{
		"status":  "fail",
		"message": err.Error(),
	})
}

func (h *DeploymentHandler) badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
		"status":  "fail",
		"message": err.Error(),
	})
}

// @Summary Create a deploy attempt
// @Description Opens a pending deployment for the project bound to its
// currently assigned server; the server may still be unassigned while a
// pool claim is outstanding.
// @Accept  json
// @Produce json
// @Param project path int true "project id"
// @Param commit body CommitMeta true "commit metadata"
// @Success 201 {object} models.Deployment
// @Failure 404 {object} object
// @Router /api/v1/projects/{project}/deployments [post]
func (h *DeploymentHandler) create(c *fiber.Ctx) error {
	projectID, err := query.ParamID(c, "project")
	if err != nil {
		return h.badRequest(c, err)
	}
	var commit CommitMeta
	if err := c.BodyParser(&commit); err != nil {
		h.logger.Debug("body parser error", zap.Error(err))
		return h.badRequest(c, err)
	}

	d, err := h.ds.Create(c.UserContext(), projectID, commit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

// @Summary Mark a deployment building
// @Produce json
// @Param id path int true "deployment id"
// @Success 200 {object} models.Deployment
// @Failure 404 {object} object
// @Failure 422 {object} object
// @Router /api/v1/deployments/{id}/building [post]
func (h *DeploymentHandler) markBuilding(c *fiber.Ctx) error {
	id, err := query.ParamID(c, "id")
	if err != nil {
		return h.badRequest(c, err)
	}

	d, err := h.ds.MarkBuilding(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(d)
}

type completedRequest struct {
	BuildSeconds float64 `json:"build_seconds"`
}

// @Summary Mark a deployment completed
// @Accept  json
// @Produce json
// @Param id path int true "deployment id"
// @Success 200 {object} models.Deployment
// @Failure 404 {object} object
// @Failure 422 {object} object
// @Router /api/v1/deployments/{id}/completed [post]
func (h *DeploymentHandler) markCompleted(c *fiber.Ctx) error {
	id, err := query.ParamID(c, "id")
	if err != nil {
		return h.badRequest(c, err)
	}
	var req completedRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, err)
	}

	d, err := h.ds.MarkCompleted(c.UserContext(), id, req.BuildSeconds)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(d)
}

type failedRequest struct {
	Reason string `json:"reason"`
}

// @Summary Mark a deployment failed
// @Accept  json
// @Produce json
// @Param id path int true "deployment id"
// @Success 200 {object} models.Deployment
// @Failure 404 {object} object
// @Failure 422 {object} object
// @Router /api/v1/deployments/{id}/failed [post]
func (h *DeploymentHandler) markFailed(c *fiber.Ctx) error {
	id, err := query.ParamID(c, "id")
	if err != nil {
		return h.badRequest(c, err)
	}
	var req failedRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, err)
	}

	d, err := h.ds.MarkFailed(c.UserContext(), id, req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(d)
}

// @Summary Current (live) deployment of a project
// @Description The most recently created completed deployment. A failed
// attempt never displaces the previously completed one.
// @Produce json
// @Param project path int true "project id"
// @Success 200 {object} models.Deployment
// @Failure 404 {object} object
// @Router /api/v1/projects/{project}/deployments/current [get]
func (h *DeploymentHandler) current(c *fiber.Ctx) error {
	projectID, err := query.ParamID(c, "project")
	if err != nil {
		return h.badRequest(c, err)
	}

	d, err := h.ds.Current(c.UserContext(), projectID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(d)
}

// @Summary Recent deploy attempts of a project
// @Produce json
// @Param project path int true "project id"
// @Param limit query int false "max rows, default 20"
// @Success 200 {array} models.Deployment
// @Router /api/v1/projects/{project}/deployments [get]
func (h *DeploymentHandler) listByProject(c *fiber.Ctx) error {
	q, err := query.ParseAndValidate(c)
	if err != nil {
		return h.badRequest(c, err)
	}

	ds, err := h.ds.ListByProject(c.UserContext(), q.ProjectID, q.Limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(ds)
}
