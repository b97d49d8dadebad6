package domains

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/api/common/query"
)

type DomainHandler struct {
	ds     DomainService
	logger *zap.Logger
}

func DomainRouter(route fiber.Router, ds DomainService, logger *zap.Logger) {
	handler := &DomainHandler{
		ds:     ds,
		logger: logger,
	}

	pg := route.Group("/projects/:project/domains")
	pg.Get("/", handler.listByProject)
	pg.Get("/unique", handler.isUnique)
	pg.Post("/external", handler.createExternal)
	pg.Post("/internal", handler.createInternal)
	pg.Post("/:id/primary", handler.setPrimary)

	dg := route.Group("/domains/:id")
	dg.Get("/parent", handler.resolveParent)
	dg.Post("/verification", handler.recordVerification)
}

func (h *DomainHandler) fail(c *fiber.Ctx, err error) error {
	return c.Status(commonerrors.HTTPStatus(err)).JSON(&fiber.Map{
		"status":  "fail",
		"message": err.Error(),
	})
}

func (h *DomainHandler) badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
		"status":  "fail",
		"message": msg,
	})
}

// @Summary Domains of a project
// @Produce json
// @Param project path int true "project id"
// @Success 200 {array} models.Domain
// @Router /api/v1/projects/{project}/domains [get]
func (h *DomainHandler) listByProject(c *fiber.Ctx) error {
	projectID, err := query.ParamID(c, "project")
	if err != nil {
		return h.badRequest(c, err.Error())
	}

	ds, err := h.ds.ListByProject(c.UserContext(), projectID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(ds)
}

// @Summary Check hostname uniqueness within a project
// @Produce json
// @Param project path int true "project id"
// @Param hostname query string true "hostname to check"
// @Success 200 {object} object
// @Router /api/v1/projects/{project}/domains/unique [get]
func (h *DomainHandler) isUnique(c *fiber.Ctx) error {
	projectID, err := query.ParamID(c, "project")
	if err != nil {
		return h.badRequest(c, err.Error())
	}
	hostname := c.Query("hostname", "")
	if hostname == "" {
		return h.badRequest(c, "hostname query parameter is required")
	}

	unique, err := h.ds.IsUniqueForProject(c.UserContext(), projectID, hostname)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(&fiber.Map{
		"hostname": hostname,
		"unique":   unique,
	})
}

// @Summary Attach a user-supplied hostname
// @Description The hostname must shadow an existing internal domain on the
// same port; duplicates within the project are rejected.
// @Accept  json
// @Produce json
// @Param project path int true "project id"
// @Param request body CreateExternalRequest true "hostname"
// @Success 201 {object} models.Domain
// @Failure 404 {object} object
// @Failure 409 {object} object
// @Router /api/v1/projects/{project}/domains/external [post]
func (h *DomainHandler) createExternal(c *fiber.Ctx) error {
	projectID, err := query.ParamID(c, "project")
	if err != nil {
		return h.badRequest(c, err.Error())
	}
	var req CreateExternalRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("body parser error", zap.Error(err))
		return h.badRequest(c, err.Error())
	}
	req.ProjectID = projectID
	if req.Hostname == "" || req.Port == 0 {
		return h.badRequest(c, "hostname and port are required")
	}

	d, err := h.ds.CreateExternal(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

// @Summary Register a system-generated hostname for a service instance
// @Accept  json
// @Produce json
// @Param project path int true "project id"
// @Param request body CreateInternalRequest true "service name and port"
// @Success 201 {object} models.Domain
// @Failure 409 {object} object
// @Router /api/v1/projects/{project}/domains/internal [post]
func (h *DomainHandler) createInternal(c *fiber.Ctx) error {
	projectID, err := query.ParamID(c, "project")
	if err != nil {
		return h.badRequest(c, err.Error())
	}
	var req CreateInternalRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, err.Error())
	}
	req.ProjectID = projectID
	if req.ServiceName == "" || req.Port == 0 {
		return h.badRequest(c, "service_name and port are required")
	}

	d, err := h.ds.CreateInternal(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

// @Summary Make a domain the project's primary
// @Produce json
// @Param project path int true "project id"
// @Param id path int true "domain id"
// @Success 204
// @Failure 404 {object} object
// @Router /api/v1/projects/{project}/domains/{id}/primary [post]
func (h *DomainHandler) setPrimary(c *fiber.Ctx) error {
	projectID, err := query.ParamID(c, "project")
	if err != nil {
		return h.badRequest(c, err.Error())
	}
	domainID, err := query.ParamID(c, "id")
	if err != nil {
		return h.badRequest(c, err.Error())
	}

	if err := h.ds.SetPrimary(c.UserContext(), projectID, domainID); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// @Summary Resolve the internal domain a hostname routes to
// @Produce json
// @Param id path int true "domain id"
// @Success 200 {object} models.Domain
// @Failure 404 {object} object
// @Router /api/v1/domains/{id}/parent [get]
func (h *DomainHandler) resolveParent(c *fiber.Ctx) error {
	domainID, err := query.ParamID(c, "id")
	if err != nil {
		return h.badRequest(c, err.Error())
	}

	parent, err := h.ds.ResolveParent(c.UserContext(), domainID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(parent)
}

type verificationRequest struct {
	Verified bool `json:"verified"`
}

// @Summary Record an ownership verification result
// @Description The DNS verification process runs externally and pushes its
// boolean result here; no lookup happens in this API.
// @Accept  json
// @Produce json
// @Param id path int true "domain id"
// @Success 204
// @Failure 404 {object} object
// @Router /api/v1/domains/{id}/verification [post]
func (h *DomainHandler) recordVerification(c *fiber.Ctx) error {
	domainID, err := query.ParamID(c, "id")
	if err != nil {
		return h.badRequest(c, err.Error())
	}
	var req verificationRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, err.Error())
	}

	if err := h.ds.RecordVerification(c.UserContext(), domainID, req.Verified); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
