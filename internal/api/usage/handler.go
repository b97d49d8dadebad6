package usage

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/api/common/query"
)

type UsageHandler struct {
	us     UsageService
	logger *zap.Logger
}

func UsageRouter(route fiber.Router, us UsageService, logger *zap.Logger) {
	handler := &UsageHandler{
		us:     us,
		logger: logger,
	}

	pg := route.Group("/projects/:project/usage")
	pg.Get("/", handler.getUsage)
	pg.Post("/report", handler.requestReport)
	pg.Get("/report", handler.getReportUUID)

	rg := route.Group("/usage/reports/:uuid")
	rg.Get("/status", handler.getReportStatus)
	rg.Get("/result", handler.getReportResult)
}

// @Summary Downsampled usage of a project
// @Description At most 50 points over the requested window; empty buckets
// are skipped and a project without samples yields an empty series.
// @Produce json
// @Param project path int true "project id"
// @Param window query string false "day (default), week, month, year or total"
// @Success 200 {array} UsagePoint
// @Failure 400 {object} object
// @Router /api/v1/projects/{project}/usage [get]
func (h *UsageHandler) getUsage(c *fiber.Ctx) error {
	q, err := query.ParseAndValidate(c)
	if err != nil {
		h.logger.Debug("query parser error", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	window, err := ParseWindow(q.Window)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}

	points, err := h.us.GetUsage(c.UserContext(), q.ProjectID, window)
	if err != nil {
		return c.Status(commonerrors.HTTPStatus(err)).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(points)
}

// @Summary Request asynchronous usage report generation
// @Produce json
// @Param project path int true "project id"
// @Param window query string false "day (default), week, month, year or total"
// @Success 200 {object} object
// @Failure 400 {object} object
// @Router /api/v1/projects/{project}/usage/report [post]
func (h *UsageHandler) requestReport(c *fiber.Ctx) error {
	projectID, err := query.ParamID(c, "project")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	window, err := ParseWindow(c.Query("window", ""))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}

	uuid, err := h.us.RequestReport(c.UserContext(), projectID, window)
	if err != nil {
		h.logger.Error("failed to enqueue usage report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(map[string]interface{}{
		"uuid": uuid,
	})
}

// @Summary UUID of the in-flight usage report for a project and window
// @Description 404 when no report for this project and window is currently
// tracked; request one first.
// @Produce json
// @Param project path int true "project id"
// @Param window query string false "day (default), week, month, year or total"
// @Success 200 {object} object
// @Failure 404 {object} object
// @Router /api/v1/projects/{project}/usage/report [get]
func (h *UsageHandler) getReportUUID(c *fiber.Ctx) error {
	projectID, err := query.ParamID(c, "project")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	window, err := ParseWindow(c.Query("window", ""))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}

	uuid, err := h.us.GetReportUUID(projectID, window)
	if err != nil {
		return c.Status(commonerrors.HTTPStatus(err)).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(map[string]interface{}{
		"uuid": uuid,
	})
}

// @Summary Status of a usage report task
// @Produce json
// @Param uuid path string true "report task uuid"
// @Success 200 {object} object
// @Router /api/v1/usage/reports/{uuid}/status [get]
func (h *UsageHandler) getReportStatus(c *fiber.Ctx) error {
	uuid := c.Params("uuid")

	status, err := h.us.GetReportStatus(uuid)
	if err != nil {
		h.logger.Debug("failed to get report status", zap.Error(err))
		return c.Status(commonerrors.HTTPStatus(err)).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(map[string]interface{}{
		"status": status,
	})
}

// @Summary Result of a usage report task
// @Description 204 while the task has not produced a result yet.
// @Produce json
// @Param uuid path string true "report task uuid"
// @Success 200 {object} Report
// @Success 204
// @Router /api/v1/usage/reports/{uuid}/result [get]
func (h *UsageHandler) getReportResult(c *fiber.Ctx) error {
	uuid := c.Params("uuid")

	report, err := h.us.GetReportResult(uuid)
	if err != nil {
		h.logger.Debug("failed to get report result", zap.Error(err))
		return c.Status(commonerrors.HTTPStatus(err)).JSON(&fiber.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}
	if report == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.Status(fiber.StatusOK).JSON(map[string]interface{}{
		"result": report,
	})
}
