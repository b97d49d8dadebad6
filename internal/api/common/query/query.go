package query

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"fleet-api-server/internal/utils"
)

// parseQuery collects the raw query parameters before validation.
type parseQuery struct {
	Window    string `query:"window,omitempty" description:"usage window: day, week, month, year or total"`
	StartTime string `query:"start,omitempty" json:"-"`
	EndTime   string `query:"end,omitempty" json:"-"`
	Limit     string `query:"limit,omitempty" json:"-"`
}

type Query struct {
	ID        string
	ProjectID uint
	Window    string
	Limit     int
	StartTime time.Time
	EndTime   time.Time
}

func (q parseQuery) ParseAndValidate(c *fiber.Ctx) (Query, error) {
	var (
		id = c.Locals("requestid").(string)
		// default time
		startTime = time.Now().AddDate(0, 0, -7)
		endTime   = time.Now()
		limit     = 20
	)

	projectID, err := ParamID(c, "project")
	if err != nil {
		return Query{}, err
	}

	if q.StartTime != "" {
		start, err := utils.TimeParser(q.StartTime)
		if err != nil {
			return Query{}, err
		}
		startTime = start
	}

	if q.EndTime != "" {
		end, err := utils.TimeParser(q.EndTime)
		if err != nil {
			return Query{}, err
		}
		endTime = end
	}

	if startTime.After(endTime) {
		return Query{}, errors.New("the end time should be after the start time")
	}

	if q.Limit != "" {
		l, err := strconv.Atoi(q.Limit)
		if err != nil || l <= 0 {
			return Query{}, errors.New("limit must be a positive integer")
		}
		limit = l
	}

	return Query{
		ID:        id,
		ProjectID: projectID,
		Window:    q.Window,
		Limit:     limit,
		StartTime: startTime,
		EndTime:   endTime,
	}, nil
}

func ParseAndValidate(c *fiber.Ctx) (Query, error) {
	query := &parseQuery{}
	if err := c.QueryParser(query); err != nil {
		return Query{}, err
	}
	return query.ParseAndValidate(c)
}

// ParamID parses a numeric route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name, "")
	if raw == "" {
		return 0, errors.New("missing " + name + " parameter")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New(name + " must be a numeric id")
	}
	return uint(id), nil
}
