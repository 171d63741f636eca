package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type page struct {
	limit  int
	offset int
}

func parsePage(c *gin.Context) (page, error) {
	p := page{limit: DefaultLimit}

	if raw, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxLimit {
			return page{}, core.NewValidationError("limit must be between 1 and 1000")
		}

		p.limit = limit
	}

	if raw, ok := c.GetQuery("offset"); ok {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return page{}, core.NewValidationError("offset must not be negative")
		}

		p.offset = offset
	}

	return p, nil
}
