package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tka-invoice/pkg/db/pagination"
)

const dateOnlyLayout = "2006-01-02"

type ListQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
	Search    string `form:"search"`
}

func (q ListQuery) page() pagination.Pagination {
	return pagination.Pagination{
		PageToken: strings.TrimSpace(q.PageToken),
		PageSize:  q.PageSize,
	}
}

func respondList(c *gin.Context, items any, info pagination.PageInfo) {
	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": info})
}

func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}
