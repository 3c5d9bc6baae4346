package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	quotadomain "github.com/smallbiznis/quotaledger/internal/quota/domain"
)

const dateOnlyLayout = "2006-01-02"

// parseOptionalTime accepts RFC3339 or a bare date. A bare date is widened to the end of the
// day when endOfDay is set.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		parsed = parsed.UTC()
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

func quotaKeyParam(c *gin.Context) quotadomain.QuotaKey {
	return quotadomain.QuotaKey{
		ConcessionID: strings.TrimSpace(c.Param("concession_id")),
		Holder:       strings.TrimSpace(c.Param("holder")),
	}
}
