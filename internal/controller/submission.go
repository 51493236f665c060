package controller

import (
	"net/http"
	"strconv"

	"priceoracle/internal/repo"

	"github.com/gin-gonic/gin"
)

// ListSubmissions godoc
// @Summary Ledger submission audit log
// @Description Newest submissions first
// @Tags oracle
// @Produce json
// @Param symbol query string false "Filter by symbol"
// @Param status query string false "success or failed"
// @Param limit query int false "Maximum rows (default 50)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} APIError
// @Failure 503 {object} APIError
// @Router /submissions [get]
func (c *Controller) ListSubmissions(ctx *gin.Context) {
	if c.submissions == nil {
		serviceUnavailable(ctx, "Submission log not available")
		return
	}

	filter := repo.SubmissionFilter{
		Symbol: ctx.Query("symbol"),
		Status: ctx.Query("status"),
	}
	if raw := ctx.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			badRequest(ctx, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	rows, err := c.submissions.ListSubmissions(filter)
	if err != nil {
		c.logger.Error("failed to list submissions", "error", err)
		internalError(ctx, "Failed to fetch submissions")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"submissions": rows,
		"count":       len(rows),
	})
}
