package controller

import (
	"math"
	"net/http"

	"priceoracle/internal/service"
	"priceoracle/pkg/pairs"
	"priceoracle/pkg/types/prices"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// SubmitRequest accepts the price as a JSON number or a numeric string.
type SubmitRequest struct {
	Symbol string `json:"symbol"`
	Price  any    `json:"price"`
	Source string `json:"source"`
}

type SubmitResponse struct {
	Success     bool               `json:"success"`
	Transaction string             `json:"transaction"`
	Data        prices.PriceRecord `json:"data"`
}

var submitExample = gin.H{"symbol": "BTC", "price": 67000.50}

// SubmitPrice godoc
// @Summary Submit a price manually
// @Description Publishes a price to the ledger and, on success, records it
// @Tags oracle
// @Accept json
// @Produce json
// @Param request body SubmitRequest true "Symbol and price"
// @Success 200 {object} SubmitResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Failure 500 {object} APIError
// @Router /submit [post]
func (c *Controller) SubmitPrice(ctx *gin.Context) {
	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		invalidSubmission(ctx)
		return
	}

	rec, err := c.oracle.Submit(ctx.Request.Context(), service.ManualSubmission{
		Symbol: req.Symbol,
		Price:  parsePrice(req.Price),
		Source: req.Source,
	})
	switch {
	case errors.Is(err, service.ErrInvalidSubmission):
		invalidSubmission(ctx)
	case errors.Is(err, service.ErrLedgerNotConfigured):
		ledger := c.oracle.Status().Ledger
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Oracle not fully configured",
			"details": gin.H{
				"provider": ledger.Provider,
				"contract": ledger.Contract,
			},
		})
	case err != nil:
		c.logger.Error("manual submission failed", "symbol", req.Symbol, "error", err)
		internalError(ctx, "Failed to submit to Stellar blockchain")
	default:
		ctx.JSON(http.StatusOK, SubmitResponse{
			Success:     true,
			Transaction: rec.TxHash,
			Data:        rec,
		})
	}
}

func invalidSubmission(ctx *gin.Context) {
	ctx.JSON(http.StatusBadRequest, gin.H{
		"error":   "Valid symbol and price required",
		"example": submitExample,
	})
}

// parsePrice returns NaN for anything that is not a number, which the
// oracle rejects as invalid.
func parsePrice(v any) float64 {
	switch p := v.(type) {
	case float64:
		return p
	case string:
		if f, ok := pairs.ParseAmount(p); ok {
			return f
		}
	}
	return math.NaN()
}
