package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"priceoracle/pkg/types/prices"

	"github.com/gin-gonic/gin"
)

const (
	symbolHistoryPoints = 10
	defaultHistoryLimit = 50
)

type PricesMetadata struct {
	UpdateCount       int64                            `json:"updateCount"`
	AverageUpdateTime string                           `json:"averageUpdateTime"`
	PriceHistory      map[string]prices.HistorySummary `json:"priceHistory"`
}

type PricesResponse struct {
	Prices    map[string]prices.PriceRecord `json:"prices"`
	Timestamp time.Time                     `json:"timestamp"`
	Count     int                           `json:"count"`
	Source    string                        `json:"source"`
	Metadata  *PricesMetadata               `json:"metadata,omitempty"`
}

type PriceWithHistory struct {
	prices.PriceRecord
	History []prices.HistoryEntry `json:"history"`
}

type Timespan struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type HistoryResponse struct {
	Symbol   string                `json:"symbol"`
	History  []prices.HistoryEntry `json:"history"`
	Count    int                   `json:"count"`
	Timespan *Timespan             `json:"timespan"`
}

// ListPrices godoc
// @Summary List current prices
// @Description Latest resolved price for every tracked asset
// @Tags prices
// @Produce json
// @Param detailed query bool false "Include update metadata"
// @Success 200 {object} PricesResponse
// @Router /prices [get]
func (c *Controller) ListPrices(ctx *gin.Context) {
	all := c.store.All()
	resp := PricesResponse{
		Prices:    all,
		Timestamp: time.Now().UTC(),
		Count:     len(all),
		Source:    prices.SourceDexScreener,
	}

	if ctx.Query("detailed") == "true" {
		status := c.oracle.Status()
		resp.Metadata = &PricesMetadata{
			UpdateCount:       status.Updates,
			AverageUpdateTime: status.AverageUpdateTime,
			PriceHistory:      c.store.Summary(),
		}
	}

	ctx.JSON(http.StatusOK, resp)
}

// GetPrice godoc
// @Summary Get price for a specific asset
// @Description Current record plus the last 10 history points
// @Tags prices
// @Produce json
// @Param symbol path string true "Asset symbol (e.g., BTC, ETH)"
// @Success 200 {object} PriceWithHistory
// @Failure 404 {object} map[string]interface{}
// @Router /prices/{symbol} [get]
func (c *Controller) GetPrice(ctx *gin.Context) {
	symbol := strings.ToUpper(ctx.Param("symbol"))

	rec, ok := c.store.Get(symbol)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":     fmt.Sprintf("Price for %s not found", symbol),
			"available": c.store.Symbols(),
		})
		return
	}

	ctx.JSON(http.StatusOK, PriceWithHistory{
		PriceRecord: rec,
		History:     c.store.History(symbol, symbolHistoryPoints),
	})
}

// GetHistory godoc
// @Summary Get price history for an asset
// @Description Most recent history points, oldest first
// @Tags prices
// @Produce json
// @Param symbol path string true "Asset symbol"
// @Param limit query int false "Maximum points (default 50)"
// @Success 200 {object} HistoryResponse
// @Router /history/{symbol} [get]
func (c *Controller) GetHistory(ctx *gin.Context) {
	symbol := strings.ToUpper(ctx.Param("symbol"))

	limit, err := strconv.Atoi(ctx.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultHistoryLimit
	}

	history := c.store.History(symbol, limit)
	resp := HistoryResponse{
		Symbol:  symbol,
		History: history,
		Count:   len(history),
	}
	if len(history) > 0 {
		resp.Timespan = &Timespan{
			Start: history[0].Timestamp,
			End:   history[len(history)-1].Timestamp,
		}
	}

	ctx.JSON(http.StatusOK, resp)
}
