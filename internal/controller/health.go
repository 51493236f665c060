package controller

import (
	"net/http"
	"time"

	"priceoracle/pkg/integrations/dexscreener"
	"priceoracle/pkg/types/prices"

	"github.com/gin-gonic/gin"
)

type LedgerHealth struct {
	Contract string `json:"contract"`
	Provider string `json:"provider"`
	Network  string `json:"network"`
}

type DataHealth struct {
	Prices        int        `json:"prices"`
	LastUpdate    *time.Time `json:"lastUpdate"`
	HistoryPoints int        `json:"historyPoints"`
}

type HealthResponse struct {
	Status      string              `json:"status"`
	Timestamp   time.Time           `json:"timestamp"`
	Uptime      int64               `json:"uptime"`
	Updates     int64               `json:"updates"`
	Phase       string              `json:"phase"`
	DexScreener prices.MarketStatus `json:"dexscreener"`
	Stellar     LedgerHealth        `json:"stellar"`
	Data        DataHealth          `json:"data"`
}

// Health godoc
// @Summary Service health
// @Description Runtime status, market-data reachability and ledger configuration
// @Tags oracle
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (c *Controller) Health(ctx *gin.Context) {
	status := c.oracle.Status()
	now := time.Now().UTC()

	state := "starting"
	if status.Running {
		state = "healthy"
	}

	ledger := LedgerHealth{
		Contract: "not_deployed",
		Provider: "not_configured",
		Network:  status.Ledger.Network,
	}
	if status.Ledger.Contract {
		ledger.Contract = "deployed"
	}
	if status.Ledger.Provider {
		ledger.Provider = "configured"
	}

	ctx.JSON(http.StatusOK, HealthResponse{
		Status:      state,
		Timestamp:   now,
		Uptime:      int64(now.Sub(status.StartTime).Seconds()),
		Updates:     status.Updates,
		Phase:       status.Phase,
		DexScreener: c.marketStatus(ctx),
		Stellar:     ledger,
		Data: DataHealth{
			Prices:        c.store.Len(),
			LastUpdate:    status.LastUpdate,
			HistoryPoints: c.store.HistoryPoints(),
		},
	})
}

// marketStatus probes the market-data API at most once per TTL so health
// checks do not eat into the request budget.
func (c *Controller) marketStatus(ctx *gin.Context) prices.MarketStatus {
	if c.market == nil {
		return prices.MarketStatus{Status: "unknown", API: prices.SourceDexScreener, RateLimit: dexscreener.RateLimitInfo}
	}
	if cached, ok := c.marketCache.Get(marketStatusKey); ok {
		return cached
	}
	status := c.market.MarketStatus(ctx.Request.Context())
	c.marketCache.Set(marketStatusKey, status)
	return status
}
