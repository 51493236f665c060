package controller

import (
	"net/http"

	"priceoracle/internal/config"

	"github.com/gin-gonic/gin"
)

// endpointDocs describes every route the API can serve. /status lists only
// the ones actually mounted.
var endpointDocs = map[string]string{
	"GET /health":          "Service health status",
	"GET /prices":          "All current prices (add ?detailed=true for metadata)",
	"GET /prices/:symbol":  "Specific token price with history",
	"GET /prices/stream":   "Server-sent events stream of price updates",
	"GET /history/:symbol": "Price history for token (add ?limit=N)",
	"POST /submit":         "Manual price submission",
	"GET /submissions":     "Ledger submission audit log (add ?symbol=&status=&limit=)",
	"GET /ws":              "WebSocket stream of price updates",
	"GET /metrics":         "Prometheus metrics",
	"GET /status":          "This endpoint",
}

// Status godoc
// @Summary Service metadata
// @Description Endpoint catalog, tracked tokens and rate-limit policy
// @Tags oracle
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /status [get]
func (c *Controller) Status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"service":   ServiceName,
		"version":   ServiceVersion,
		"endpoints": c.endpoints(),
		"tokens":    config.Symbols(c.oracle.Assets()),
		"rateLimits": gin.H{
			"dexscreener":        "300 requests/minute",
			"manual_submissions": "No limit",
		},
	})
}

func (c *Controller) endpoints() map[string]string {
	if c.routes == nil {
		return endpointDocs
	}
	out := make(map[string]string)
	for _, r := range c.routes() {
		key := r.Method + " " + r.Path
		if doc, ok := endpointDocs[key]; ok {
			out[key] = doc
		}
	}
	return out
}
