package controller

import (
	"io"

	"github.com/gin-gonic/gin"
)

// StreamPrices godoc
// @Summary Stream live prices
// @Description Server-Sent Events endpoint for real-time price updates
// @Tags prices
// @Produce text/event-stream
// @Success 200 {string} string "SSE stream"
// @Router /prices/stream [get]
func (c *Controller) StreamPrices(ctx *gin.Context) {
	if c.subscriber == nil {
		serviceUnavailable(ctx, "Price stream not available")
		return
	}

	msgs, cancel := c.subscriber.Subscribe()
	defer cancel()

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")

	ctx.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return false
			}
			ctx.SSEvent("price_update", string(msg))
			ctx.Writer.Flush()
			return true
		case <-ctx.Request.Context().Done():
			return false
		}
	})
}
