package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// Quotes godoc
// @Summary      Real-time quotes
// @Description  Returns snapshots for the requested symbols, or the whole universe
// @Tags         market
// @Produce      json
// @Param        symbols  query  string  false  "Comma-separated symbols (default: universe)"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/quotes [get]
func (h *Handler) Quotes(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.quotes")
	defer span.End()

	symbols := h.quant.Universe()
	if raw := c.Query("symbols"); raw != "" {
		symbols = symbols[:0]
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
	}

	quotes, err := h.quant.Quotes(ctx, symbols)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

// Bars godoc
// @Summary      Daily bar history
// @Description  Returns up to limit daily OHLCV bars, oldest first
// @Tags         market
// @Produce      json
// @Param        symbol  path   string  true   "Stock symbol"
// @Param        limit   query  int     false  "Number of bars (default 120, max 500)"  default(120)
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/bars/{symbol} [get]
func (h *Handler) Bars(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.bars")
	defer span.End()

	symbol := c.Param("symbol")
	span.SetAttributes(attribute.String("symbol", symbol))

	limit := 120
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	bars, err := h.quant.History(ctx, symbol, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"bars":   bars,
	})
}
