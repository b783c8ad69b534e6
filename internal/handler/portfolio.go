package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// PositionSize godoc
// @Summary      Size a new position for a symbol
// @Description  Returns the risk-budgeted share count at the latest quote
// @Tags         portfolio
// @Produce      json
// @Param        symbol  path  string  true  "Stock symbol"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/position-size/{symbol} [get]
func (h *Handler) PositionSize(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.position-size")
	defer span.End()

	symbol := c.Param("symbol")
	span.SetAttributes(attribute.String("symbol", symbol))

	shares, price, err := h.quant.SizePosition(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"price":    price,
		"shares":   shares,
		"notional": float64(shares) * price,
	})
}

// OpenPosition godoc
// @Summary      Open a position
// @Description  Buys a risk-sized lot of the symbol at the latest quote
// @Tags         portfolio
// @Produce      json
// @Param        symbol  path  string  true  "Stock symbol"
// @Success      200  {object}  domain.Position
// @Failure      422  {object}  map[string]string
// @Router       /api/positions/{symbol} [post]
func (h *Handler) OpenPosition(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.open-position")
	defer span.End()

	symbol := c.Param("symbol")
	span.SetAttributes(attribute.String("symbol", symbol))

	position, err := h.quant.OpenPosition(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, position)
}

// ClosePosition godoc
// @Summary      Close a position
// @Description  Sells the open position at the latest quote and records the trade
// @Tags         portfolio
// @Produce      json
// @Param        symbol  path  string  true  "Stock symbol"
// @Success      200  {object}  domain.TradeRecord
// @Failure      422  {object}  map[string]string
// @Router       /api/positions/{symbol} [delete]
func (h *Handler) ClosePosition(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.close-position")
	defer span.End()

	symbol := c.Param("symbol")
	span.SetAttributes(attribute.String("symbol", symbol))

	trade, err := h.quant.ClosePosition(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, trade)
}

// Portfolio godoc
// @Summary      Portfolio status
// @Description  Returns positions, risk metrics, trade count and win rate marked to market
// @Tags         portfolio
// @Produce      json
// @Success      200  {object}  domain.PortfolioStatus
// @Failure      500  {object}  map[string]string
// @Router       /api/portfolio [get]
func (h *Handler) Portfolio(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.portfolio")
	defer span.End()

	status, err := h.quant.PortfolioStatus(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}
