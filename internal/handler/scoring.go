package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

// Rank godoc
// @Summary      Rank the scoring universe
// @Description  Scores every symbol in the universe and returns candidates best first
// @Tags         scoring
// @Produce      json
// @Param        method  query  string  false  "Scoring method (comprehensive, momentum, trend)"  default(comprehensive)
// @Param        top     query  int     false  "Limit the result to the top N candidates"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/rank [get]
func (h *Handler) Rank(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.rank")
	defer span.End()

	method := domain.ScoreMethod(c.DefaultQuery("method", string(domain.MethodComprehensive)))
	if !method.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unsupported method: " + string(method),
			"supported_methods": []domain.ScoreMethod{
				domain.MethodComprehensive, domain.MethodMomentum, domain.MethodTrend,
			},
		})
		return
	}
	span.SetAttributes(attribute.String("method", string(method)))

	candidates, err := h.quant.ScoreUniverse(ctx, method)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if top := c.Query("top"); top != "" {
		if n, err := strconv.Atoi(top); err == nil && n > 0 && n < len(candidates) {
			candidates = candidates[:n]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"method":     method,
		"candidates": candidates,
	})
}

// Recommendations godoc
// @Summary      Ranked recommendations with the context overlay applied
// @Description  Blends technical scores with policy themes and quote fundamentals
// @Tags         scoring
// @Produce      json
// @Param        method  query  string  false  "Scoring method"  default(comprehensive)
// @Param        top     query  int     false  "Top N results"   default(10)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/recommendations [get]
func (h *Handler) Recommendations(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.recommendations")
	defer span.End()

	method := domain.ScoreMethod(c.DefaultQuery("method", string(domain.MethodComprehensive)))
	if !method.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported method: " + string(method)})
		return
	}

	topN := 10
	if top := c.Query("top"); top != "" {
		if n, err := strconv.Atoi(top); err == nil && n > 0 {
			topN = n
		}
	}

	recommendations, err := h.quant.Recommend(ctx, method, topN)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": recommendations})
}

// Signal godoc
// @Summary      Generate a trading signal for one symbol
// @Description  Returns the signal, score, reason and indicator snapshot
// @Tags         scoring
// @Produce      json
// @Param        symbol  path  string  true  "Stock symbol (e.g., 600036)"
// @Success      200  {object}  domain.SignalReport
// @Failure      500  {object}  map[string]string
// @Router       /api/signals/{symbol} [get]
func (h *Handler) Signal(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.signal")
	defer span.End()

	symbol := c.Param("symbol")
	span.SetAttributes(attribute.String("symbol", symbol))

	report, err := h.quant.GenerateSignal(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ScreenMA godoc
// @Summary      Moving-average screener
// @Description  Returns universe symbols whose short MA is above the long MA
// @Tags         screeners
// @Produce      json
// @Param        short  query  int  false  "Short MA window"  default(5)
// @Param        long   query  int  false  "Long MA window"   default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/screen/ma [get]
func (h *Handler) ScreenMA(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.screen-ma")
	defer span.End()

	shortWindow := queryInt(c, "short", 5)
	longWindow := queryInt(c, "long", 20)

	results, err := h.quant.ScreenByMA(ctx, shortWindow, longWindow)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// ScreenVolume godoc
// @Summary      Volume-surge screener
// @Description  Returns universe symbols trading at a multiple of their average volume
// @Tags         screeners
// @Produce      json
// @Param        multiplier  query  number  false  "Volume multiplier"  default(2.0)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/screen/volume [get]
func (h *Handler) ScreenVolume(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.screen-volume")
	defer span.End()

	multiplier := 2.0
	if m := c.Query("multiplier"); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil && v > 0 {
			multiplier = v
		}
	}

	results, err := h.quant.ScreenByVolume(ctx, multiplier)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
