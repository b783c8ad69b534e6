package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/UrwLee/ai-stock-trader/internal/service"
)

type Handler struct {
	tracer trace.Tracer
	quant  *service.QuantService
}

func New(tracer trace.Tracer, quant *service.QuantService) *Handler {
	return &Handler{
		tracer: tracer,
		quant:  quant,
	}
}

// RegisterRoutes mounts the API. Everything under /api sits behind the
// key check; an empty key leaves the API open.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/rank", h.Rank)
	api.GET("/recommendations", h.Recommendations)
	api.GET("/signals/:symbol", h.Signal)
	api.GET("/quotes", h.Quotes)
	api.GET("/bars/:symbol", h.Bars)
	api.GET("/position-size/:symbol", h.PositionSize)
	api.POST("/positions/:symbol", h.OpenPosition)
	api.DELETE("/positions/:symbol", h.ClosePosition)
	api.GET("/portfolio", h.Portfolio)
	api.GET("/screen/ma", h.ScreenMA)
	api.GET("/screen/volume", h.ScreenVolume)
}
