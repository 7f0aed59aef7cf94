package handler

import (
	"strconv"

	"github.com/coinfolio/internal/fees"
	"github.com/coinfolio/pkg/response"
	"github.com/gin-gonic/gin"
)

// FeeHandler serves the public fee schedule
type FeeHandler struct{}

// NewFeeHandler creates a new FeeHandler
func NewFeeHandler() *FeeHandler {
	return &FeeHandler{}
}

// Levels returns the full fee schedule
// GET /api/v1/fees/levels
func (h *FeeHandler) Levels(c *gin.Context) {
	response.Success(c, fees.Tiers())
}

// Level resolves the fee tier for an arbitrary 30-day volume
// GET /api/v1/fees/level?volume=<usd>
func (h *FeeHandler) Level(c *gin.Context) {
	volumeStr := c.Query("volume")
	if volumeStr == "" {
		response.BadRequest(c, "volume query parameter is required")
		return
	}
	volume, err := strconv.ParseFloat(volumeStr, 64)
	if err != nil {
		response.BadRequest(c, "invalid volume")
		return
	}

	response.Success(c, fees.Lookup(volume))
}

// RegisterRoutes registers fee schedule routes
func (h *FeeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/fees")
	{
		group.GET("/levels", h.Levels)
		group.GET("/level", h.Level)
	}
}
