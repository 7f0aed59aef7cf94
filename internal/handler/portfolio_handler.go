package handler

import (
	"strconv"

	"github.com/coinfolio/internal/middleware"
	"github.com/coinfolio/internal/service"
	"github.com/coinfolio/pkg/response"
	"github.com/gin-gonic/gin"
)

// PortfolioHandler handles portfolio API requests
type PortfolioHandler struct {
	portfolioService *service.PortfolioService
	statsService     *service.StatsService
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(portfolioService *service.PortfolioService, statsService *service.StatsService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
		statsService:     statsService,
	}
}

// parsePortfolioID reads the :portfolio_id path parameter
func parsePortfolioID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("portfolio_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid portfolio id")
		return 0, false
	}
	return uint(id), true
}

// Create handles portfolio creation
// POST /api/v1/portfolios
func (h *PortfolioHandler) Create(c *gin.Context) {
	var req service.CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	portfolio, err := h.portfolioService.Create(middleware.GetUserID(c), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, portfolio)
}

// List returns all portfolios of the calling user
// GET /api/v1/portfolios
func (h *PortfolioHandler) List(c *gin.Context) {
	portfolios, err := h.portfolioService.List(middleware.GetUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, portfolios)
}

// Get returns a single portfolio
// GET /api/v1/portfolios/:portfolio_id
func (h *PortfolioHandler) Get(c *gin.Context) {
	portfolioID, ok := parsePortfolioID(c)
	if !ok {
		return
	}

	portfolio, err := h.portfolioService.Get(middleware.GetUserID(c), portfolioID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, portfolio)
}

// Update applies a sparse update to a portfolio
// PATCH /api/v1/portfolios/:portfolio_id
func (h *PortfolioHandler) Update(c *gin.Context) {
	portfolioID, ok := parsePortfolioID(c)
	if !ok {
		return
	}

	var req service.UpdatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	portfolio, err := h.portfolioService.Update(middleware.GetUserID(c), portfolioID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, portfolio)
}

// Delete removes a portfolio
// DELETE /api/v1/portfolios/:portfolio_id
func (h *PortfolioHandler) Delete(c *gin.Context) {
	portfolioID, ok := parsePortfolioID(c)
	if !ok {
		return
	}

	if err := h.portfolioService.Delete(middleware.GetUserID(c), portfolioID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": portfolioID})
}

// Stats returns aggregated statistics for a portfolio
// GET /api/v1/portfolios/:portfolio_id/stats
func (h *PortfolioHandler) Stats(c *gin.Context) {
	portfolioID, ok := parsePortfolioID(c)
	if !ok {
		return
	}

	stats, err := h.statsService.GetPortfolioStats(c.Request.Context(), middleware.GetUserID(c), portfolioID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, stats)
}

// FeeLevel returns the fee tier earned by the portfolio's 30-day volume
// GET /api/v1/portfolios/:portfolio_id/fee-level
func (h *PortfolioHandler) FeeLevel(c *gin.Context) {
	portfolioID, ok := parsePortfolioID(c)
	if !ok {
		return
	}

	level, err := h.statsService.FeeLevel(c.Request.Context(), middleware.GetUserID(c), portfolioID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, level)
}

// RegisterRoutes registers portfolio routes
func (h *PortfolioHandler) RegisterRoutes(rg *gin.RouterGroup) {
	portfolios := rg.Group("/portfolios")
	{
		portfolios.POST("", h.Create)
		portfolios.GET("", h.List)
		portfolios.GET("/:portfolio_id", h.Get)
		portfolios.PATCH("/:portfolio_id", h.Update)
		portfolios.DELETE("/:portfolio_id", h.Delete)
		portfolios.GET("/:portfolio_id/stats", h.Stats)
		portfolios.GET("/:portfolio_id/fee-level", h.FeeLevel)
	}
}
