package handler

import (
	"strconv"

	"github.com/coinfolio/internal/middleware"
	"github.com/coinfolio/internal/service"
	"github.com/coinfolio/pkg/response"
	"github.com/gin-gonic/gin"
)

// TradeHandler handles trade ledger API requests
type TradeHandler struct {
	ledgerService *service.LedgerService
}

// NewTradeHandler creates a new TradeHandler
func NewTradeHandler(ledgerService *service.LedgerService) *TradeHandler {
	return &TradeHandler{ledgerService: ledgerService}
}

// parseTradeID reads the :trade_id path parameter
func parseTradeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("trade_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid trade id")
		return 0, false
	}
	return uint(id), true
}

// CreateLong records a new LONG position
// POST /api/v1/portfolios/:portfolio_id/trades/long
func (h *TradeHandler) CreateLong(c *gin.Context) {
	portfolioID, ok := parsePortfolioID(c)
	if !ok {
		return
	}

	var req service.CreateLongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.PortfolioID = portfolioID

	trade, err := h.ledgerService.CreateLong(middleware.GetUserID(c), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, trade)
}

// CreateShort records a new SHORT position
// POST /api/v1/portfolios/:portfolio_id/trades/short
func (h *TradeHandler) CreateShort(c *gin.Context) {
	portfolioID, ok := parsePortfolioID(c)
	if !ok {
		return
	}

	var req service.CreateShortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.PortfolioID = portfolioID

	trade, err := h.ledgerService.CreateShort(middleware.GetUserID(c), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, trade)
}

// List returns all trades of a portfolio
// GET /api/v1/portfolios/:portfolio_id/trades
func (h *TradeHandler) List(c *gin.Context) {
	portfolioID, ok := parsePortfolioID(c)
	if !ok {
		return
	}

	trades, err := h.ledgerService.ListTrades(middleware.GetUserID(c), portfolioID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, trades)
}

// Get returns a single trade
// GET /api/v1/trades/:trade_id
func (h *TradeHandler) Get(c *gin.Context) {
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	trade, err := h.ledgerService.GetTrade(middleware.GetUserID(c), tradeID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, trade)
}

// Update applies a sparse patch to a trade
// PATCH /api/v1/trades/:trade_id
func (h *TradeHandler) Update(c *gin.Context) {
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	var patch service.TradeUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trade, err := h.ledgerService.UpdateFields(middleware.GetUserID(c), tradeID, &patch)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, trade)
}

// PartialClose closes part of a filled trade
// POST /api/v1/trades/:trade_id/partial-close
func (h *TradeHandler) PartialClose(c *gin.Context) {
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	var req service.PartialCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.ledgerService.PartialClose(middleware.GetUserID(c), tradeID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// Split divides a filled trade into independent parts
// POST /api/v1/trades/:trade_id/split
func (h *TradeHandler) Split(c *gin.Context) {
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	var req struct {
		Amounts []float64 `json:"amounts" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.ledgerService.Split(middleware.GetUserID(c), tradeID, req.Amounts)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// Delete removes a trade
// DELETE /api/v1/trades/:trade_id
func (h *TradeHandler) Delete(c *gin.Context) {
	tradeID, ok := parseTradeID(c)
	if !ok {
		return
	}

	if err := h.ledgerService.Delete(middleware.GetUserID(c), tradeID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": tradeID})
}

// RegisterRoutes registers trade routes
func (h *TradeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	portfolios := rg.Group("/portfolios/:portfolio_id/trades")
	{
		portfolios.POST("/long", h.CreateLong)
		portfolios.POST("/short", h.CreateShort)
		portfolios.GET("", h.List)
	}

	trades := rg.Group("/trades")
	{
		trades.GET("/:trade_id", h.Get)
		trades.PATCH("/:trade_id", h.Update)
		trades.POST("/:trade_id/partial-close", h.PartialClose)
		trades.POST("/:trade_id/split", h.Split)
		trades.DELETE("/:trade_id", h.Delete)
	}
}
