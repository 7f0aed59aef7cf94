package handler

import (
	"errors"

	"github.com/coinfolio/internal/repository"
	"github.com/coinfolio/internal/service"
	"github.com/coinfolio/pkg/response"
	"github.com/gin-gonic/gin"
)

// handleServiceError maps the service error taxonomy onto HTTP responses
func handleServiceError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		response.BadRequest(c, validationErr.Error())
		return
	}

	var stateErr *service.InvalidStateError
	if errors.As(err, &stateErr) {
		response.Conflict(c, stateErr.Error())
		return
	}

	switch {
	case errors.Is(err, service.ErrInsufficientBalance):
		response.BadRequest(c, "insufficient balance")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, "access denied")
	case errors.Is(err, repository.ErrTradeNotFound):
		response.NotFound(c, "trade not found")
	case errors.Is(err, repository.ErrPortfolioNotFound):
		response.NotFound(c, "portfolio not found")
	default:
		response.InternalError(c, "internal server error")
	}
}
