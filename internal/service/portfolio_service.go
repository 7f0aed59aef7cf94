package service

import (
	"math"
	"time"

	"github.com/coinfolio/internal/models"
	"github.com/coinfolio/internal/repository"
)

// allocationTolerance is how far the target percentages may drift from 100
const allocationTolerance = 0.01

// PortfolioService handles portfolio CRUD and allocation rules
type PortfolioService struct {
	portfolioRepo *repository.PortfolioRepository
}

// NewPortfolioService creates a new PortfolioService
func NewPortfolioService(portfolioRepo *repository.PortfolioRepository) *PortfolioService {
	return &PortfolioService{portfolioRepo: portfolioRepo}
}

// AllocationInput is one target-allocation entry in a request
type AllocationInput struct {
	Symbol        string  `json:"symbol" binding:"required"`
	TargetPercent float64 `json:"target_percent" binding:"required"`
	DecimalPlaces int     `json:"decimal_places"`
}

// InitialCoinInput is one pre-existing coin balance in a request
type InitialCoinInput struct {
	Symbol string  `json:"symbol" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
}

// CreatePortfolioRequest represents a request to create a portfolio
type CreatePortfolioRequest struct {
	Name         string             `json:"name" binding:"required"`
	TotalDeposit float64            `json:"total_deposit"`
	Allocations  []AllocationInput  `json:"allocations" binding:"required"`
	InitialCoins []InitialCoinInput `json:"initial_coins"`
}

// UpdatePortfolioRequest represents a sparse portfolio update
type UpdatePortfolioRequest struct {
	Name         *string           `json:"name"`
	TotalDeposit *float64          `json:"total_deposit"`
	Allocations  []AllocationInput `json:"allocations"`
}

func validateAllocations(allocations []AllocationInput) error {
	if len(allocations) == 0 {
		return validationErr("allocations", "at least one entry is required")
	}
	seen := make(map[string]bool, len(allocations))
	var sum float64
	for _, a := range allocations {
		if a.TargetPercent <= 0 {
			return validationErr("allocations", "target percent must be greater than zero")
		}
		if seen[a.Symbol] {
			return validationErr("allocations", "duplicate symbol "+a.Symbol)
		}
		seen[a.Symbol] = true
		sum += a.TargetPercent
	}
	if math.Abs(sum-100) > allocationTolerance {
		return validationErr("allocations", "target percentages must sum to 100")
	}
	return nil
}

// Create creates a portfolio after validating its allocation
func (s *PortfolioService) Create(userID uint, req *CreatePortfolioRequest) (*models.Portfolio, error) {
	if err := validateAllocations(req.Allocations); err != nil {
		return nil, err
	}
	if req.TotalDeposit < 0 {
		return nil, validationErr("total_deposit", "must not be negative")
	}

	portfolio := &models.Portfolio{
		UserID:       userID,
		Name:         req.Name,
		TotalDeposit: req.TotalDeposit,
	}
	for _, a := range req.Allocations {
		decimals := a.DecimalPlaces
		if decimals <= 0 {
			decimals = 8
		}
		portfolio.Allocations = append(portfolio.Allocations, models.Allocation{
			Symbol:        a.Symbol,
			TargetPercent: a.TargetPercent,
			DecimalPlaces: decimals,
		})
	}
	for _, c := range req.InitialCoins {
		if c.Amount <= 0 {
			return nil, validationErr("initial_coins", "amount must be greater than zero")
		}
		portfolio.InitialCoins = append(portfolio.InitialCoins, models.InitialCoin{
			Symbol: c.Symbol,
			Amount: c.Amount,
		})
	}

	if err := s.portfolioRepo.Create(portfolio); err != nil {
		return nil, err
	}
	return portfolio, nil
}

// Get returns a portfolio owned by the user
func (s *PortfolioService) Get(userID, portfolioID uint) (*models.Portfolio, error) {
	return s.portfolioRepo.GetByIDAndUserID(portfolioID, userID)
}

// List returns all portfolios for a user
func (s *PortfolioService) List(userID uint) ([]models.Portfolio, error) {
	return s.portfolioRepo.GetByUserID(userID)
}

// Update applies a sparse update to a portfolio
func (s *PortfolioService) Update(userID, portfolioID uint, req *UpdatePortfolioRequest) (*models.Portfolio, error) {
	portfolio, err := s.portfolioRepo.GetByIDAndUserID(portfolioID, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		portfolio.Name = *req.Name
	}
	if req.TotalDeposit != nil {
		if *req.TotalDeposit < 0 {
			return nil, validationErr("total_deposit", "must not be negative")
		}
		portfolio.TotalDeposit = *req.TotalDeposit
	}
	if req.Allocations != nil {
		if err := validateAllocations(req.Allocations); err != nil {
			return nil, err
		}
		allocations := make([]models.Allocation, 0, len(req.Allocations))
		for _, a := range req.Allocations {
			decimals := a.DecimalPlaces
			if decimals <= 0 {
				decimals = 8
			}
			allocations = append(allocations, models.Allocation{
				Symbol:        a.Symbol,
				TargetPercent: a.TargetPercent,
				DecimalPlaces: decimals,
			})
		}
		if err := s.portfolioRepo.ReplaceAllocations(portfolio.ID, allocations); err != nil {
			return nil, err
		}
		portfolio.Allocations = allocations
	}

	portfolio.UpdatedAt = time.Now()
	if err := s.portfolioRepo.Update(portfolio); err != nil {
		return nil, err
	}
	return portfolio, nil
}

// Delete removes a portfolio. Its trades are left in place on purpose:
// the ledger treats them as historical records, not children.
func (s *PortfolioService) Delete(userID, portfolioID uint) error {
	portfolio, err := s.portfolioRepo.GetByIDAndUserID(portfolioID, userID)
	if err != nil {
		return err
	}
	return s.portfolioRepo.Delete(portfolio.ID)
}
