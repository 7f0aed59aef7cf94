package repository

import (
	"errors"
	"time"

	"github.com/coinfolio/internal/models"
	"gorm.io/gorm"
)

var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
)

// PortfolioRepository handles portfolio data access
type PortfolioRepository struct {
	db *gorm.DB
}

// NewPortfolioRepository creates a new PortfolioRepository
func NewPortfolioRepository(db *gorm.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Create creates a new portfolio with its allocations and initial coins
func (r *PortfolioRepository) Create(portfolio *models.Portfolio) error {
	return r.db.Create(portfolio).Error
}

// GetByID retrieves a portfolio with allocations and initial coins
func (r *PortfolioRepository) GetByID(id uint) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	result := r.db.Preload("Allocations").Preload("InitialCoins").First(&portfolio, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, result.Error
	}
	return &portfolio, nil
}

// GetByIDAndUserID retrieves a portfolio owned by a specific user
func (r *PortfolioRepository) GetByIDAndUserID(id, userID uint) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	result := r.db.Preload("Allocations").Preload("InitialCoins").
		Where("id = ? AND user_id = ?", id, userID).First(&portfolio)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, result.Error
	}
	return &portfolio, nil
}

// GetByUserID retrieves all portfolios for a user
func (r *PortfolioRepository) GetByUserID(userID uint) ([]models.Portfolio, error) {
	var portfolios []models.Portfolio
	result := r.db.Preload("Allocations").Preload("InitialCoins").
		Where("user_id = ?", userID).Order("created_at DESC").Find(&portfolios)
	return portfolios, result.Error
}

// Update updates a portfolio
func (r *PortfolioRepository) Update(portfolio *models.Portfolio) error {
	return r.db.Save(portfolio).Error
}

// ReplaceAllocations replaces a portfolio's allocation rows
func (r *PortfolioRepository) ReplaceAllocations(portfolioID uint, allocations []models.Allocation) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("portfolio_id = ?", portfolioID).Delete(&models.Allocation{}).Error; err != nil {
			return err
		}
		for i := range allocations {
			allocations[i].ID = 0
			allocations[i].PortfolioID = portfolioID
		}
		if len(allocations) == 0 {
			return nil
		}
		return tx.Create(&allocations).Error
	})
}

// Delete soft deletes a portfolio. Trades are intentionally left in place;
// the ledger keeps them queryable by portfolio id.
func (r *PortfolioRepository) Delete(id uint) error {
	return r.db.Delete(&models.Portfolio{}, id).Error
}

// GetActiveSince retrieves portfolios updated after the given time.
// Used by the stats snapshot worker to pick cache-warm candidates.
func (r *PortfolioRepository) GetActiveSince(since time.Time) ([]models.Portfolio, error) {
	var portfolios []models.Portfolio
	result := r.db.Where("updated_at > ?", since).Find(&portfolios)
	return portfolios, result.Error
}
