package repository

import (
	"errors"
	"time"

	"github.com/coinfolio/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTradeNotFound       = errors.New("trade not found")
	ErrInitialCoinNotFound = errors.New("initial coin balance not found")
)

// LedgerStore is the persistence surface the position ledger operates on.
// Atomic runs the callback against a store bound to a single transaction,
// so multi-entity mutations (SHORT settlement, partial close, split) commit
// all-or-nothing.
type LedgerStore interface {
	Atomic(fn func(LedgerStore) error) error

	GetPortfolio(id uint) (*models.Portfolio, error)

	CreateTrade(trade *models.Trade) error
	GetTrade(id uint) (*models.Trade, error)
	// GetTradeForUpdate row-locks the trade for the duration of the
	// enclosing transaction.
	GetTradeForUpdate(id uint) (*models.Trade, error)
	SaveTrade(trade *models.Trade) error
	DeleteTrade(id uint) error
	GetTradesByPortfolioID(portfolioID uint) ([]models.Trade, error)

	SaveInitialCoin(coin *models.InitialCoin) error
	DeleteInitialCoin(id uint) error

	// FilledVolumeSince sums the gross entry volume of trades opened after
	// the given time. Feeds the fee-tier lookup.
	FilledVolumeSince(portfolioID uint, since time.Time) (float64, error)
}

// Store is the gorm-backed LedgerStore
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Compile-time interface verification
var _ LedgerStore = (*Store)(nil)

// Atomic runs fn inside a database transaction
func (s *Store) Atomic(fn func(LedgerStore) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// GetPortfolio retrieves a portfolio with allocations and initial coins
func (s *Store) GetPortfolio(id uint) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	result := s.db.Preload("Allocations").Preload("InitialCoins").First(&portfolio, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, result.Error
	}
	return &portfolio, nil
}

// CreateTrade creates a new trade
func (s *Store) CreateTrade(trade *models.Trade) error {
	return s.db.Create(trade).Error
}

// GetTrade retrieves a trade by ID
func (s *Store) GetTrade(id uint) (*models.Trade, error) {
	var trade models.Trade
	result := s.db.First(&trade, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// GetTradeForUpdate retrieves a trade with a SELECT ... FOR UPDATE lock
func (s *Store) GetTradeForUpdate(id uint) (*models.Trade, error) {
	var trade models.Trade
	result := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&trade, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// SaveTrade updates a trade
func (s *Store) SaveTrade(trade *models.Trade) error {
	return s.db.Save(trade).Error
}

// DeleteTrade soft deletes a trade
func (s *Store) DeleteTrade(id uint) error {
	return s.db.Delete(&models.Trade{}, id).Error
}

// GetTradesByPortfolioID retrieves all trades for a portfolio
func (s *Store) GetTradesByPortfolioID(portfolioID uint) ([]models.Trade, error) {
	var trades []models.Trade
	result := s.db.Where("portfolio_id = ?", portfolioID).
		Order("open_date DESC").Find(&trades)
	return trades, result.Error
}

// SaveInitialCoin updates an initial coin balance
func (s *Store) SaveInitialCoin(coin *models.InitialCoin) error {
	return s.db.Save(coin).Error
}

// DeleteInitialCoin removes an exhausted initial coin balance
func (s *Store) DeleteInitialCoin(id uint) error {
	return s.db.Delete(&models.InitialCoin{}, id).Error
}

// FilledVolumeSince sums gross entry volume of trades opened after a time
func (s *Store) FilledVolumeSince(portfolioID uint, since time.Time) (float64, error) {
	var total struct {
		Sum float64
	}
	err := s.db.Model(&models.Trade{}).
		Select("COALESCE(SUM(sum_plus_fee), 0) as sum").
		Where("portfolio_id = ? AND open_date > ? AND status <> ?",
			portfolioID, since, models.TradeStatusOpen).
		Scan(&total).Error
	return total.Sum, err
}
