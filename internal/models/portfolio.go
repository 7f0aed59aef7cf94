package models

import (
	"time"

	"gorm.io/gorm"
)

// Portfolio represents a user's trading portfolio with a target allocation
type Portfolio struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"index;not null" json:"user_id"`
	Name         string         `gorm:"size:100;not null" json:"name"`
	TotalDeposit float64        `gorm:"type:decimal(20,8);default:0" json:"total_deposit"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	User         User          `gorm:"foreignKey:UserID" json:"-"`
	Allocations  []Allocation  `gorm:"foreignKey:PortfolioID" json:"allocations,omitempty"`
	InitialCoins []InitialCoin `gorm:"foreignKey:PortfolioID" json:"initial_coins,omitempty"`
}

// TableName specifies the table name for Portfolio model
func (Portfolio) TableName() string {
	return "portfolios"
}

// HasSymbol returns true if the symbol is part of the target allocation
func (p *Portfolio) HasSymbol(symbol string) bool {
	for _, a := range p.Allocations {
		if a.Symbol == symbol {
			return true
		}
	}
	return false
}

// InitialCoinFor returns the free coin balance entry for a symbol, if any
func (p *Portfolio) InitialCoinFor(symbol string) *InitialCoin {
	for i := range p.InitialCoins {
		if p.InitialCoins[i].Symbol == symbol {
			return &p.InitialCoins[i]
		}
	}
	return nil
}

// Allocation represents one entry of a portfolio's target allocation
type Allocation struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	PortfolioID   uint    `gorm:"index;not null" json:"portfolio_id"`
	Symbol        string  `gorm:"size:20;not null" json:"symbol"`
	TargetPercent float64 `gorm:"type:decimal(10,4);not null" json:"target_percent"`
	DecimalPlaces int     `gorm:"default:8" json:"decimal_places"`
}

// TableName specifies the table name for Allocation model
func (Allocation) TableName() string {
	return "allocations"
}

// InitialCoin represents a pre-existing coin balance available for
// SHORT-selling without a parent LONG
type InitialCoin struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	PortfolioID uint    `gorm:"index;not null" json:"portfolio_id"`
	Symbol      string  `gorm:"size:20;not null" json:"symbol"`
	Amount      float64 `gorm:"type:decimal(20,8);not null" json:"amount"`
}

// TableName specifies the table name for InitialCoin model
func (InitialCoin) TableName() string {
	return "initial_coins"
}
