package models

import (
	"time"

	"gorm.io/gorm"
)

// TradeType represents the trade direction
type TradeType string

const (
	TradeTypeLong  TradeType = "LONG"
	TradeTypeShort TradeType = "SHORT"
)

// TradeStatus represents the trade lifecycle status.
// Transitions are linear: OPEN -> FILLED -> CLOSED.
type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "OPEN"
	TradeStatusFilled TradeStatus = "FILLED"
	TradeStatusClosed TradeStatus = "CLOSED"
)

// CostBasis is the immutable creation-time record of a trade's entry.
// It is written exactly once when the trade is created and never patched
// afterwards; live math always uses EntryPrice/Amount instead.
type CostBasis struct {
	InitialEntryPrice float64 `gorm:"type:decimal(20,8);not null" json:"initial_entry_price"`
	InitialAmount     float64 `gorm:"type:decimal(20,8);not null" json:"initial_amount"`
}

// Trade represents a simulated LONG or SHORT position
type Trade struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	PortfolioID uint        `gorm:"index;not null" json:"portfolio_id"`
	Symbol      string      `gorm:"size:20;not null;index" json:"symbol"`
	Type        TradeType   `gorm:"size:10;not null" json:"type"`
	Status      TradeStatus `gorm:"size:10;not null;default:'OPEN'" json:"status"`

	EntryPrice     float64 `gorm:"type:decimal(20,8);not null" json:"entry_price"`
	DepositPercent float64 `gorm:"type:decimal(10,4)" json:"deposit_percent"`
	EntryFee       float64 `gorm:"type:decimal(10,4)" json:"entry_fee"`
	// SumPlusFee is the gross USD amount of the entry leg: cost including
	// entry fee for a LONG, sale proceeds before fee deduction for a SHORT.
	SumPlusFee float64 `gorm:"type:decimal(20,8);not null" json:"sum_plus_fee"`
	// Amount is the coin quantity currently held (LONG) or owed (SHORT)
	Amount float64 `gorm:"type:decimal(20,8);not null" json:"amount"`

	CostBasis `gorm:"embedded"`

	ExitPrice *float64 `gorm:"type:decimal(20,8)" json:"exit_price,omitempty"`
	ExitFee   *float64 `gorm:"type:decimal(10,4)" json:"exit_fee,omitempty"`

	// Partial-close bookkeeping. Both are lazily initialized from Amount on
	// the first partial close; RemainingAmount only ever decreases.
	OriginalAmount  *float64 `gorm:"type:decimal(20,8)" json:"original_amount,omitempty"`
	RemainingAmount *float64 `gorm:"type:decimal(20,8)" json:"remaining_amount,omitempty"`

	IsPartialClose bool  `gorm:"default:false" json:"is_partial_close"`
	ParentTradeID  *uint `gorm:"index" json:"parent_trade_id,omitempty"`

	IsSplit          bool    `gorm:"default:false" json:"is_split"`
	SplitFromTradeID *uint   `gorm:"index" json:"split_from_trade_id,omitempty"`
	SplitGroupID     *string `gorm:"size:36;index" json:"split_group_id,omitempty"`

	OpenDate   time.Time  `gorm:"not null" json:"open_date"`
	FilledDate *time.Time `json:"filled_date,omitempty"`
	CloseDate  *time.Time `gorm:"index" json:"close_date,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Portfolio Portfolio `gorm:"foreignKey:PortfolioID" json:"-"`
}

// TableName specifies the table name for Trade model
func (Trade) TableName() string {
	return "trades"
}

// CurrentRemaining returns the amount still open for partial closes
func (t *Trade) CurrentRemaining() float64 {
	if t.RemainingAmount != nil {
		return *t.RemainingAmount
	}
	return t.Amount
}

// CurrentOriginal returns the total amount partial closes divide against
func (t *Trade) CurrentOriginal() float64 {
	if t.OriginalAmount != nil {
		return *t.OriginalAmount
	}
	return t.Amount
}

// IsDerivedShort returns true for a SHORT borrowed from a parent LONG
func (t *Trade) IsDerivedShort() bool {
	return t.Type == TradeTypeShort && t.ParentTradeID != nil
}

// IsPartiallyClosed returns true once at least one slice has been carved off
func (t *Trade) IsPartiallyClosed() bool {
	return t.OriginalAmount != nil && t.RemainingAmount != nil &&
		*t.RemainingAmount < *t.OriginalAmount
}
