package service

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/coinfolio/internal/models"
	"github.com/coinfolio/internal/profit"
	"github.com/coinfolio/internal/repository"
	"github.com/google/uuid"
)

// LedgerService is the position-accounting state machine. It owns every
// mutation of Trade records: creation of LONGs and SHORTs, sparse field
// updates, SHORT settlement against a parent LONG, partial closes, splits
// and deletion. Multi-entity mutations run inside a single transaction
// with the parent row locked.
type LedgerService struct {
	store repository.LedgerStore
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(store repository.LedgerStore) *LedgerService {
	return &LedgerService{store: store}
}

// CreateLongRequest represents a request to record a LONG position
type CreateLongRequest struct {
	PortfolioID    uint       `json:"portfolio_id"`
	Symbol         string     `json:"symbol" binding:"required"`
	EntryPrice     float64    `json:"entry_price" binding:"required"`
	DepositPercent float64    `json:"deposit_percent"`
	EntryFee       float64    `json:"entry_fee"`
	Amount         float64    `json:"amount" binding:"required"`
	SumPlusFee     float64    `json:"sum_plus_fee" binding:"required"`
	OpenDate       *time.Time `json:"open_date"`
}

// CreateShortRequest represents a request to record a SHORT position.
// With ParentTradeID the coins are borrowed from an open LONG; without it
// they are drawn from the portfolio's free initial-coin balance.
type CreateShortRequest struct {
	PortfolioID    uint       `json:"portfolio_id"`
	Symbol         string     `json:"symbol" binding:"required"`
	SalePrice      float64    `json:"sale_price" binding:"required"`
	DepositPercent float64    `json:"deposit_percent"`
	Fee            float64    `json:"fee"`
	Amount         float64    `json:"amount" binding:"required"`
	SumPlusFee     float64    `json:"sum_plus_fee" binding:"required"`
	OpenDate       *time.Time `json:"open_date"`
	ParentTradeID  *uint      `json:"parent_trade_id"`
}

// OptionalFloat distinguishes "field absent" from "field explicitly null"
// in a sparse JSON patch
type OptionalFloat struct {
	Set   bool
	Value *float64
}

// UnmarshalJSON implements tri-state decoding for OptionalFloat
func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON keeps OptionalFloat symmetric for logging and tests
func (o OptionalFloat) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// TradeUpdate is a sparse patch applied by UpdateFields. Cost-basis fields
// have no entry here on purpose: they are not patchable.
type TradeUpdate struct {
	EntryPrice     *float64            `json:"entry_price"`
	DepositPercent *float64            `json:"deposit_percent"`
	EntryFee       *float64            `json:"entry_fee"`
	OpenDate       *time.Time          `json:"open_date"`
	ExitPrice      OptionalFloat       `json:"exit_price"`
	ExitFee        *float64            `json:"exit_fee"`
	Status         *models.TradeStatus `json:"status"`
	CloseDate      *time.Time          `json:"close_date"`
}

func (u *TradeUpdate) touchesEntryFields() bool {
	return u.EntryPrice != nil || u.DepositPercent != nil ||
		u.EntryFee != nil || u.OpenDate != nil
}

// PartialCloseRequest closes a portion of a FILLED position
type PartialCloseRequest struct {
	Amount    float64    `json:"amount" binding:"required"`
	ExitPrice float64    `json:"exit_price" binding:"required"`
	ExitFee   float64    `json:"exit_fee"`
	CloseDate *time.Time `json:"close_date"`
}

// PartialCloseResult carries the updated parent and the closed slice
type PartialCloseResult struct {
	Parent *models.Trade `json:"parent"`
	Slice  *models.Trade `json:"slice"`
}

// SplitResult carries the retired parent and its independent children
type SplitResult struct {
	Parent   *models.Trade  `json:"parent"`
	Children []models.Trade `json:"children"`
}

// loadOwnedPortfolio loads a portfolio and verifies ownership
func loadOwnedPortfolio(store repository.LedgerStore, portfolioID, userID uint) (*models.Portfolio, error) {
	portfolio, err := store.GetPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}
	if portfolio.UserID != userID {
		return nil, ErrForbidden
	}
	return portfolio, nil
}

func validateEntryNumbers(price, amount, sumPlusFee, fee, depositPercent float64) error {
	if price <= 0 {
		return validationErr("entry_price", "must be greater than zero")
	}
	if amount <= 0 {
		return validationErr("amount", "must be greater than zero")
	}
	if sumPlusFee <= 0 {
		return validationErr("sum_plus_fee", "must be greater than zero")
	}
	if fee < 0 {
		return validationErr("entry_fee", "must not be negative")
	}
	if depositPercent < 0 || depositPercent > 100 {
		return validationErr("deposit_percent", "must be between 0 and 100")
	}
	return nil
}

// CreateLong records a new OPEN LONG position. The creation-time entry
// price and amount become the trade's immutable cost basis.
func (s *LedgerService) CreateLong(userID uint, req *CreateLongRequest) (*models.Trade, error) {
	portfolio, err := loadOwnedPortfolio(s.store, req.PortfolioID, userID)
	if err != nil {
		return nil, err
	}
	if !portfolio.HasSymbol(req.Symbol) {
		return nil, validationErr("symbol", "not part of the portfolio allocation")
	}
	if err := validateEntryNumbers(req.EntryPrice, req.Amount, req.SumPlusFee, req.EntryFee, req.DepositPercent); err != nil {
		return nil, err
	}

	openDate := time.Now()
	if req.OpenDate != nil {
		openDate = *req.OpenDate
	}

	trade := &models.Trade{
		PortfolioID:    portfolio.ID,
		Symbol:         req.Symbol,
		Type:           models.TradeTypeLong,
		Status:         models.TradeStatusOpen,
		EntryPrice:     req.EntryPrice,
		DepositPercent: req.DepositPercent,
		EntryFee:       req.EntryFee,
		SumPlusFee:     req.SumPlusFee,
		Amount:         req.Amount,
		CostBasis: models.CostBasis{
			InitialEntryPrice: req.EntryPrice,
			InitialAmount:     req.Amount,
		},
		OpenDate: openDate,
	}

	if err := s.store.CreateTrade(trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// CreateShort records a new OPEN SHORT position, borrowing the sold coins
// either from a parent LONG (which keeps the original cost-basis chain) or
// from the portfolio's initial-coin balance.
func (s *LedgerService) CreateShort(userID uint, req *CreateShortRequest) (*models.Trade, error) {
	var created *models.Trade
	err := s.store.Atomic(func(tx repository.LedgerStore) error {
		portfolio, err := loadOwnedPortfolio(tx, req.PortfolioID, userID)
		if err != nil {
			return err
		}
		if !portfolio.HasSymbol(req.Symbol) {
			return validationErr("symbol", "not part of the portfolio allocation")
		}
		if err := validateEntryNumbers(req.SalePrice, req.Amount, req.SumPlusFee, req.Fee, req.DepositPercent); err != nil {
			return err
		}

		basis := models.CostBasis{
			InitialEntryPrice: req.SalePrice,
			InitialAmount:     req.Amount,
		}

		if req.ParentTradeID != nil {
			parent, err := tx.GetTradeForUpdate(*req.ParentTradeID)
			if err != nil {
				return err
			}
			if parent.PortfolioID != portfolio.ID {
				return stateErr("create short", "parent trade belongs to another portfolio")
			}
			if parent.Type != models.TradeTypeLong {
				return stateErr("create short", "parent trade is not a LONG")
			}
			if parent.Status != models.TradeStatusOpen && parent.Status != models.TradeStatusFilled {
				return stateErr("create short", "parent trade is already closed")
			}
			if req.Amount > parent.Amount {
				return ErrInsufficientBalance
			}
			// The borrowed coins keep the parent's cost-basis chain.
			basis = parent.CostBasis
			parent.Amount -= req.Amount
			if err := tx.SaveTrade(parent); err != nil {
				return err
			}
		} else {
			coin := portfolio.InitialCoinFor(req.Symbol)
			if coin == nil || req.Amount > coin.Amount {
				return ErrInsufficientBalance
			}
			coin.Amount = profit.Round8(coin.Amount - req.Amount)
			if coin.Amount <= 0 {
				if err := tx.DeleteInitialCoin(coin.ID); err != nil {
					return err
				}
			} else {
				if err := tx.SaveInitialCoin(coin); err != nil {
					return err
				}
			}
		}

		openDate := time.Now()
		if req.OpenDate != nil {
			openDate = *req.OpenDate
		}
		exitFee := req.Fee

		trade := &models.Trade{
			PortfolioID:    portfolio.ID,
			Symbol:         req.Symbol,
			Type:           models.TradeTypeShort,
			Status:         models.TradeStatusOpen,
			EntryPrice:     req.SalePrice,
			DepositPercent: req.DepositPercent,
			EntryFee:       req.Fee,
			SumPlusFee:     req.SumPlusFee,
			Amount:         req.Amount,
			CostBasis:      basis,
			ExitFee:        &exitFee,
			ParentTradeID:  req.ParentTradeID,
			OpenDate:       openDate,
		}
		if err := tx.CreateTrade(trade); err != nil {
			return err
		}
		created = trade
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateFields applies a sparse patch to a trade. Entry-side edits are
// rejected once the trade is CLOSED. A status transition to CLOSED stamps
// the close date and, for a SHORT with a live parent, settles the buy-back
// into the parent LONG within the same transaction.
func (s *LedgerService) UpdateFields(userID, tradeID uint, patch *TradeUpdate) (*models.Trade, error) {
	var updated *models.Trade
	err := s.store.Atomic(func(tx repository.LedgerStore) error {
		trade, err := tx.GetTradeForUpdate(tradeID)
		if err != nil {
			return err
		}
		if _, err := loadOwnedPortfolio(tx, trade.PortfolioID, userID); err != nil {
			return err
		}

		if patch.touchesEntryFields() && trade.Status == models.TradeStatusClosed {
			return stateErr("update trade", "entry fields cannot change on a closed trade")
		}
		if patch.EntryPrice != nil {
			if *patch.EntryPrice <= 0 {
				return validationErr("entry_price", "must be greater than zero")
			}
			trade.EntryPrice = *patch.EntryPrice
		}
		if patch.DepositPercent != nil {
			if *patch.DepositPercent < 0 || *patch.DepositPercent > 100 {
				return validationErr("deposit_percent", "must be between 0 and 100")
			}
			trade.DepositPercent = *patch.DepositPercent
		}
		if patch.EntryFee != nil {
			if *patch.EntryFee < 0 {
				return validationErr("entry_fee", "must not be negative")
			}
			trade.EntryFee = *patch.EntryFee
		}
		if patch.OpenDate != nil {
			trade.OpenDate = *patch.OpenDate
		}

		if patch.ExitPrice.Set {
			if patch.ExitPrice.Value == nil {
				// Clearing the exit price also resets the exit fee to the
				// symmetric default.
				trade.ExitPrice = nil
				fee := trade.EntryFee
				trade.ExitFee = &fee
			} else {
				if *patch.ExitPrice.Value <= 0 {
					return validationErr("exit_price", "must be greater than zero")
				}
				v := *patch.ExitPrice.Value
				trade.ExitPrice = &v
			}
		}
		if patch.ExitFee != nil {
			if *patch.ExitFee < 0 {
				return validationErr("exit_fee", "must not be negative")
			}
			v := *patch.ExitFee
			trade.ExitFee = &v
		}
		if patch.CloseDate != nil {
			trade.CloseDate = patch.CloseDate
		}

		if patch.Status != nil && *patch.Status != trade.Status {
			if err := s.applyStatusTransition(tx, trade, *patch.Status, patch.CloseDate); err != nil {
				return err
			}
		}

		if err := tx.SaveTrade(trade); err != nil {
			return err
		}
		updated = trade
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *LedgerService) applyStatusTransition(tx repository.LedgerStore, trade *models.Trade, next models.TradeStatus, closeDate *time.Time) error {
	switch next {
	case models.TradeStatusFilled:
		if trade.Status != models.TradeStatusOpen {
			return stateErr("update trade", "only an open trade can become filled")
		}
		trade.Status = models.TradeStatusFilled
		if trade.FilledDate == nil {
			now := time.Now()
			trade.FilledDate = &now
		}
	case models.TradeStatusClosed:
		if trade.Type == models.TradeTypeShort && trade.ParentTradeID != nil {
			if err := s.settleShort(tx, trade); err != nil {
				return err
			}
		}
		trade.Status = models.TradeStatusClosed
		if trade.CloseDate == nil {
			stamp := time.Now()
			if closeDate != nil {
				stamp = *closeDate
			}
			trade.CloseDate = &stamp
		}
	case models.TradeStatusOpen:
		return stateErr("update trade", "status cannot move backwards to open")
	default:
		return validationErr("status", "unknown status")
	}
	return nil
}

// settleShort merges the coins bought back by a closing SHORT into its
// parent LONG and recomputes the parent's effective entry price. The
// parent's cost basis is never touched.
func (s *LedgerService) settleShort(tx repository.LedgerStore, trade *models.Trade) error {
	if trade.ExitPrice == nil {
		return validationErr("exit_price", "cannot close short without exit price")
	}
	parent, err := tx.GetTradeForUpdate(*trade.ParentTradeID)
	if err != nil {
		return err
	}
	if parent.Type != models.TradeTypeLong {
		return nil
	}

	exitFee := trade.EntryFee
	if trade.ExitFee != nil {
		exitFee = *trade.ExitFee
	}
	net := profit.NetShortProceeds(trade.SumPlusFee, trade.EntryFee)
	coins := profit.CoinsBoughtBack(net, *trade.ExitPrice, exitFee)

	parent.Amount += coins
	parent.EntryPrice = profit.RecalculateLongEntryPrice(parent.SumPlusFee, parent.Amount)

	return tx.SaveTrade(parent)
}

// PartialClose carves a CLOSED slice off a FILLED position. The slice
// carries the proportional share of the original gross cost; the parent's
// remaining amount shrinks and the parent auto-closes when exhausted.
func (s *LedgerService) PartialClose(userID, tradeID uint, req *PartialCloseRequest) (*PartialCloseResult, error) {
	var result *PartialCloseResult
	err := s.store.Atomic(func(tx repository.LedgerStore) error {
		trade, err := tx.GetTradeForUpdate(tradeID)
		if err != nil {
			return err
		}
		if _, err := loadOwnedPortfolio(tx, trade.PortfolioID, userID); err != nil {
			return err
		}
		if trade.Status != models.TradeStatusFilled {
			return stateErr("partial close", "only a filled trade can be partially closed")
		}
		if req.ExitPrice <= 0 {
			return validationErr("exit_price", "must be greater than zero")
		}
		if req.ExitFee < 0 {
			return validationErr("exit_fee", "must not be negative")
		}

		// Records created before partial closes existed have neither
		// bookkeeping field; initialize both from the live amount.
		currentRemaining := trade.CurrentRemaining()
		currentOriginal := trade.CurrentOriginal()

		if req.Amount <= 0 {
			return validationErr("amount", "must be greater than zero")
		}
		if req.Amount > currentRemaining {
			return validationErr("amount", "exceeds the remaining amount")
		}

		closeDate := time.Now()
		if req.CloseDate != nil {
			closeDate = *req.CloseDate
		}

		// Proportion is always taken against the original total so that
		// repeated slices divide the original cost, not the shrinking rest.
		proportion := req.Amount / currentOriginal
		sliceSum := trade.SumPlusFee * proportion

		exitPrice := req.ExitPrice
		exitFee := req.ExitFee
		zero := 0.0
		sliceAmount := req.Amount

		slice := &models.Trade{
			PortfolioID:     trade.PortfolioID,
			Symbol:          trade.Symbol,
			Type:            trade.Type,
			Status:          models.TradeStatusClosed,
			EntryPrice:      trade.EntryPrice,
			DepositPercent:  trade.DepositPercent,
			EntryFee:        trade.EntryFee,
			SumPlusFee:      sliceSum,
			Amount:          req.Amount,
			CostBasis:       trade.CostBasis,
			ExitPrice:       &exitPrice,
			ExitFee:         &exitFee,
			OriginalAmount:  &sliceAmount,
			RemainingAmount: &zero,
			IsPartialClose:  true,
			ParentTradeID:   &trade.ID,
			OpenDate:        trade.OpenDate,
			FilledDate:      trade.FilledDate,
			CloseDate:       &closeDate,
		}
		if err := tx.CreateTrade(slice); err != nil {
			return err
		}

		newRemaining := profit.Round8(currentRemaining - req.Amount)
		if trade.OriginalAmount == nil {
			original := currentOriginal
			trade.OriginalAmount = &original
		}
		if newRemaining <= profit.Epsilon {
			newRemaining = 0
			trade.Status = models.TradeStatusClosed
			trade.CloseDate = &closeDate
		}
		trade.RemainingAmount = &newRemaining
		if err := tx.SaveTrade(trade); err != nil {
			return err
		}

		result = &PartialCloseResult{Parent: trade, Slice: slice}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Split divides a FILLED position into 2-5 independent FILLED positions
// with proportional cost and a fresh cost basis each. The original is
// retired as CLOSED. SHORTs borrowed from a parent LONG cannot be split:
// the parent linkage cannot be divided.
func (s *LedgerService) Split(userID, tradeID uint, amounts []float64) (*SplitResult, error) {
	var result *SplitResult
	err := s.store.Atomic(func(tx repository.LedgerStore) error {
		trade, err := tx.GetTradeForUpdate(tradeID)
		if err != nil {
			return err
		}
		if _, err := loadOwnedPortfolio(tx, trade.PortfolioID, userID); err != nil {
			return err
		}
		if trade.Status != models.TradeStatusFilled {
			return stateErr("split", "only a filled trade can be split")
		}
		if trade.IsDerivedShort() {
			return stateErr("split", "a short borrowed from a long cannot be split")
		}
		if len(amounts) < 2 || len(amounts) > 5 {
			return validationErr("amounts", "must contain between 2 and 5 parts")
		}

		var sum float64
		for _, a := range amounts {
			if a <= 0 {
				return validationErr("amounts", "every part must be greater than zero")
			}
			sum += a
		}
		if diff := sum - trade.Amount; diff > profit.Epsilon || diff < -profit.Epsilon {
			return validationErr("amounts", "parts must add up to the trade amount")
		}

		groupID := uuid.New().String()
		now := time.Now()
		children := make([]models.Trade, 0, len(amounts))

		for _, amount := range amounts {
			child := models.Trade{
				PortfolioID:    trade.PortfolioID,
				Symbol:         trade.Symbol,
				Type:           trade.Type,
				Status:         models.TradeStatusFilled,
				EntryPrice:     trade.EntryPrice,
				DepositPercent: trade.DepositPercent,
				EntryFee:       trade.EntryFee,
				SumPlusFee:     trade.SumPlusFee * (amount / trade.Amount),
				Amount:         amount,
				// Each child starts its own cost-basis history.
				CostBasis: models.CostBasis{
					InitialEntryPrice: trade.EntryPrice,
					InitialAmount:     amount,
				},
				SplitFromTradeID: &trade.ID,
				SplitGroupID:     &groupID,
				OpenDate:         trade.OpenDate,
				FilledDate:       trade.FilledDate,
			}
			if err := tx.CreateTrade(&child); err != nil {
				return err
			}
			children = append(children, child)
		}

		trade.IsSplit = true
		trade.Status = models.TradeStatusClosed
		trade.CloseDate = &now
		if err := tx.SaveTrade(trade); err != nil {
			return err
		}

		result = &SplitResult{Parent: trade, Children: children}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a trade. A live SHORT borrowed from a parent LONG first
// returns the borrowed coins to the parent; LONG deletion has no reversal
// because the coins were never borrowed from anywhere.
func (s *LedgerService) Delete(userID, tradeID uint) error {
	return s.store.Atomic(func(tx repository.LedgerStore) error {
		trade, err := tx.GetTradeForUpdate(tradeID)
		if err != nil {
			return err
		}
		if _, err := loadOwnedPortfolio(tx, trade.PortfolioID, userID); err != nil {
			return err
		}

		if trade.IsDerivedShort() && trade.Status != models.TradeStatusClosed {
			parent, err := tx.GetTradeForUpdate(*trade.ParentTradeID)
			if err == nil {
				parent.Amount += trade.Amount
				if err := tx.SaveTrade(parent); err != nil {
					return err
				}
			} else if !errors.Is(err, repository.ErrTradeNotFound) {
				return err
			}
		}

		return tx.DeleteTrade(trade.ID)
	})
}

// GetTrade returns a single trade after an ownership check
func (s *LedgerService) GetTrade(userID, tradeID uint) (*models.Trade, error) {
	trade, err := s.store.GetTrade(tradeID)
	if err != nil {
		return nil, err
	}
	if _, err := loadOwnedPortfolio(s.store, trade.PortfolioID, userID); err != nil {
		return nil, err
	}
	return trade, nil
}

// ListTrades returns all trades of a portfolio after an ownership check
func (s *LedgerService) ListTrades(userID, portfolioID uint) ([]models.Trade, error) {
	if _, err := loadOwnedPortfolio(s.store, portfolioID, userID); err != nil {
		return nil, err
	}
	return s.store.GetTradesByPortfolioID(portfolioID)
}
