package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/coinfolio/internal/fees"
	"github.com/coinfolio/internal/models"
	"github.com/coinfolio/internal/profit"
	"github.com/coinfolio/internal/repository"
	"github.com/redis/go-redis/v9"
)

const (
	statsCacheTTL    = 30 * time.Second
	statsCacheKeyFmt = "coinfolio:stats:%d"
	feeVolumeWindow  = 30 * 24 * time.Hour
)

// PriceSource supplies the latest known market price for a coin symbol
type PriceSource interface {
	LatestPrice(symbol string) (float64, bool)
}

// TradeProfit is the per-position profit line used in rankings
type TradeProfit struct {
	TradeID       uint             `json:"trade_id"`
	Symbol        string           `json:"symbol"`
	Type          models.TradeType `json:"type"`
	ProfitUSD     *float64         `json:"profit_usd,omitempty"`
	ProfitPercent *float64         `json:"profit_percent,omitempty"`
	ProfitCoins   *float64         `json:"profit_coins,omitempty"`
	CloseDate     *time.Time       `json:"close_date,omitempty"`
}

// CoinStats is the per-coin rollup
type CoinStats struct {
	Symbol         string  `json:"symbol"`
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	WinRate        float64 `json:"win_rate"`
	TotalProfitUSD float64 `json:"total_profit_usd"`
	AvgProfitUSD   float64 `json:"avg_profit_usd"`
}

// CumulativePoint is one point of the cumulative profit curve
type CumulativePoint struct {
	Date      time.Time `json:"date"`
	ProfitUSD float64   `json:"profit_usd"`
}

// PortfolioStats is the aggregated view over a portfolio's ledger
type PortfolioStats struct {
	TotalTrades  int `json:"total_trades"`
	OpenCount    int `json:"open_count"`
	FilledCount  int `json:"filled_count"`
	ClosedCount  int `json:"closed_count"`
	ClosedLongs  int `json:"closed_longs"`
	ClosedShorts int `json:"closed_shorts"`

	TotalProfitUSD   float64      `json:"total_profit_usd"`
	TotalProfitCoins float64      `json:"total_profit_coins"`
	AvgProfitPercent float64      `json:"avg_profit_percent"`
	TotalFeesUSD     float64      `json:"total_fees_usd"`
	WinRate          float64      `json:"win_rate"`
	ROI              float64      `json:"roi"`
	UnrealizedUSD    *float64     `json:"unrealized_usd,omitempty"`
	BestTrade        *TradeProfit `json:"best_trade,omitempty"`
	WorstTrade       *TradeProfit `json:"worst_trade,omitempty"`

	PerCoin    []CoinStats       `json:"per_coin"`
	TopWinners []TradeProfit     `json:"top_winners"`
	TopLosers  []TradeProfit     `json:"top_losers"`
	Cumulative []CumulativePoint `json:"cumulative"`

	GeneratedAt time.Time `json:"generated_at"`
}

// FeeLevelResult pairs the trailing volume with its fee tier
type FeeLevelResult struct {
	VolumeUSD float64    `json:"volume_usd"`
	Level     fees.Level `json:"level"`
}

// StatsService derives portfolio statistics from the ledger. Derivation is
// pure; the service only adds ownership checks and a short-lived redis
// cache warmed by the snapshot worker.
type StatsService struct {
	store  repository.LedgerStore
	redis  *redis.Client
	prices PriceSource
}

// NewStatsService creates a new StatsService. redis and prices may be nil.
func NewStatsService(store repository.LedgerStore, rdb *redis.Client, prices PriceSource) *StatsService {
	return &StatsService{store: store, redis: rdb, prices: prices}
}

// GetPortfolioStats returns statistics for a portfolio owned by the user,
// served from cache when fresh
func (s *StatsService) GetPortfolioStats(ctx context.Context, userID, portfolioID uint) (*PortfolioStats, error) {
	if _, err := loadOwnedPortfolio(s.store, portfolioID, userID); err != nil {
		return nil, err
	}

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, fmt.Sprintf(statsCacheKeyFmt, portfolioID)).Bytes(); err == nil {
			var stats PortfolioStats
			if json.Unmarshal(cached, &stats) == nil {
				return &stats, nil
			}
		}
	}

	return s.RefreshPortfolio(ctx, portfolioID)
}

// RefreshPortfolio recomputes statistics and rewrites the cache entry.
// No ownership check: also called by the snapshot worker.
func (s *StatsService) RefreshPortfolio(ctx context.Context, portfolioID uint) (*PortfolioStats, error) {
	trades, err := s.store.GetTradesByPortfolioID(portfolioID)
	if err != nil {
		return nil, err
	}

	stats := ComputeStats(trades, s.prices)

	if s.redis != nil {
		if data, err := json.Marshal(stats); err == nil {
			s.redis.Set(ctx, fmt.Sprintf(statsCacheKeyFmt, portfolioID), data, statsCacheTTL)
		}
	}
	return stats, nil
}

// FeeLevel returns the fee tier earned by the portfolio's trailing 30-day
// entry volume
func (s *StatsService) FeeLevel(ctx context.Context, userID, portfolioID uint) (*FeeLevelResult, error) {
	if _, err := loadOwnedPortfolio(s.store, portfolioID, userID); err != nil {
		return nil, err
	}
	volume, err := s.store.FilledVolumeSince(portfolioID, time.Now().Add(-feeVolumeWindow))
	if err != nil {
		return nil, err
	}
	return &FeeLevelResult{VolumeUSD: volume, Level: fees.Lookup(volume)}, nil
}

// closedProfit computes the profit line of one closed trade. For a LONG
// that went through partial closes, only the remaining share of the gross
// cost belongs to this record; the slices already carry the rest.
func closedProfit(t *models.Trade) TradeProfit {
	tp := TradeProfit{TradeID: t.ID, Symbol: t.Symbol, Type: t.Type, CloseDate: t.CloseDate}

	switch t.Type {
	case models.TradeTypeLong:
		amount := t.Amount
		sum := t.SumPlusFee
		if t.IsPartiallyClosed() {
			amount = *t.RemainingAmount
			sum = profit.ProportionalSumPlusFee(t.SumPlusFee, *t.RemainingAmount, *t.OriginalAmount)
		}
		tp.ProfitUSD = profit.LongProfitUSD(amount, sum, t.ExitPrice, t.ExitFee)
		tp.ProfitPercent = profit.LongProfitPercent(t.EntryPrice, t.ExitPrice, t.EntryFee, t.ExitFee)
	case models.TradeTypeShort:
		net := profit.NetShortProceeds(t.SumPlusFee, t.EntryFee)
		tp.ProfitCoins = profit.ShortProfitCoins(t.Amount, net, t.ExitPrice, t.ExitFee)
		if tp.ProfitCoins != nil {
			tp.ProfitPercent = profit.ShortProfitPercent(t.Amount, t.Amount+*tp.ProfitCoins)
		}
	}
	return tp
}

// tradeFees returns the USD fees paid on a trade: the entry fee always,
// the exit fee only once an exit price is recorded
func tradeFees(t *models.Trade) float64 {
	var total float64
	if t.Type == models.TradeTypeShort {
		total += t.SumPlusFee * t.EntryFee / 100
	} else {
		total += t.EntryPrice * t.Amount * t.EntryFee / 100
	}
	if t.ExitPrice != nil {
		exitFee := 0.0
		if t.ExitFee != nil {
			exitFee = *t.ExitFee
		}
		if t.Type == models.TradeTypeShort {
			// The buy-back spends the net proceeds; the fee share of that
			// spend is fee/(100+fee).
			net := profit.NetShortProceeds(t.SumPlusFee, t.EntryFee)
			total += net * exitFee / (100 + exitFee)
		} else {
			total += *t.ExitPrice * t.Amount * exitFee / 100
		}
	}
	return total
}

// ComputeStats derives portfolio statistics from a trade list. It never
// mutates the trades.
func ComputeStats(trades []models.Trade, prices PriceSource) *PortfolioStats {
	stats := &PortfolioStats{
		TotalTrades: len(trades),
		GeneratedAt: time.Now(),
	}

	var (
		profits       []TradeProfit
		wins          int
		scored        int
		pctSum        float64
		pctCount      int
		closedLongSum float64
		unrealized    float64
		priced        bool
	)
	perCoin := make(map[string]*CoinStats)

	for i := range trades {
		t := &trades[i]
		stats.TotalFeesUSD += tradeFees(t)

		switch t.Status {
		case models.TradeStatusOpen:
			stats.OpenCount++
		case models.TradeStatusFilled:
			stats.FilledCount++
		case models.TradeStatusClosed:
			stats.ClosedCount++
		}

		if t.Status != models.TradeStatusClosed {
			// Open LONG exposure priced from the live feed, when known.
			if prices != nil && t.Type == models.TradeTypeLong {
				if price, ok := prices.LatestPrice(t.Symbol); ok {
					amount := t.CurrentRemaining()
					sum := profit.ProportionalSumPlusFee(t.SumPlusFee, amount, t.CurrentOriginal())
					unrealized += amount*price - sum
					priced = true
				}
			}
			continue
		}

		if t.Type == models.TradeTypeLong {
			stats.ClosedLongs++
		} else {
			stats.ClosedShorts++
		}

		tp := closedProfit(t)
		profits = append(profits, tp)

		if tp.ProfitPercent != nil {
			pctSum += *tp.ProfitPercent
			pctCount++
		}

		coin := perCoin[t.Symbol]
		if coin == nil {
			coin = &CoinStats{Symbol: t.Symbol}
			perCoin[t.Symbol] = coin
		}

		switch t.Type {
		case models.TradeTypeLong:
			if tp.ProfitUSD != nil {
				stats.TotalProfitUSD += *tp.ProfitUSD
				closedLongSum += profitDenominator(t)
				coin.Trades++
				coin.TotalProfitUSD += *tp.ProfitUSD
				scored++
				if *tp.ProfitUSD > 0 {
					wins++
					coin.Wins++
				}
			}
		case models.TradeTypeShort:
			if tp.ProfitCoins != nil {
				stats.TotalProfitCoins += *tp.ProfitCoins
				coin.Trades++
				scored++
				if *tp.ProfitCoins > 0 {
					wins++
					coin.Wins++
				}
			}
		}
	}

	if pctCount > 0 {
		stats.AvgProfitPercent = pctSum / float64(pctCount)
	}
	if scored > 0 {
		stats.WinRate = float64(wins) / float64(scored) * 100
	}
	if closedLongSum > 0 {
		stats.ROI = stats.TotalProfitUSD / closedLongSum
	}
	if priced {
		stats.UnrealizedUSD = &unrealized
	}

	// Rankings consider only trades with a USD profit figure.
	usd := make([]TradeProfit, 0, len(profits))
	for _, p := range profits {
		if p.ProfitUSD != nil {
			usd = append(usd, p)
		}
	}
	sort.SliceStable(usd, func(i, j int) bool {
		return *usd[i].ProfitUSD > *usd[j].ProfitUSD
	})
	if len(usd) > 0 {
		best := usd[0]
		worst := usd[len(usd)-1]
		stats.BestTrade = &best
		stats.WorstTrade = &worst
	}
	stats.TopWinners = topSlice(usd, 5, true)
	stats.TopLosers = topSlice(usd, 5, false)

	for _, coin := range perCoin {
		if coin.Trades > 0 {
			coin.WinRate = float64(coin.Wins) / float64(coin.Trades) * 100
			coin.AvgProfitUSD = coin.TotalProfitUSD / float64(coin.Trades)
		}
		stats.PerCoin = append(stats.PerCoin, *coin)
	}
	sort.Slice(stats.PerCoin, func(i, j int) bool {
		return stats.PerCoin[i].Symbol < stats.PerCoin[j].Symbol
	})

	// Cumulative profit curve over closed trades, oldest first.
	curve := make([]TradeProfit, 0, len(usd))
	for _, p := range usd {
		if p.CloseDate != nil {
			curve = append(curve, p)
		}
	}
	sort.SliceStable(curve, func(i, j int) bool {
		return curve[i].CloseDate.Before(*curve[j].CloseDate)
	})
	var running float64
	for _, p := range curve {
		running += *p.ProfitUSD
		stats.Cumulative = append(stats.Cumulative, CumulativePoint{
			Date:      *p.CloseDate,
			ProfitUSD: running,
		})
	}

	return stats
}

// profitDenominator is the gross cost a closed LONG contributes to the ROI
// denominator, respecting the proportional rule for partially closed parents
func profitDenominator(t *models.Trade) float64 {
	if t.IsPartiallyClosed() {
		return profit.ProportionalSumPlusFee(t.SumPlusFee, *t.RemainingAmount, *t.OriginalAmount)
	}
	return t.SumPlusFee
}

// topSlice returns up to n entries from a descending-sorted profit list
func topSlice(sorted []TradeProfit, n int, winners bool) []TradeProfit {
	out := make([]TradeProfit, 0, n)
	if winners {
		for _, p := range sorted {
			if len(out) == n || *p.ProfitUSD <= 0 {
				break
			}
			out = append(out, p)
		}
		return out
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		if len(out) == n || *sorted[i].ProfitUSD >= 0 {
			break
		}
		out = append(out, sorted[i])
	}
	return out
}
