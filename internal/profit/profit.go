// Package profit holds the pure profit/loss arithmetic for LONG and SHORT
// trades. All functions are side-effect free and operate on snapshot values;
// functions taking a pointer exit price return nil when it is unset, so
// "not yet closed" stays distinguishable from "break-even".
package profit

import "math"

// Epsilon is the threshold below which a coin amount counts as zero.
// Inherited from the original ledger's remaining-amount arithmetic.
const Epsilon = 1e-8

// Round8 rounds a coin amount to 8 decimal places to avoid float drift
// across repeated partial closes.
func Round8(x float64) float64 {
	return math.Round(x*1e8) / 1e8
}

// LongProfitUSD returns the realized USD profit of a LONG position.
// sumPlusFee is the gross entry cost including the entry fee. Losses are
// negative; nothing is clamped.
func LongProfitUSD(amount, sumPlusFee float64, exitPrice, exitFee *float64) *float64 {
	if exitPrice == nil {
		return nil
	}
	fee := 0.0
	if exitFee != nil {
		fee = *exitFee
	}
	v := amount**exitPrice*(100-fee)/100 - sumPlusFee
	return &v
}

// LongProfitPercent returns the percent profit of a LONG position net of
// both fee legs.
func LongProfitPercent(entryPrice float64, exitPrice *float64, entryFee float64, exitFee *float64) *float64 {
	if exitPrice == nil || entryPrice == 0 {
		return nil
	}
	fee := 0.0
	if exitFee != nil {
		fee = *exitFee
	}
	v := (*exitPrice/entryPrice-1)*100 - entryFee - fee
	return &v
}

// NetShortProceeds returns the USD actually received from a SHORT sale.
// sumPlusFee for a SHORT is the gross proceeds before the sale fee, so the
// entry fee is deducted here.
func NetShortProceeds(sumPlusFee, entryFee float64) float64 {
	return sumPlusFee * (100 - entryFee) / 100
}

// CoinsBoughtBack returns how many coins the net proceeds repurchase at the
// buy-back price, fee included in the effective price.
func CoinsBoughtBack(netProceedsUSD, buyBackPrice, buyBackFee float64) float64 {
	priceWithFee := buyBackPrice * (100 + buyBackFee) / 100
	if priceWithFee == 0 {
		return 0
	}
	return netProceedsUSD / priceWithFee
}

// ShortProfitCoins returns the coin-denominated profit of a SHORT position:
// coins bought back minus coins sold.
func ShortProfitCoins(soldAmount, netProceedsUSD float64, buyBackPrice, buyBackFee *float64) *float64 {
	if buyBackPrice == nil {
		return nil
	}
	fee := 0.0
	if buyBackFee != nil {
		fee = *buyBackFee
	}
	v := CoinsBoughtBack(netProceedsUSD, *buyBackPrice, fee) - soldAmount
	return &v
}

// ShortProfitPercent returns the percent gain in coin terms of a SHORT
func ShortProfitPercent(soldAmount, coinsBoughtBack float64) *float64 {
	if soldAmount == 0 {
		return nil
	}
	v := (coinsBoughtBack/soldAmount - 1) * 100
	return &v
}

// RecalculateLongEntryPrice returns the effective entry price of a LONG
// after bought-back coins from a settled SHORT are merged into it.
func RecalculateLongEntryPrice(totalSumPlusFee, newTotalAmount float64) float64 {
	if newTotalAmount == 0 {
		return 0
	}
	return totalSumPlusFee / newTotalAmount
}

// ProportionalSumPlusFee returns the share of a partially closed parent's
// gross cost attributable to its remaining amount. Using the full original
// cost instead would double-count cost already carried by earlier slices.
func ProportionalSumPlusFee(sumPlusFee, remainingAmount, originalAmount float64) float64 {
	if originalAmount == 0 {
		return sumPlusFee
	}
	return sumPlusFee * (remainingAmount / originalAmount)
}
