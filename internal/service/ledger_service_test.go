package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/coinfolio/internal/models"
	"github.com/coinfolio/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory LedgerStore. Reads hand out copies so a
// mutation only sticks once the service calls Save, like the real store.
type fakeStore struct {
	portfolios  map[uint]*models.Portfolio
	trades      map[uint]*models.Trade
	nextTradeID uint
	nextCoinID  uint
}

var _ repository.LedgerStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		portfolios:  make(map[uint]*models.Portfolio),
		trades:      make(map[uint]*models.Trade),
		nextTradeID: 1,
		nextCoinID:  1,
	}
}

func (f *fakeStore) addPortfolio(p *models.Portfolio) {
	f.portfolios[p.ID] = p
	for i := range p.InitialCoins {
		if p.InitialCoins[i].ID == 0 {
			p.InitialCoins[i].ID = f.nextCoinID
			f.nextCoinID++
		}
	}
}

func (f *fakeStore) Atomic(fn func(repository.LedgerStore) error) error {
	return fn(f)
}

func (f *fakeStore) GetPortfolio(id uint) (*models.Portfolio, error) {
	p, ok := f.portfolios[id]
	if !ok {
		return nil, repository.ErrPortfolioNotFound
	}
	out := *p
	out.Allocations = append([]models.Allocation(nil), p.Allocations...)
	out.InitialCoins = append([]models.InitialCoin(nil), p.InitialCoins...)
	return &out, nil
}

func (f *fakeStore) CreateTrade(trade *models.Trade) error {
	trade.ID = f.nextTradeID
	f.nextTradeID++
	stored := *trade
	f.trades[trade.ID] = &stored
	return nil
}

func (f *fakeStore) GetTrade(id uint) (*models.Trade, error) {
	t, ok := f.trades[id]
	if !ok {
		return nil, repository.ErrTradeNotFound
	}
	out := *t
	return &out, nil
}

func (f *fakeStore) GetTradeForUpdate(id uint) (*models.Trade, error) {
	return f.GetTrade(id)
}

func (f *fakeStore) SaveTrade(trade *models.Trade) error {
	if _, ok := f.trades[trade.ID]; !ok {
		return repository.ErrTradeNotFound
	}
	stored := *trade
	f.trades[trade.ID] = &stored
	return nil
}

func (f *fakeStore) DeleteTrade(id uint) error {
	delete(f.trades, id)
	return nil
}

func (f *fakeStore) GetTradesByPortfolioID(portfolioID uint) ([]models.Trade, error) {
	var out []models.Trade
	for _, t := range f.trades {
		if t.PortfolioID == portfolioID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveInitialCoin(coin *models.InitialCoin) error {
	for _, p := range f.portfolios {
		for i := range p.InitialCoins {
			if p.InitialCoins[i].ID == coin.ID {
				p.InitialCoins[i] = *coin
				return nil
			}
		}
	}
	return repository.ErrInitialCoinNotFound
}

func (f *fakeStore) DeleteInitialCoin(id uint) error {
	for _, p := range f.portfolios {
		for i := range p.InitialCoins {
			if p.InitialCoins[i].ID == id {
				p.InitialCoins = append(p.InitialCoins[:i], p.InitialCoins[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrInitialCoinNotFound
}

func (f *fakeStore) FilledVolumeSince(portfolioID uint, since time.Time) (float64, error) {
	var sum float64
	for _, t := range f.trades {
		if t.PortfolioID == portfolioID && t.OpenDate.After(since) && t.Status != models.TradeStatusOpen {
			sum += t.SumPlusFee
		}
	}
	return sum, nil
}

const (
	ownerID    = uint(1)
	strangerID = uint(2)
)

func newTestLedger() (*LedgerService, *fakeStore) {
	store := newFakeStore()
	store.addPortfolio(&models.Portfolio{
		ID:     1,
		UserID: ownerID,
		Name:   "main",
		Allocations: []models.Allocation{
			{Symbol: "BTC", TargetPercent: 60},
			{Symbol: "ETH", TargetPercent: 40},
		},
		InitialCoins: []models.InitialCoin{
			{PortfolioID: 1, Symbol: "ETH", Amount: 0.10},
		},
	})
	return NewLedgerService(store), store
}

func createFilledLong(t *testing.T, svc *LedgerService, amount, sumPlusFee float64) *models.Trade {
	t.Helper()
	trade, err := svc.CreateLong(ownerID, &CreateLongRequest{
		PortfolioID: 1,
		Symbol:      "BTC",
		EntryPrice:  sumPlusFee / amount,
		EntryFee:    1,
		Amount:      amount,
		SumPlusFee:  sumPlusFee,
	})
	require.NoError(t, err)

	filled := models.TradeStatusFilled
	trade, err = svc.UpdateFields(ownerID, trade.ID, &TradeUpdate{Status: &filled})
	require.NoError(t, err)
	return trade
}

func TestCreateLongSetsCostBasis(t *testing.T) {
	svc, _ := newTestLedger()

	trade, err := svc.CreateLong(ownerID, &CreateLongRequest{
		PortfolioID: 1,
		Symbol:      "BTC",
		EntryPrice:  30000,
		EntryFee:    1,
		Amount:      0.01,
		SumPlusFee:  303,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TradeStatusOpen, trade.Status)
	assert.Equal(t, 30000.0, trade.InitialEntryPrice)
	assert.Equal(t, 0.01, trade.InitialAmount)
	assert.False(t, trade.OpenDate.IsZero())
	assert.Nil(t, trade.ExitPrice)
}

func TestCreateLongRejectsUnknownSymbol(t *testing.T) {
	svc, _ := newTestLedger()

	_, err := svc.CreateLong(ownerID, &CreateLongRequest{
		PortfolioID: 1,
		Symbol:      "DOGE",
		EntryPrice:  0.1,
		Amount:      100,
		SumPlusFee:  10,
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "symbol", vErr.Field)
}

func TestCreateLongRejectsForeignPortfolio(t *testing.T) {
	svc, _ := newTestLedger()

	_, err := svc.CreateLong(strangerID, &CreateLongRequest{
		PortfolioID: 1,
		Symbol:      "BTC",
		EntryPrice:  30000,
		Amount:      0.01,
		SumPlusFee:  303,
	})

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateLongValidatesNumbers(t *testing.T) {
	svc, _ := newTestLedger()

	_, err := svc.CreateLong(ownerID, &CreateLongRequest{
		PortfolioID: 1,
		Symbol:      "BTC",
		EntryPrice:  -5,
		Amount:      0.01,
		SumPlusFee:  303,
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "entry_price", vErr.Field)
}

func TestCreateShortFromParentLong(t *testing.T) {
	svc, store := newTestLedger()
	parent := createFilledLong(t, svc, 0.10, 1000)

	short, err := svc.CreateShort(ownerID, &CreateShortRequest{
		PortfolioID:   1,
		Symbol:        "BTC",
		SalePrice:     11000,
		Fee:           1,
		Amount:        0.02,
		SumPlusFee:    220,
		ParentTradeID: &parent.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TradeTypeShort, short.Type)
	assert.Equal(t, parent.ID, *short.ParentTradeID)
	// Borrowed coins keep the parent's cost-basis chain.
	assert.Equal(t, parent.InitialEntryPrice, short.InitialEntryPrice)
	assert.Equal(t, parent.InitialAmount, short.InitialAmount)
	require.NotNil(t, short.ExitFee)
	assert.Equal(t, 1.0, *short.ExitFee)

	reloaded, err := store.GetTrade(parent.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.08, reloaded.Amount, 1e-12)
}

func TestCreateShortExceedingParentBalance(t *testing.T) {
	svc, _ := newTestLedger()
	parent := createFilledLong(t, svc, 0.10, 1000)

	_, err := svc.CreateShort(ownerID, &CreateShortRequest{
		PortfolioID:   1,
		Symbol:        "BTC",
		SalePrice:     11000,
		Amount:        0.11,
		SumPlusFee:    1210,
		ParentTradeID: &parent.ID,
	})

	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCreateShortFromClosedParentRejected(t *testing.T) {
	svc, _ := newTestLedger()
	parent := createFilledLong(t, svc, 0.10, 1000)

	exit := 12000.0
	closed := models.TradeStatusClosed
	_, err := svc.UpdateFields(ownerID, parent.ID, &TradeUpdate{
		ExitPrice: OptionalFloat{Set: true, Value: &exit},
		Status:    &closed,
	})
	require.NoError(t, err)

	_, err = svc.CreateShort(ownerID, &CreateShortRequest{
		PortfolioID:   1,
		Symbol:        "BTC",
		SalePrice:     11000,
		Amount:        0.02,
		SumPlusFee:    220,
		ParentTradeID: &parent.ID,
	})

	var sErr *InvalidStateError
	assert.ErrorAs(t, err, &sErr)
}

func TestCreateShortFromInitialCoins(t *testing.T) {
	svc, store := newTestLedger()

	short, err := svc.CreateShort(ownerID, &CreateShortRequest{
		PortfolioID: 1,
		Symbol:      "ETH",
		SalePrice:   2000,
		Fee:         1,
		Amount:      0.04,
		SumPlusFee:  80,
	})
	require.NoError(t, err)
	assert.Nil(t, short.ParentTradeID)
	// Without a parent the sale itself is the cost basis.
	assert.Equal(t, 2000.0, short.InitialEntryPrice)

	p, err := store.GetPortfolio(1)
	require.NoError(t, err)
	coin := p.InitialCoinFor("ETH")
	require.NotNil(t, coin)
	assert.InDelta(t, 0.06, coin.Amount, 1e-12)
}

func TestCreateShortExhaustingInitialCoinsRemovesRow(t *testing.T) {
	svc, store := newTestLedger()

	_, err := svc.CreateShort(ownerID, &CreateShortRequest{
		PortfolioID: 1,
		Symbol:      "ETH",
		SalePrice:   2000,
		Amount:      0.10,
		SumPlusFee:  200,
	})
	require.NoError(t, err)

	p, err := store.GetPortfolio(1)
	require.NoError(t, err)
	assert.Nil(t, p.InitialCoinFor("ETH"))
}

func TestCreateShortInsufficientInitialCoins(t *testing.T) {
	svc, _ := newTestLedger()

	_, err := svc.CreateShort(ownerID, &CreateShortRequest{
		PortfolioID: 1,
		Symbol:      "ETH",
		SalePrice:   2000,
		Amount:      0.20,
		SumPlusFee:  400,
	})

	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestUpdateRejectsEntryEditOnClosedTrade(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	exit := 40000.0
	closed := models.TradeStatusClosed
	_, err := svc.UpdateFields(ownerID, trade.ID, &TradeUpdate{
		ExitPrice: OptionalFloat{Set: true, Value: &exit},
		Status:    &closed,
	})
	require.NoError(t, err)

	newEntry := 25000.0
	_, err = svc.UpdateFields(ownerID, trade.ID, &TradeUpdate{EntryPrice: &newEntry})

	var sErr *InvalidStateError
	assert.ErrorAs(t, err, &sErr)
}

func TestUpdateEntryPriceLeavesCostBasisAlone(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	newEntry := 25000.0
	updated, err := svc.UpdateFields(ownerID, trade.ID, &TradeUpdate{EntryPrice: &newEntry})
	require.NoError(t, err)

	assert.Equal(t, 25000.0, updated.EntryPrice)
	assert.Equal(t, trade.InitialEntryPrice, updated.InitialEntryPrice)
}

func TestUpdateClearingExitPriceResetsExitFee(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	exit := 40000.0
	exitFee := 0.5
	_, err := svc.UpdateFields(ownerID, trade.ID, &TradeUpdate{
		ExitPrice: OptionalFloat{Set: true, Value: &exit},
		ExitFee:   &exitFee,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateFields(ownerID, trade.ID, &TradeUpdate{
		ExitPrice: OptionalFloat{Set: true, Value: nil},
	})
	require.NoError(t, err)

	assert.Nil(t, updated.ExitPrice)
	require.NotNil(t, updated.ExitFee)
	assert.Equal(t, updated.EntryFee, *updated.ExitFee)
}

func TestStatusOpenToFilledStampsDate(t *testing.T) {
	svc, _ := newTestLedger()
	trade, err := svc.CreateLong(ownerID, &CreateLongRequest{
		PortfolioID: 1,
		Symbol:      "BTC",
		EntryPrice:  30000,
		Amount:      0.01,
		SumPlusFee:  300,
	})
	require.NoError(t, err)

	filled := models.TradeStatusFilled
	updated, err := svc.UpdateFields(ownerID, trade.ID, &TradeUpdate{Status: &filled})
	require.NoError(t, err)

	assert.Equal(t, models.TradeStatusFilled, updated.Status)
	assert.NotNil(t, updated.FilledDate)
}

func TestStatusCannotMoveBackwards(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	open := models.TradeStatusOpen
	_, err := svc.UpdateFields(ownerID, trade.ID, &TradeUpdate{Status: &open})

	var sErr *InvalidStateError
	assert.ErrorAs(t, err, &sErr)
}

func TestCloseShortSettlesIntoParent(t *testing.T) {
	svc, store := newTestLedger()
	parent := createFilledLong(t, svc, 0.10, 1000)

	short, err := svc.CreateShort(ownerID, &CreateShortRequest{
		PortfolioID:   1,
		Symbol:        "BTC",
		SalePrice:     11000,
		Fee:           1,
		Amount:        0.10,
		SumPlusFee:    1100,
		ParentTradeID: &parent.ID,
	})
	require.NoError(t, err)

	buyBack := 10000.0
	exitFee := 1.0
	closed := models.TradeStatusClosed
	_, err = svc.UpdateFields(ownerID, short.ID, &TradeUpdate{
		ExitPrice: OptionalFloat{Set: true, Value: &buyBack},
		ExitFee:   &exitFee,
		Status:    &closed,
	})
	require.NoError(t, err)

	// Net proceeds 1100*0.99 = 1089 buy back 1089/10100 coins.
	wantCoins := 1089.0 / 10100.0
	reloaded, err := store.GetTrade(parent.ID)
	require.NoError(t, err)
	assert.InDelta(t, wantCoins, reloaded.Amount, 1e-12)
	assert.InDelta(t, 1000.0/wantCoins, reloaded.EntryPrice, 1e-9)
	// Cost basis survives settlement untouched.
	assert.Equal(t, 10000.0, reloaded.InitialEntryPrice)
	assert.Equal(t, 0.10, reloaded.InitialAmount)
}

func TestCloseShortWithoutExitPriceFails(t *testing.T) {
	svc, _ := newTestLedger()
	parent := createFilledLong(t, svc, 0.10, 1000)

	short, err := svc.CreateShort(ownerID, &CreateShortRequest{
		PortfolioID:   1,
		Symbol:        "BTC",
		SalePrice:     11000,
		Amount:        0.05,
		SumPlusFee:    550,
		ParentTradeID: &parent.ID,
	})
	require.NoError(t, err)

	closed := models.TradeStatusClosed
	_, err = svc.UpdateFields(ownerID, short.ID, &TradeUpdate{Status: &closed})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "exit_price", vErr.Field)
}

func TestPartialClose(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	result, err := svc.PartialClose(ownerID, trade.ID, &PartialCloseRequest{
		Amount:    0.003,
		ExitPrice: 40000,
		ExitFee:   1,
	})
	require.NoError(t, err)

	slice := result.Slice
	assert.Equal(t, models.TradeStatusClosed, slice.Status)
	assert.True(t, slice.IsPartialClose)
	assert.Equal(t, trade.ID, *slice.ParentTradeID)
	assert.InDelta(t, 90.0, slice.SumPlusFee, 1e-9)
	assert.Equal(t, 0.003, slice.Amount)
	assert.Equal(t, trade.InitialEntryPrice, slice.InitialEntryPrice)

	parent := result.Parent
	assert.Equal(t, models.TradeStatusFilled, parent.Status)
	require.NotNil(t, parent.OriginalAmount)
	require.NotNil(t, parent.RemainingAmount)
	assert.Equal(t, 0.01, *parent.OriginalAmount)
	assert.InDelta(t, 0.007, *parent.RemainingAmount, 1e-12)
}

func TestPartialCloseProportionUsesOriginalAmount(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	first, err := svc.PartialClose(ownerID, trade.ID, &PartialCloseRequest{
		Amount: 0.003, ExitPrice: 40000,
	})
	require.NoError(t, err)

	// The second slice still divides against the original 0.01, not 0.007.
	second, err := svc.PartialClose(ownerID, trade.ID, &PartialCloseRequest{
		Amount: 0.003, ExitPrice: 42000,
	})
	require.NoError(t, err)

	assert.InDelta(t, 90.0, first.Slice.SumPlusFee, 1e-9)
	assert.InDelta(t, 90.0, second.Slice.SumPlusFee, 1e-9)
	assert.InDelta(t, 0.004, *second.Parent.RemainingAmount, 1e-12)
}

func TestPartialCloseExhaustionClosesParent(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	_, err := svc.PartialClose(ownerID, trade.ID, &PartialCloseRequest{
		Amount: 0.003, ExitPrice: 40000,
	})
	require.NoError(t, err)

	result, err := svc.PartialClose(ownerID, trade.ID, &PartialCloseRequest{
		Amount: 0.007, ExitPrice: 41000,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TradeStatusClosed, result.Parent.Status)
	assert.Equal(t, 0.0, *result.Parent.RemainingAmount)
	assert.NotNil(t, result.Parent.CloseDate)
}

func TestPartialCloseExceedingRemaining(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	_, err := svc.PartialClose(ownerID, trade.ID, &PartialCloseRequest{
		Amount: 0.02, ExitPrice: 40000,
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "amount", vErr.Field)
}

func TestPartialCloseRequiresFilled(t *testing.T) {
	svc, _ := newTestLedger()
	trade, err := svc.CreateLong(ownerID, &CreateLongRequest{
		PortfolioID: 1,
		Symbol:      "BTC",
		EntryPrice:  30000,
		Amount:      0.01,
		SumPlusFee:  300,
	})
	require.NoError(t, err)

	_, err = svc.PartialClose(ownerID, trade.ID, &PartialCloseRequest{
		Amount: 0.003, ExitPrice: 40000,
	})

	var sErr *InvalidStateError
	assert.ErrorAs(t, err, &sErr)
}

func TestSplit(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	result, err := svc.Split(ownerID, trade.ID, []float64{0.004, 0.006})
	require.NoError(t, err)

	assert.True(t, result.Parent.IsSplit)
	assert.Equal(t, models.TradeStatusClosed, result.Parent.Status)

	require.Len(t, result.Children, 2)
	first, second := result.Children[0], result.Children[1]
	assert.Equal(t, models.TradeStatusFilled, first.Status)
	assert.InDelta(t, 120.0, first.SumPlusFee, 1e-9)
	assert.InDelta(t, 180.0, second.SumPlusFee, 1e-9)
	// Children restart their cost-basis history.
	assert.Equal(t, 0.004, first.InitialAmount)
	assert.Equal(t, 0.006, second.InitialAmount)
	require.NotNil(t, first.SplitGroupID)
	assert.Equal(t, *first.SplitGroupID, *second.SplitGroupID)
	assert.Equal(t, trade.ID, *first.SplitFromTradeID)
}

func TestSplitPartCountBounds(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.06, 300)

	_, err := svc.Split(ownerID, trade.ID, []float64{0.06})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = svc.Split(ownerID, trade.ID, []float64{0.01, 0.01, 0.01, 0.01, 0.01, 0.01})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "amounts", vErr.Field)
}

func TestSplitAmountMismatch(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	_, err := svc.Split(ownerID, trade.ID, []float64{0.004, 0.005})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "amounts", vErr.Field)
}

func TestSplitDerivedShortRejected(t *testing.T) {
	svc, _ := newTestLedger()
	parent := createFilledLong(t, svc, 0.10, 1000)

	short, err := svc.CreateShort(ownerID, &CreateShortRequest{
		PortfolioID:   1,
		Symbol:        "BTC",
		SalePrice:     11000,
		Amount:        0.04,
		SumPlusFee:    440,
		ParentTradeID: &parent.ID,
	})
	require.NoError(t, err)

	filled := models.TradeStatusFilled
	_, err = svc.UpdateFields(ownerID, short.ID, &TradeUpdate{Status: &filled})
	require.NoError(t, err)

	_, err = svc.Split(ownerID, short.ID, []float64{0.02, 0.02})

	var sErr *InvalidStateError
	assert.ErrorAs(t, err, &sErr)
}

func TestDeleteDerivedShortRestoresParent(t *testing.T) {
	svc, store := newTestLedger()
	parent := createFilledLong(t, svc, 0.10, 1000)

	short, err := svc.CreateShort(ownerID, &CreateShortRequest{
		PortfolioID:   1,
		Symbol:        "BTC",
		SalePrice:     11000,
		Amount:        0.02,
		SumPlusFee:    220,
		ParentTradeID: &parent.ID,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ownerID, short.ID))

	reloaded, err := store.GetTrade(parent.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, reloaded.Amount, 1e-12)

	_, err = store.GetTrade(short.ID)
	assert.ErrorIs(t, err, repository.ErrTradeNotFound)
}

func TestDeleteClosedShortLeavesParentAlone(t *testing.T) {
	svc, store := newTestLedger()
	parent := createFilledLong(t, svc, 0.10, 1000)

	short, err := svc.CreateShort(ownerID, &CreateShortRequest{
		PortfolioID:   1,
		Symbol:        "BTC",
		SalePrice:     11000,
		Fee:           1,
		Amount:        0.02,
		SumPlusFee:    220,
		ParentTradeID: &parent.ID,
	})
	require.NoError(t, err)

	buyBack := 10000.0
	closed := models.TradeStatusClosed
	_, err = svc.UpdateFields(ownerID, short.ID, &TradeUpdate{
		ExitPrice: OptionalFloat{Set: true, Value: &buyBack},
		Status:    &closed,
	})
	require.NoError(t, err)

	settled, err := store.GetTrade(parent.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ownerID, short.ID))

	after, err := store.GetTrade(parent.ID)
	require.NoError(t, err)
	assert.Equal(t, settled.Amount, after.Amount)
}

func TestDeleteForbiddenForStranger(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	err := svc.Delete(strangerID, trade.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTradeUpdateExitPriceTriState(t *testing.T) {
	var absent TradeUpdate
	require.NoError(t, json.Unmarshal([]byte(`{}`), &absent))
	assert.False(t, absent.ExitPrice.Set)

	var null TradeUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"exit_price": null}`), &null))
	assert.True(t, null.ExitPrice.Set)
	assert.Nil(t, null.ExitPrice.Value)

	var set TradeUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"exit_price": 40000}`), &set))
	assert.True(t, set.ExitPrice.Set)
	require.NotNil(t, set.ExitPrice.Value)
	assert.Equal(t, 40000.0, *set.ExitPrice.Value)
}

func TestGetTradeOwnership(t *testing.T) {
	svc, _ := newTestLedger()
	trade := createFilledLong(t, svc, 0.01, 300)

	_, err := svc.GetTrade(strangerID, trade.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.GetTrade(ownerID, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.ID, got.ID)
}
