// Package pricefeed maintains live mark prices for the coins a portfolio
// can hold, streamed from the Binance spot miniTicker channel. Prices are
// kept in memory and mirrored to redis so restarts start warm.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const (
	binanceWSURL         = "wss://stream.binance.com:9443/ws"
	pingInterval         = 30 * time.Second
	reconnectDelay       = 5 * time.Second
	maxReconnectAttempts = 10
	redisKeyPrefix       = "coinfolio:price:"
	redisPriceTTL        = 10 * time.Minute
)

// DefaultPairs are subscribed when the config lists none
var DefaultPairs = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
	"ADAUSDT", "DOGEUSDT", "AVAXUSDT", "DOTUSDT", "LINKUSDT",
	"LTCUSDT", "UNIUSDT", "ATOMUSDT", "XLMUSDT", "NEARUSDT",
}

// Feed is a reconnecting Binance miniTicker WebSocket client
type Feed struct {
	wsURL       string
	conn        *websocket.Conn
	connMux     sync.RWMutex
	isConnected bool

	redis *redis.Client
	pairs []string

	prices    map[string]float64
	pricesMux sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectAttempts int
}

// New creates a new Feed. redis may be nil; pairs defaults to DefaultPairs.
func New(rdb *redis.Client, pairs []string) *Feed {
	if len(pairs) == 0 {
		pairs = DefaultPairs
	}
	return &Feed{
		wsURL:  binanceWSURL,
		redis:  rdb,
		pairs:  pairs,
		prices: make(map[string]float64),
	}
}

// Start connects and begins streaming prices
func (f *Feed) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)

	if err := f.connect(); err != nil {
		return err
	}

	f.wg.Add(1)
	go f.messageLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return nil
}

// Stop closes the connection and waits for the loops to exit
func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.connMux.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.isConnected = false
	f.connMux.Unlock()
	f.wg.Wait()
}

// IsConnected returns whether the WebSocket is connected
func (f *Feed) IsConnected() bool {
	f.connMux.RLock()
	defer f.connMux.RUnlock()
	return f.isConnected
}

// LatestPrice returns the last known USDT price for a coin symbol.
// Accepts either a bare coin ("BTC") or a full pair ("BTCUSDT").
func (f *Feed) LatestPrice(symbol string) (float64, bool) {
	pair := PairFor(symbol)

	f.pricesMux.RLock()
	price, ok := f.prices[pair]
	f.pricesMux.RUnlock()
	if ok {
		return price, true
	}

	if f.redis != nil {
		if val, err := f.redis.Get(context.Background(), redisKeyPrefix+pair).Float64(); err == nil {
			return val, true
		}
	}
	return 0, false
}

// PairFor maps a coin symbol to its USDT pair
func PairFor(symbol string) string {
	pair := strings.ToUpper(symbol)
	if !strings.HasSuffix(pair, "USDT") {
		pair += "USDT"
	}
	return pair
}

func (f *Feed) connect() error {
	f.connMux.Lock()
	defer f.connMux.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to Binance WebSocket: %w", err)
	}

	f.conn = conn
	f.isConnected = true
	f.reconnectAttempts = 0

	log.Printf("[Pricefeed] WebSocket connected")

	return f.subscribeLocked()
}

// subscribeLocked sends the SUBSCRIBE frame; caller holds connMux
func (f *Feed) subscribeLocked() error {
	params := make([]string, 0, len(f.pairs))
	for _, pair := range f.pairs {
		params = append(params, strings.ToLower(pair)+"@miniTicker")
	}
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     1,
	}
	return f.conn.WriteJSON(msg)
}

type miniTickerEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
}

func (f *Feed) messageLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		f.connMux.RLock()
		conn := f.conn
		f.connMux.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.ctx.Done():
				return
			default:
			}
			f.handleDisconnect()
			continue
		}

		var event miniTickerEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		if event.EventType != "24hrMiniTicker" || event.Symbol == "" {
			continue
		}
		price, err := strconv.ParseFloat(event.LastPrice, 64)
		if err != nil {
			continue
		}

		f.pricesMux.Lock()
		f.prices[event.Symbol] = price
		f.pricesMux.Unlock()

		if f.redis != nil {
			f.redis.Set(f.ctx, redisKeyPrefix+event.Symbol, price, redisPriceTTL)
		}
	}
}

func (f *Feed) handleDisconnect() {
	f.connMux.Lock()
	f.isConnected = false
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	attempts := f.reconnectAttempts
	f.connMux.Unlock()

	if attempts >= maxReconnectAttempts {
		log.Printf("[Pricefeed] Giving up after %d reconnect attempts", attempts)
		f.cancel()
		return
	}

	log.Printf("[Pricefeed] Connection lost, reconnecting in %v", reconnectDelay)

	select {
	case <-f.ctx.Done():
		return
	case <-time.After(reconnectDelay):
	}

	f.connMux.Lock()
	f.reconnectAttempts = attempts + 1
	f.connMux.Unlock()

	if err := f.connect(); err != nil {
		log.Printf("[Pricefeed] Reconnect failed: %v", err)
	}
}

func (f *Feed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.connMux.RLock()
			conn := f.conn
			f.connMux.RUnlock()
			if conn != nil {
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}
}
