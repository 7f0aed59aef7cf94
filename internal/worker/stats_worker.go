package worker

import (
	"context"
	"log"
	"time"

	"github.com/coinfolio/internal/repository"
	"github.com/coinfolio/internal/service"
)

// activeWindow bounds which portfolios the worker keeps warm. Portfolios
// untouched for longer recompute lazily on the next stats request.
const activeWindow = 24 * time.Hour

// StatsWorker periodically recomputes statistics for recently active
// portfolios so the redis cache stays warm between requests
type StatsWorker struct {
	statsService  *service.StatsService
	portfolioRepo *repository.PortfolioRepository
	interval      time.Duration
	stopChan      chan struct{}
}

// NewStatsWorker creates a new stats snapshot worker
func NewStatsWorker(
	statsService *service.StatsService,
	portfolioRepo *repository.PortfolioRepository,
	interval time.Duration,
) *StatsWorker {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &StatsWorker{
		statsService:  statsService,
		portfolioRepo: portfolioRepo,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the snapshot loop
func (w *StatsWorker) Start() {
	log.Printf("Stats Worker started with interval: %v", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.refreshActivePortfolios()
		case <-w.stopChan:
			log.Println("Stats Worker stopped")
			return
		}
	}
}

// Stop stops the snapshot loop
func (w *StatsWorker) Stop() {
	close(w.stopChan)
}

// refreshActivePortfolios recomputes stats for every portfolio touched
// inside the active window
func (w *StatsWorker) refreshActivePortfolios() {
	portfolios, err := w.portfolioRepo.GetActiveSince(time.Now().Add(-activeWindow))
	if err != nil {
		log.Printf("Stats Worker: failed to list active portfolios: %v", err)
		return
	}

	if len(portfolios) == 0 {
		return
	}

	ctx := context.Background()
	for _, p := range portfolios {
		if _, err := w.statsService.RefreshPortfolio(ctx, p.ID); err != nil {
			log.Printf("Stats Worker: failed to refresh portfolio %d: %v", p.ID, err)
		}
	}
}
