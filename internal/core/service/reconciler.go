package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/nmakarov/repricer/internal/core/domain"
	"github.com/nmakarov/repricer/internal/core/pricing"
	"github.com/nmakarov/repricer/internal/metrics"
	"github.com/nmakarov/repricer/internal/port"
)

// ReconcilerConfig bounds one cycle: how stale an item must be to be
// picked up, how many to pick, how many run at once, and how much jitter
// to spread between outbound calls.
type ReconcilerConfig struct {
	StaleAfter    time.Duration
	BatchSize     int
	MaxConcurrent int
	MinDelay      time.Duration
	MaxDelay      time.Duration
}

// CycleStats summarizes one reconciliation pass.
type CycleStats struct {
	Fetched      int
	Updated      int
	Errors       int
	TouchedShops []string
	Duration     time.Duration
}

// Reconciler runs one price-reconciliation cycle at a time: fetch the due
// batch for this shard, then reconcile every item under a bounded worker
// pool. RunCycle does not return until all spawned work has finished.
type Reconciler struct {
	items    port.ItemRepository
	offers   port.OfferFetcher
	pusher   port.PriceSyncer
	sessions port.SessionProvider
	log      *slog.Logger
	metrics  *metrics.Metrics
	cfg      ReconcilerConfig

	mu      sync.Mutex
	updated int
	failed  int
}

func NewReconciler(
	items port.ItemRepository,
	offers port.OfferFetcher,
	pusher port.PriceSyncer,
	sessions port.SessionProvider,
	log *slog.Logger,
	m *metrics.Metrics,
	cfg ReconcilerConfig,
) *Reconciler {
	return &Reconciler{
		items:    items,
		offers:   offers,
		pusher:   pusher,
		sessions: sessions,
		log:      log,
		metrics:  m,
		cfg:      cfg,
	}
}

// RunCycle performs one pass. A failed batch fetch aborts the cycle; any
// failure after that is contained to its item.
func (r *Reconciler) RunCycle(ctx context.Context) (CycleStats, error) {
	start := time.Now()
	r.mu.Lock()
	r.updated, r.failed = 0, 0
	r.mu.Unlock()

	items, err := r.items.FetchDue(ctx, r.cfg.StaleAfter, r.cfg.BatchSize)
	if err != nil {
		return CycleStats{}, fmt.Errorf("fetch due items: %w", err)
	}
	if len(items) == 0 {
		return CycleStats{Duration: time.Since(start)}, nil
	}

	sessions := r.loadSessions(ctx, items)

	sem := make(chan struct{}, r.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	for _, it := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(it domain.Item) {
			defer wg.Done()
			defer func() { <-sem }()

			r.metrics.InFlight.Inc()
			r.reconcileItem(ctx, it, sessions[it.ShopID])
			r.metrics.InFlight.Dec()

			// Spread outbound traffic so the batch never lands on the
			// marketplace as one burst.
			r.jitter(ctx)
		}(it)
	}
	wg.Wait()

	r.mu.Lock()
	stats := CycleStats{
		Fetched:      len(items),
		Updated:      r.updated,
		Errors:       r.failed,
		TouchedShops: distinctShops(items),
		Duration:     time.Since(start),
	}
	r.mu.Unlock()

	r.metrics.CycleDuration.Observe(stats.Duration.Seconds())
	return stats, nil
}

type sessionResult struct {
	sess domain.Session
	err  error
}

// loadSessions resolves each distinct shop's session once, before any
// workers start. An expired session is logged here, once per shop, and
// every item of that shop is then skipped by the workers.
func (r *Reconciler) loadSessions(ctx context.Context, items []domain.Item) map[string]sessionResult {
	sessions := make(map[string]sessionResult)
	for _, it := range items {
		if _, ok := sessions[it.ShopID]; ok {
			continue
		}
		sess, err := r.sessions.Load(ctx, it.ShopID)
		if err != nil {
			r.log.Warn("skipping shop for this cycle", "shop", it.ShopID, "error", err)
		}
		sessions[it.ShopID] = sessionResult{sess: sess, err: err}
	}
	return sessions
}

// reconcileItem is the per-item unit of work. Nothing escapes it: every
// path ends with the item's check timestamp advanced (except a lost
// persistence write, which leaves the item due again next cycle).
func (r *Reconciler) reconcileItem(ctx context.Context, it domain.Item, sr sessionResult) {
	r.metrics.ItemsChecked.Inc()

	if sr.err != nil {
		r.countError(sr.err)
		r.touch(ctx, it)
		return
	}

	offers, err := r.offers.FetchOffers(ctx, it.ExternalID)
	if err != nil {
		r.log.Warn("offer fetch failed", "item", it.ID, "shop", it.ShopID, "error", err)
		r.countError(err)
		r.touch(ctx, it)
		return
	}

	dec := pricing.Decide(it.Price, offers, it.MinProfit)
	if !dec.Changed {
		r.touch(ctx, it)
		return
	}

	if err := r.pusher.PushPrice(ctx, it, dec.Price, sr.sess); err != nil {
		r.log.Warn("price push failed", "item", it.ID, "shop", it.ShopID, "price", dec.Price, "error", err)
		r.countError(err)
		r.touch(ctx, it)
		return
	}

	if err := r.items.UpdatePriceChecked(ctx, it.ID, dec.Price); err != nil {
		// The push went out but the write was lost. The check timestamp
		// stays put so the next cycle re-selects this item.
		r.log.Warn("price write lost", "item", it.ID, "price", dec.Price, "error", err)
		r.countError(err)
		return
	}

	r.log.Info("price updated", "item", it.ID, "shop", it.ShopID, "old", it.Price, "new", dec.Price)
	r.mu.Lock()
	r.updated++
	r.mu.Unlock()
	r.metrics.PriceUpdates.Inc()
}

func (r *Reconciler) touch(ctx context.Context, it domain.Item) {
	if err := r.items.TouchChecked(ctx, it.ID); err != nil {
		r.log.Warn("touch failed", "item", it.ID, "error", err)
		r.countError(err)
	}
}

func (r *Reconciler) countError(err error) {
	r.mu.Lock()
	r.failed++
	r.mu.Unlock()
	r.metrics.ItemErrors.WithLabelValues(errorKind(err)).Inc()
}

func (r *Reconciler) jitter(ctx context.Context) {
	span := r.cfg.MaxDelay - r.cfg.MinDelay
	delay := r.cfg.MinDelay
	if span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	if delay <= 0 {
		return
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	case errors.Is(err, domain.ErrData):
		return "data"
	case errors.Is(err, domain.ErrPushRejected):
		return "push_rejected"
	default:
		return "persistence"
	}
}

func distinctShops(items []domain.Item) []string {
	seen := make(map[string]bool, len(items))
	shops := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it.ShopID] {
			continue
		}
		seen[it.ShopID] = true
		shops = append(shops, it.ShopID)
	}
	return shops
}
