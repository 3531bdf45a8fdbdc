package service

import (
	"context"
	"log/slog"

	"github.com/nmakarov/repricer/internal/config"
	"github.com/nmakarov/repricer/internal/metrics"
	"github.com/nmakarov/repricer/internal/port"
	"github.com/nmakarov/repricer/internal/shard"
)

// StoreSyncCoordinator decides, after a cycle, which of the touched shops
// this instance resyncs. In leader mode only instance 0 resyncs; in shard
// mode responsibility for a shop is partitioned the same way items are.
// Either way a given shop is resynced by exactly one instance per cycle.
type StoreSyncCoordinator struct {
	resyncer port.CatalogResyncer
	shops    port.ShopRepository
	shard    shard.Spec
	mode     string
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewStoreSyncCoordinator(
	resyncer port.CatalogResyncer,
	shops port.ShopRepository,
	spec shard.Spec,
	mode string,
	log *slog.Logger,
	m *metrics.Metrics,
) *StoreSyncCoordinator {
	return &StoreSyncCoordinator{
		resyncer: resyncer,
		shops:    shops,
		shard:    spec,
		mode:     mode,
		log:      log,
		metrics:  m,
	}
}

// SyncTouched resyncs the shops this instance owns. One shop failing does
// not stop the rest.
func (c *StoreSyncCoordinator) SyncTouched(ctx context.Context, shopIDs []string) {
	for _, shopID := range shopIDs {
		if ctx.Err() != nil {
			return
		}
		if !c.owns(shopID) {
			continue
		}

		count, err := c.resyncer.Resync(ctx, shopID)
		if err != nil {
			c.log.Warn("catalog resync failed", "shop", shopID, "error", err)
			continue
		}
		if err := c.shops.MarkCatalogSynced(ctx, shopID); err != nil {
			c.log.Warn("catalog sync timestamp write failed", "shop", shopID, "error", err)
			continue
		}

		c.metrics.ShopsResynced.Inc()
		c.log.Info("catalog resynced", "shop", shopID, "items", count)
	}
}

func (c *StoreSyncCoordinator) owns(shopID string) bool {
	if c.mode == config.SyncModeShard {
		return c.shard.Owns(shopID)
	}
	return c.shard.Index == 0
}
