package port

import (
	"context"
	"time"

	"github.com/nmakarov/repricer/internal/core/domain"
)

type ItemRepository interface {
	// FetchDue returns up to limit active items owned by this instance
	// whose last check is missing or older than staleAfter, oldest first
	// (never-checked items first). An empty result is not an error.
	FetchDue(ctx context.Context, staleAfter time.Duration, limit int) ([]domain.Item, error)

	// UpdatePriceChecked sets the item's price and advances its check
	// timestamp in one write.
	UpdatePriceChecked(ctx context.Context, id string, price int) error

	// TouchChecked advances only the check timestamp; used when no price
	// change happened or the attempt failed, so the item rotates to the
	// back of the queue either way.
	TouchChecked(ctx context.Context, id string) error
}

type ShopRepository interface {
	// MarkCatalogSynced records a completed catalog resync for the shop.
	MarkCatalogSynced(ctx context.Context, shopID string) error
}
