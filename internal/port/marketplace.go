package port

import (
	"context"
	"net/url"

	"github.com/nmakarov/repricer/internal/core/domain"
)

type OfferFetcher interface {
	// FetchOffers returns current competitor offers for an item's external
	// id, already floored to whole currency units. No offers is an empty
	// slice, not an error. Returns domain.ErrRateLimited, domain.ErrNetwork
	// or domain.ErrData on failure.
	FetchOffers(ctx context.Context, externalID string) ([]domain.Offer, error)
}

type PriceSyncer interface {
	// PushPrice sends the new price to the marketplace under the shop's
	// merchant session. It never mutates local state; persisting a
	// successful push is the caller's job.
	PushPrice(ctx context.Context, item domain.Item, price int, sess domain.Session) error
}

type CatalogResyncer interface {
	// Resync triggers a full catalog pull for the shop and returns the
	// number of items it covered.
	Resync(ctx context.Context, shopID string) (int, error)
}

type SessionProvider interface {
	// Load returns the shop's merchant session, or an error wrapping
	// domain.ErrSessionExpired when it is missing or invalid.
	Load(ctx context.Context, shopID string) (domain.Session, error)
}

// ProxyProvider selects an outbound proxy per request key (external item id
// for offer fetches, shop id for price pushes). A nil URL means direct.
type ProxyProvider interface {
	NextProxy(key string) (*url.URL, error)
}
