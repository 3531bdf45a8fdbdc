// Package pricing holds the undercut decision. It is pure: no I/O, no
// clock, integers only.
package pricing

import "github.com/nmakarov/repricer/internal/core/domain"

// Decision is the outcome of comparing an item against competitor offers.
// The zero value means no change.
type Decision struct {
	Changed bool
	Price   int
}

// NoChange leaves the item's price as is.
var NoChange = Decision{}

// Decide returns the price update for an item given its current price,
// competitor offers and profit floor.
//
// The rules, in order:
//   - no offers: no change
//   - already at or below the cheapest offer (or the floor): no change,
//     the price is never raised
//   - otherwise undercut the cheapest offer by one unit
//   - if undercutting would breach the floor, decline the update rather
//     than clamping to the floor; the item keeps its current price until
//     competitor prices move
func Decide(currentPrice int, offers []domain.Offer, minProfit int) Decision {
	if len(offers) == 0 {
		return NoChange
	}

	minOffer := offers[0].Price
	for _, o := range offers[1:] {
		if o.Price < minOffer {
			minOffer = o.Price
		}
	}

	floor := minProfit
	if floor < 0 {
		floor = 0
	}

	limit := minOffer
	if floor > limit {
		limit = floor
	}
	if currentPrice <= limit {
		return NoChange
	}

	candidate := minOffer - 1
	if candidate < floor {
		return NoChange
	}

	return Decision{Changed: true, Price: candidate}
}
