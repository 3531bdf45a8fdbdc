package domain

import "time"

// Item is a single priced listing owned by a shop. Prices are in the
// smallest whole currency unit; the marketplace rejects fractional values.
type Item struct {
	ID            string
	ShopID        string
	ExternalID    string
	Price         int
	MinProfit     int // lower bound for any price write; 0 means no floor
	BotActive     bool
	LastCheckTime *time.Time // nil if never checked
}

// Offer is a competing merchant's price for the same underlying product.
// The price is already floored to an integer at the marketplace boundary.
type Offer struct {
	MerchantID string
	Price      int
}

// Session is a merchant's marketplace session as written by the login
// automation. Cookies are attached to outbound price pushes.
type Session struct {
	Valid      bool              `json:"valid"`
	MerchantID string            `json:"merchant_id"`
	Cookies    map[string]string `json:"cookies"`
}
