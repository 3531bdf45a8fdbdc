package domain

import "errors"

// Error kinds for per-item and per-shop failures. Callers dispatch with
// errors.Is; adapters wrap these with context via fmt.Errorf("%w").
var (
	// ErrRateLimited means the marketplace returned too-many-requests.
	// Treated as "no competitor data this cycle", never fatal.
	ErrRateLimited = errors.New("marketplace rate limited")

	// ErrNetwork covers transport failures and timeouts on outbound calls.
	ErrNetwork = errors.New("marketplace unreachable")

	// ErrData means the upstream response could not be parsed.
	ErrData = errors.New("malformed marketplace response")

	// ErrSessionExpired means the shop's merchant session is missing or
	// invalid; all of that shop's items are skipped for the cycle.
	ErrSessionExpired = errors.New("merchant session expired")

	// ErrPushRejected means the marketplace refused a price update on
	// business grounds; the local price stays unchanged.
	ErrPushRejected = errors.New("price push rejected")
)
