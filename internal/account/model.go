package account

import "time"

// Tier is the subscription level controlling feature limits.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// QuoteLimit returns the maximum number of quotes the tier allows, or 0 for
// unlimited.
func (t Tier) QuoteLimit() int {
	if t == TierFree {
		return freeTierQuoteLimit
	}
	return 0
}

const freeTierQuoteLimit = 10

// Subscription is the per-user plan state mirrored from the billing system.
type Subscription struct {
	Tier      Tier      `json:"tier"`
	RenewsAt  time.Time `json:"renews_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Usage tracks locally observed consumption counters.
type Usage struct {
	QuotesCreated int       `json:"quotes_created"`
	LastQuoteAt   time.Time `json:"last_quote_at,omitempty"`
}

// Account is the combined per-user document, persisted as one unit.
type Account struct {
	Subscription Subscription `json:"subscription"`
	Usage        Usage        `json:"usage"`
}
