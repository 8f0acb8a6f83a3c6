package subscription

import "time"

// Tier is a subscription level gating feature access.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
	TierAgency  Tier = "agency"
)

// tierRanks orders tiers for comparisons. Unknown tiers rank as free.
var tierRanks = map[Tier]int{
	TierFree:    0,
	TierBasic:   1,
	TierPremium: 2,
	TierAgency:  3,
}

// Rank returns the ordering rank of the tier.
func (t Tier) Rank() int {
	return tierRanks[t]
}

// AtLeast reports whether the tier ranks at or above min.
func (t Tier) AtLeast(min Tier) bool {
	return t.Rank() >= min.Rank()
}

// Token balance thresholds, in UI units of the platform token.
const (
	BasicThreshold   = 1_000.0
	PremiumThreshold = 10_000.0
	AgencyThreshold  = 100_000.0
)

// DeriveTier maps a token balance to a tier. Monotonic: a higher balance
// never yields a lower tier.
func DeriveTier(balance float64) Tier {
	switch {
	case balance >= AgencyThreshold:
		return TierAgency
	case balance >= PremiumThreshold:
		return TierPremium
	case balance >= BasicThreshold:
		return TierBasic
	default:
		return TierFree
	}
}

// Limits describes per-day allowances for a tier.
type Limits struct {
	PostsPerDay    int `json:"posts_per_day"`
	ResearchPerDay int `json:"research_per_day"`
}

var tierLimits = map[Tier]Limits{
	TierFree:    {PostsPerDay: 3, ResearchPerDay: 5},
	TierBasic:   {PostsPerDay: 10, ResearchPerDay: 25},
	TierPremium: {PostsPerDay: 50, ResearchPerDay: 100},
	TierAgency:  {PostsPerDay: 500, ResearchPerDay: 1000},
}

// LimitsFor returns the allowances for a tier.
func LimitsFor(t Tier) Limits {
	if l, ok := tierLimits[t]; ok {
		return l
	}
	return tierLimits[TierFree]
}

// Subscription is the stored subscription state for a user. Wallet links the
// record to an on-chain token balance; PaidTier reflects a purchased plan.
type Subscription struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Wallet    string    `json:"wallet" db:"wallet"`
	PaidTier  Tier      `json:"paid_tier" db:"paid_tier"`
	PaidUntil time.Time `json:"paid_until" db:"paid_until"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PaidActive reports whether the paid plan is still in effect.
func (s Subscription) PaidActive(now time.Time) bool {
	return s.PaidTier != "" && s.PaidTier != TierFree && now.Before(s.PaidUntil)
}

// TokenBalance is a point-in-time wallet balance with its derived tier.
type TokenBalance struct {
	Wallet    string    `json:"wallet"`
	Raw       int64     `json:"raw"`
	Decimals  int       `json:"decimals"`
	UIAmount  float64   `json:"ui_amount"`
	Tier      Tier      `json:"tier"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Usage is a per-user daily usage counter row, keyed by UTC day.
type Usage struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Day       string    `json:"day" db:"day"`
	Posts     int       `json:"posts" db:"posts"`
	Research  int       `json:"research" db:"research"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DayKey formats the UTC day bucket used by usage rows.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
