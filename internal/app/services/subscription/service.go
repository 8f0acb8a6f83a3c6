package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/postlane/platform/internal/app/cache"
	"github.com/postlane/platform/internal/app/domain/subscription"
	"github.com/postlane/platform/internal/app/storage"
	"github.com/postlane/platform/pkg/logger"
)

// ErrDailyLimit is returned when a usage counter would exceed the tier allowance.
var ErrDailyLimit = errors.New("daily limit reached")

// ErrTierInsufficient is returned when an operation needs a higher tier.
var ErrTierInsufficient = errors.New("tier insufficient")

// BalanceFetcher retrieves the current token balance for a wallet.
type BalanceFetcher interface {
	Fetch(ctx context.Context, wallet string) (subscription.TokenBalance, error)
}

// BalanceFetcherFunc adapts a function to the BalanceFetcher interface.
type BalanceFetcherFunc func(ctx context.Context, wallet string) (subscription.TokenBalance, error)

func (f BalanceFetcherFunc) Fetch(ctx context.Context, wallet string) (subscription.TokenBalance, error) {
	if f == nil {
		return subscription.TokenBalance{}, fmt.Errorf("no balance fetcher configured")
	}
	return f(ctx, wallet)
}

// Service maps token balances and paid plans to effective tiers and enforces
// daily usage allowances.
type Service struct {
	users      storage.UserStore
	store      storage.SubscriptionStore
	loader     *cache.Loader
	fetcher    BalanceFetcher
	balanceTTL time.Duration
	log        *logger.Logger
	now        func() time.Time
}

// New constructs a subscription service. The cache backend holds fetched
// token balances for the configured TTL.
func New(users storage.UserStore, store storage.SubscriptionStore, backend cache.Cache, balanceTTL time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("subscription")
	}
	if backend == nil {
		backend = cache.NewMemory()
	}
	if balanceTTL <= 0 {
		balanceTTL = 5 * time.Minute
	}
	return &Service{
		users:      users,
		store:      store,
		loader:     cache.NewLoader(backend),
		balanceTTL: balanceTTL,
		log:        log,
		now:        time.Now,
	}
}

// AttachFetcher assigns the balance fetcher. Without one, token-derived tiers
// resolve to free.
func (s *Service) AttachFetcher(fetcher BalanceFetcher) {
	s.fetcher = fetcher
}

// Ensure creates the subscription row for a user if it does not exist yet.
func (s *Service) Ensure(ctx context.Context, userID, wallet string) (subscription.Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return subscription.Subscription{}, fmt.Errorf("user_id is required")
	}

	if existing, err := s.store.GetSubscription(ctx, userID); err == nil {
		return existing, nil
	}

	if s.users != nil {
		if _, err := s.users.GetUser(ctx, userID); err != nil {
			return subscription.Subscription{}, fmt.Errorf("user validation failed: %w", err)
		}
	}

	sub := subscription.Subscription{
		UserID:   userID,
		Wallet:   strings.TrimSpace(wallet),
		PaidTier: subscription.TierFree,
	}
	sub, err := s.store.CreateSubscription(ctx, sub)
	if err != nil {
		return subscription.Subscription{}, err
	}
	s.log.WithField("user_id", userID).Info("subscription created")
	return sub, nil
}

// Get returns the stored subscription for a user.
func (s *Service) Get(ctx context.Context, userID string) (subscription.Subscription, error) {
	return s.store.GetSubscription(ctx, userID)
}

// SetWallet updates the linked wallet and drops any cached balance for the
// previous wallet.
func (s *Service) SetWallet(ctx context.Context, userID, wallet string) (subscription.Subscription, error) {
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return subscription.Subscription{}, err
	}

	previous := sub.Wallet
	sub.Wallet = strings.TrimSpace(wallet)
	sub, err = s.store.UpdateSubscription(ctx, sub)
	if err != nil {
		return subscription.Subscription{}, err
	}

	if previous != "" {
		s.InvalidateWallet(ctx, previous)
	}
	s.log.WithField("user_id", userID).Info("subscription wallet updated")
	return sub, nil
}

// SetPaidTier records a purchased plan through the given expiry.
func (s *Service) SetPaidTier(ctx context.Context, userID string, tier subscription.Tier, until time.Time) (subscription.Subscription, error) {
	if _, ok := map[subscription.Tier]bool{
		subscription.TierFree:    true,
		subscription.TierBasic:   true,
		subscription.TierPremium: true,
		subscription.TierAgency:  true,
	}[tier]; !ok {
		return subscription.Subscription{}, fmt.Errorf("unknown tier %q", tier)
	}

	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return subscription.Subscription{}, err
	}

	sub.PaidTier = tier
	sub.PaidUntil = until.UTC()
	sub, err = s.store.UpdateSubscription(ctx, sub)
	if err != nil {
		return subscription.Subscription{}, err
	}
	s.log.WithField("user_id", userID).
		WithField("tier", tier).
		Info("paid tier updated")
	return sub, nil
}

// Balance returns the cached or freshly fetched token balance for a wallet.
// Cache expiry triggers exactly one upstream fetch per window.
func (s *Service) Balance(ctx context.Context, wallet string) (subscription.TokenBalance, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return subscription.TokenBalance{}, fmt.Errorf("wallet is required")
	}
	if s.fetcher == nil {
		return subscription.TokenBalance{}, fmt.Errorf("no balance fetcher configured")
	}

	value, err := s.loader.GetOrFill(ctx, balanceKey(wallet), s.balanceTTL, func(ctx context.Context) ([]byte, error) {
		balance, err := s.fetcher.Fetch(ctx, wallet)
		if err != nil {
			return nil, err
		}
		balance.Tier = subscription.DeriveTier(balance.UIAmount)
		balance.FetchedAt = s.now().UTC()
		return json.Marshal(balance)
	})
	if err != nil {
		return subscription.TokenBalance{}, err
	}

	var balance subscription.TokenBalance
	if err := json.Unmarshal(value, &balance); err != nil {
		return subscription.TokenBalance{}, fmt.Errorf("decode cached balance: %w", err)
	}
	return balance, nil
}

// InvalidateWallet drops the cached balance for a wallet, forcing the next
// read to hit the upstream.
func (s *Service) InvalidateWallet(ctx context.Context, wallet string) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return
	}
	if err := s.loader.Invalidate(ctx, balanceKey(wallet)); err != nil {
		s.log.WithError(err).WithField("wallet", wallet).Warn("invalidate balance cache failed")
	}
}

// EffectiveTier resolves the tier gating a user's access: the higher of the
// active paid plan and the token-balance tier. Failures degrade to free
// rather than rejecting the request.
func (s *Service) EffectiveTier(ctx context.Context, userID string) subscription.Tier {
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return subscription.TierFree
	}

	tier := subscription.TierFree
	if sub.PaidActive(s.now().UTC()) {
		tier = sub.PaidTier
	}

	if sub.Wallet != "" && s.fetcher != nil {
		balance, err := s.Balance(ctx, sub.Wallet)
		if err != nil {
			s.log.WithError(err).
				WithField("user_id", userID).
				Warn("balance fetch failed; using paid tier only")
		} else if balance.Tier.Rank() > tier.Rank() {
			tier = balance.Tier
		}
	}
	return tier
}

// RequireTier returns ErrTierInsufficient when the user's effective tier
// ranks below min.
func (s *Service) RequireTier(ctx context.Context, userID string, min subscription.Tier) error {
	tier := s.EffectiveTier(ctx, userID)
	if !tier.AtLeast(min) {
		return fmt.Errorf("%w: %s requires %s, have %s", ErrTierInsufficient, userID, min, tier)
	}
	return nil
}

// Usage returns today's counters with the limits for the effective tier.
func (s *Service) Usage(ctx context.Context, userID string) (subscription.Usage, subscription.Limits, subscription.Tier, error) {
	tier := s.EffectiveTier(ctx, userID)
	usage, err := s.store.GetUsage(ctx, userID, subscription.DayKey(s.now()))
	if err != nil {
		return subscription.Usage{}, subscription.Limits{}, tier, err
	}
	return usage, subscription.LimitsFor(tier), tier, nil
}

// ConsumePost increments today's post counter, enforcing the tier allowance.
func (s *Service) ConsumePost(ctx context.Context, userID string) error {
	return s.consume(ctx, userID, func(usage *subscription.Usage, limits subscription.Limits) error {
		if usage.Posts >= limits.PostsPerDay {
			return fmt.Errorf("%w: %d posts per day", ErrDailyLimit, limits.PostsPerDay)
		}
		usage.Posts++
		return nil
	})
}

// ConsumeResearch increments today's research counter, enforcing the tier
// allowance.
func (s *Service) ConsumeResearch(ctx context.Context, userID string) error {
	return s.consume(ctx, userID, func(usage *subscription.Usage, limits subscription.Limits) error {
		if usage.Research >= limits.ResearchPerDay {
			return fmt.Errorf("%w: %d research requests per day", ErrDailyLimit, limits.ResearchPerDay)
		}
		usage.Research++
		return nil
	})
}

func (s *Service) consume(ctx context.Context, userID string, apply func(*subscription.Usage, subscription.Limits) error) error {
	tier := s.EffectiveTier(ctx, userID)
	limits := subscription.LimitsFor(tier)

	day := subscription.DayKey(s.now())
	usage, err := s.store.GetUsage(ctx, userID, day)
	if err != nil {
		return err
	}
	if err := apply(&usage, limits); err != nil {
		return err
	}
	_, err = s.store.UpsertUsage(ctx, usage)
	return err
}

func balanceKey(wallet string) string {
	return "balance:" + strings.ToLower(wallet)
}
