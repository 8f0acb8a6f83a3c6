package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/postlane/platform/internal/app/domain/gamification"
	"github.com/postlane/platform/internal/app/domain/schedule"
	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/app/domain/subscription"
	"github.com/postlane/platform/internal/app/domain/user"
	"github.com/postlane/platform/internal/app/domain/webhook"
	"github.com/postlane/platform/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu               sync.RWMutex
	nextID           int64
	users            map[string]user.User
	usersByEmail     map[string]string
	socialAccounts   map[string]social.Account
	socialByUserPlat map[string]string
	posts            map[string][]social.Post
	subscriptions    map[string]subscription.Subscription
	subsByWallet     map[string]string
	usage            map[string]subscription.Usage
	streaks          map[string]gamification.Streak
	achievements     map[string][]gamification.Achievement
	webhooks         map[string]webhook.Subscription
	events           map[string]webhook.Event
	scheduled        map[string]schedule.Post
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SocialStore = (*Store)(nil)
var _ storage.SubscriptionStore = (*Store)(nil)
var _ storage.GamificationStore = (*Store)(nil)
var _ storage.WebhookStore = (*Store)(nil)
var _ storage.ScheduleStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:           1,
		users:            make(map[string]user.User),
		usersByEmail:     make(map[string]string),
		socialAccounts:   make(map[string]social.Account),
		socialByUserPlat: make(map[string]string),
		posts:            make(map[string][]social.Post),
		subscriptions:    make(map[string]subscription.Subscription),
		subsByWallet:     make(map[string]string),
		usage:            make(map[string]subscription.Usage),
		streaks:          make(map[string]gamification.Streak),
		achievements:     make(map[string][]gamification.Achievement),
		webhooks:         make(map[string]webhook.Subscription),
		events:           make(map[string]webhook.Event),
		scheduled:        make(map[string]schedule.Post),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func platKey(userID string, platform social.Platform) string {
	return userID + "|" + string(platform)
}

func usageKey(userID, day string) string {
	return userID + "|" + day
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := strings.ToLower(strings.TrimSpace(u.Email))
	if _, exists := s.usersByEmail[emailKey]; exists {
		return user.User{}, fmt.Errorf("email %s already registered", u.Email)
	}

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByEmail[emailKey] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s not found", u.ID)
	}

	oldKey := strings.ToLower(strings.TrimSpace(original.Email))
	newKey := strings.ToLower(strings.TrimSpace(u.Email))
	if newKey != oldKey {
		if existing, exists := s.usersByEmail[newKey]; exists && existing != u.ID {
			return user.User{}, fmt.Errorf("email %s already registered", u.Email)
		}
		delete(s.usersByEmail, oldKey)
		s.usersByEmail[newKey] = u.ID
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
		return s.users[id], nil
	}
	return user.User{}, fmt.Errorf("user with email %s not found", email)
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	return result, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	delete(s.usersByEmail, strings.ToLower(strings.TrimSpace(u.Email)))
	delete(s.users, id)
	return nil
}

// SocialStore implementation ---------------------------------------------------

func (s *Store) CreateSocialAccount(_ context.Context, acct social.Account) (social.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := platKey(acct.UserID, acct.Platform)
	if existing, exists := s.socialByUserPlat[key]; exists {
		return social.Account{}, fmt.Errorf("platform %s already linked as account %s", acct.Platform, existing)
	}

	if acct.ID == "" {
		acct.ID = s.nextIDLocked()
	} else if _, exists := s.socialAccounts[acct.ID]; exists {
		return social.Account{}, fmt.Errorf("social account %s already exists", acct.ID)
	}

	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	s.socialAccounts[acct.ID] = acct
	s.socialByUserPlat[key] = acct.ID
	return acct, nil
}

func (s *Store) UpdateSocialAccount(_ context.Context, acct social.Account) (social.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.socialAccounts[acct.ID]
	if !ok {
		return social.Account{}, fmt.Errorf("social account %s not found", acct.ID)
	}

	acct.UserID = original.UserID
	acct.Platform = original.Platform
	acct.CreatedAt = original.CreatedAt
	acct.UpdatedAt = time.Now().UTC()

	s.socialAccounts[acct.ID] = acct
	return acct, nil
}

func (s *Store) GetSocialAccount(_ context.Context, id string) (social.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.socialAccounts[id]
	if !ok {
		return social.Account{}, fmt.Errorf("social account %s not found", id)
	}
	return acct, nil
}

func (s *Store) GetSocialAccountByPlatform(_ context.Context, userID string, platform social.Platform) (social.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.socialByUserPlat[platKey(userID, platform)]; ok {
		return s.socialAccounts[id], nil
	}
	return social.Account{}, fmt.Errorf("no %s account linked for user %s", platform, userID)
}

func (s *Store) ListSocialAccounts(_ context.Context, userID string) ([]social.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]social.Account, 0)
	for _, acct := range s.socialAccounts {
		if userID == "" || acct.UserID == userID {
			result = append(result, acct)
		}
	}
	return result, nil
}

func (s *Store) DeleteSocialAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.socialAccounts[id]
	if !ok {
		return fmt.Errorf("social account %s not found", id)
	}
	delete(s.socialByUserPlat, platKey(acct.UserID, acct.Platform))
	delete(s.socialAccounts, id)
	return nil
}

func (s *Store) CreatePost(_ context.Context, p social.Post) (social.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	if p.PostedAt.IsZero() {
		p.PostedAt = now
	}

	s.posts[p.UserID] = append(s.posts[p.UserID], p)
	return p, nil
}

func (s *Store) ListPosts(_ context.Context, userID string) ([]social.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]social.Post(nil), s.posts[userID]...), nil
}

// SubscriptionStore implementation ---------------------------------------------

func (s *Store) CreateSubscription(_ context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.UserID]; exists {
		return subscription.Subscription{}, fmt.Errorf("subscription for user %s already exists", sub.UserID)
	}

	sub.Wallet = strings.TrimSpace(sub.Wallet)
	walletKey := strings.ToLower(sub.Wallet)
	if walletKey != "" {
		if existing, exists := s.subsByWallet[walletKey]; exists {
			return subscription.Subscription{}, fmt.Errorf("wallet %s already assigned to user %s", sub.Wallet, existing)
		}
	}

	if sub.ID == "" {
		sub.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if sub.PaidTier == "" {
		sub.PaidTier = subscription.TierFree
	}

	s.subscriptions[sub.UserID] = sub
	if walletKey != "" {
		s.subsByWallet[walletKey] = sub.UserID
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.subscriptions[sub.UserID]
	if !ok {
		return subscription.Subscription{}, fmt.Errorf("subscription for user %s not found", sub.UserID)
	}

	sub.Wallet = strings.TrimSpace(sub.Wallet)
	oldKey := strings.ToLower(strings.TrimSpace(original.Wallet))
	newKey := strings.ToLower(sub.Wallet)
	if newKey != "" && newKey != oldKey {
		if existing, exists := s.subsByWallet[newKey]; exists && existing != sub.UserID {
			return subscription.Subscription{}, fmt.Errorf("wallet %s already assigned to user %s", sub.Wallet, existing)
		}
	}

	sub.ID = original.ID
	sub.CreatedAt = original.CreatedAt
	sub.UpdatedAt = time.Now().UTC()

	s.subscriptions[sub.UserID] = sub
	if oldKey != "" && oldKey != newKey {
		delete(s.subsByWallet, oldKey)
	}
	if newKey != "" {
		s.subsByWallet[newKey] = sub.UserID
	}
	return sub, nil
}

func (s *Store) GetSubscription(_ context.Context, userID string) (subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[userID]
	if !ok {
		return subscription.Subscription{}, fmt.Errorf("subscription for user %s not found", userID)
	}
	return sub, nil
}

func (s *Store) GetSubscriptionByWallet(_ context.Context, wallet string) (subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if userID, ok := s.subsByWallet[strings.ToLower(strings.TrimSpace(wallet))]; ok {
		return s.subscriptions[userID], nil
	}
	return subscription.Subscription{}, fmt.Errorf("subscription for wallet %s not found", wallet)
}

func (s *Store) GetUsage(_ context.Context, userID, day string) (subscription.Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usage, ok := s.usage[usageKey(userID, day)]
	if !ok {
		return subscription.Usage{UserID: userID, Day: day}, nil
	}
	return usage, nil
}

func (s *Store) UpsertUsage(_ context.Context, usage subscription.Usage) (subscription.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage.UpdatedAt = time.Now().UTC()
	s.usage[usageKey(usage.UserID, usage.Day)] = usage
	return usage, nil
}

// GamificationStore implementation ----------------------------------------------

func (s *Store) GetStreak(_ context.Context, userID string) (gamification.Streak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	streak, ok := s.streaks[userID]
	if !ok {
		return gamification.Streak{UserID: userID}, nil
	}
	return streak, nil
}

func (s *Store) UpsertStreak(_ context.Context, streak gamification.Streak) (gamification.Streak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	streak.UpdatedAt = time.Now().UTC()
	s.streaks[streak.UserID] = streak
	return streak, nil
}

func (s *Store) TopStreaks(_ context.Context, limit int) ([]gamification.Streak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]gamification.Streak, 0, len(s.streaks))
	for _, streak := range s.streaks {
		result = append(result, streak)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Current != result[j].Current {
			return result[i].Current > result[j].Current
		}
		if result[i].Longest != result[j].Longest {
			return result[i].Longest > result[j].Longest
		}
		return result[i].UserID < result[j].UserID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateAchievement(_ context.Context, a gamification.Achievement) (gamification.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.achievements[a.UserID] {
		if existing.Type == a.Type {
			return gamification.Achievement{}, fmt.Errorf("achievement %s already unlocked for user %s", a.Type, a.UserID)
		}
	}

	if a.ID == "" {
		a.ID = s.nextIDLocked()
	}
	if a.UnlockedAt.IsZero() {
		a.UnlockedAt = time.Now().UTC()
	}

	s.achievements[a.UserID] = append(s.achievements[a.UserID], a)
	return a, nil
}

func (s *Store) ListAchievements(_ context.Context, userID string) ([]gamification.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]gamification.Achievement(nil), s.achievements[userID]...), nil
}

// WebhookStore implementation ----------------------------------------------------

func (s *Store) CreateWebhook(_ context.Context, sub webhook.Subscription) (webhook.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == "" {
		sub.ID = s.nextIDLocked()
	} else if _, exists := s.webhooks[sub.ID]; exists {
		return webhook.Subscription{}, fmt.Errorf("webhook %s already exists", sub.ID)
	}

	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	s.webhooks[sub.ID] = sub
	return sub, nil
}

func (s *Store) UpdateWebhook(_ context.Context, sub webhook.Subscription) (webhook.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.webhooks[sub.ID]
	if !ok {
		return webhook.Subscription{}, fmt.Errorf("webhook %s not found", sub.ID)
	}

	sub.UserID = original.UserID
	sub.CreatedAt = original.CreatedAt
	sub.UpdatedAt = time.Now().UTC()

	s.webhooks[sub.ID] = sub
	return sub, nil
}

func (s *Store) GetWebhook(_ context.Context, id string) (webhook.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.webhooks[id]
	if !ok {
		return webhook.Subscription{}, fmt.Errorf("webhook %s not found", id)
	}
	return sub, nil
}

func (s *Store) ListWebhooks(_ context.Context, userID string) ([]webhook.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]webhook.Subscription, 0)
	for _, sub := range s.webhooks {
		if userID == "" || sub.UserID == userID {
			result = append(result, sub)
		}
	}
	return result, nil
}

func (s *Store) RecordEvent(_ context.Context, ev webhook.Event) (webhook.Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.events[ev.Signature]; exists {
		return existing, false, nil
	}

	if ev.ID == "" {
		ev.ID = s.nextIDLocked()
	}
	if ev.SeenAt.IsZero() {
		ev.SeenAt = time.Now().UTC()
	}

	s.events[ev.Signature] = ev
	return ev, true, nil
}

// ScheduleStore implementation -----------------------------------------------------

func (s *Store) CreateScheduledPost(_ context.Context, p schedule.Post) (schedule.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.scheduled[p.ID]; exists {
		return schedule.Post{}, fmt.Errorf("scheduled post %s already exists", p.ID)
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.scheduled[p.ID] = p
	return p, nil
}

func (s *Store) UpdateScheduledPost(_ context.Context, p schedule.Post) (schedule.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.scheduled[p.ID]
	if !ok {
		return schedule.Post{}, fmt.Errorf("scheduled post %s not found", p.ID)
	}

	p.UserID = original.UserID
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	s.scheduled[p.ID] = p
	return p, nil
}

func (s *Store) GetScheduledPost(_ context.Context, id string) (schedule.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.scheduled[id]
	if !ok {
		return schedule.Post{}, fmt.Errorf("scheduled post %s not found", id)
	}
	return p, nil
}

func (s *Store) ListScheduledPosts(_ context.Context, userID string) ([]schedule.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]schedule.Post, 0)
	for _, p := range s.scheduled {
		if userID == "" || p.UserID == userID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *Store) ListDuePosts(_ context.Context) ([]schedule.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	result := make([]schedule.Post, 0)
	for _, p := range s.scheduled {
		if p.Due(now) {
			result = append(result, p)
		}
	}
	return result, nil
}
