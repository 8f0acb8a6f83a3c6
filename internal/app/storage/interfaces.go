package storage

import (
	"context"

	"github.com/postlane/platform/internal/app/domain/gamification"
	"github.com/postlane/platform/internal/app/domain/schedule"
	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/app/domain/subscription"
	"github.com/postlane/platform/internal/app/domain/user"
	"github.com/postlane/platform/internal/app/domain/webhook"
)

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SocialStore persists linked platform accounts and published posts.
type SocialStore interface {
	CreateSocialAccount(ctx context.Context, acct social.Account) (social.Account, error)
	UpdateSocialAccount(ctx context.Context, acct social.Account) (social.Account, error)
	GetSocialAccount(ctx context.Context, id string) (social.Account, error)
	GetSocialAccountByPlatform(ctx context.Context, userID string, platform social.Platform) (social.Account, error)
	ListSocialAccounts(ctx context.Context, userID string) ([]social.Account, error)
	DeleteSocialAccount(ctx context.Context, id string) error

	CreatePost(ctx context.Context, p social.Post) (social.Post, error)
	ListPosts(ctx context.Context, userID string) ([]social.Post, error)
}

// SubscriptionStore persists subscription and daily usage records.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error)
	GetSubscription(ctx context.Context, userID string) (subscription.Subscription, error)
	GetSubscriptionByWallet(ctx context.Context, wallet string) (subscription.Subscription, error)

	GetUsage(ctx context.Context, userID, day string) (subscription.Usage, error)
	UpsertUsage(ctx context.Context, usage subscription.Usage) (subscription.Usage, error)
}

// GamificationStore persists streaks and achievements.
type GamificationStore interface {
	GetStreak(ctx context.Context, userID string) (gamification.Streak, error)
	UpsertStreak(ctx context.Context, streak gamification.Streak) (gamification.Streak, error)
	TopStreaks(ctx context.Context, limit int) ([]gamification.Streak, error)

	CreateAchievement(ctx context.Context, a gamification.Achievement) (gamification.Achievement, error)
	ListAchievements(ctx context.Context, userID string) ([]gamification.Achievement, error)
}

// WebhookStore persists webhook subscriptions and processed events.
type WebhookStore interface {
	CreateWebhook(ctx context.Context, sub webhook.Subscription) (webhook.Subscription, error)
	UpdateWebhook(ctx context.Context, sub webhook.Subscription) (webhook.Subscription, error)
	GetWebhook(ctx context.Context, id string) (webhook.Subscription, error)
	ListWebhooks(ctx context.Context, userID string) ([]webhook.Subscription, error)

	RecordEvent(ctx context.Context, ev webhook.Event) (webhook.Event, bool, error)
}

// ScheduleStore persists scheduled posts.
type ScheduleStore interface {
	CreateScheduledPost(ctx context.Context, p schedule.Post) (schedule.Post, error)
	UpdateScheduledPost(ctx context.Context, p schedule.Post) (schedule.Post, error)
	GetScheduledPost(ctx context.Context, id string) (schedule.Post, error)
	ListScheduledPosts(ctx context.Context, userID string) ([]schedule.Post, error)
	ListDuePosts(ctx context.Context) ([]schedule.Post, error)
}
