package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/postlane/platform/internal/app/domain/gamification"
	"github.com/postlane/platform/internal/app/domain/schedule"
	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/app/domain/subscription"
	"github.com/postlane/platform/internal/app/domain/user"
	"github.com/postlane/platform/internal/app/domain/webhook"
	"github.com/postlane/platform/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SocialStore = (*Store)(nil)
var _ storage.SubscriptionStore = (*Store)(nil)
var _ storage.GamificationStore = (*Store)(nil)
var _ storage.WebhookStore = (*Store)(nil)
var _ storage.ScheduleStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.DisplayName, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, display_name = $3, password_hash = $4, role = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Email, u.DisplayName, u.PasswordHash, u.Role, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, display_name, password_hash, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, display_name, password_hash, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var result []user.User
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, email, display_name, password_hash, role, created_at, updated_at
		FROM users
		ORDER BY created_at
	`)
	return result, err
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- SocialStore ---------------------------------------------------------------

func (s *Store) CreateSocialAccount(ctx context.Context, acct social.Account) (social.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO social_accounts (id, user_id, platform, handle, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, acct.ID, acct.UserID, acct.Platform, acct.Handle, acct.AccessToken, acct.RefreshToken, toNullTime(acct.ExpiresAt), acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return social.Account{}, err
	}
	return acct, nil
}

func (s *Store) UpdateSocialAccount(ctx context.Context, acct social.Account) (social.Account, error) {
	existing, err := s.GetSocialAccount(ctx, acct.ID)
	if err != nil {
		return social.Account{}, err
	}

	acct.UserID = existing.UserID
	acct.Platform = existing.Platform
	acct.CreatedAt = existing.CreatedAt
	acct.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE social_accounts
		SET handle = $2, access_token = $3, refresh_token = $4, expires_at = $5, updated_at = $6
		WHERE id = $1
	`, acct.ID, acct.Handle, acct.AccessToken, acct.RefreshToken, toNullTime(acct.ExpiresAt), acct.UpdatedAt)
	if err != nil {
		return social.Account{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return social.Account{}, sql.ErrNoRows
	}
	return acct, nil
}

func (s *Store) GetSocialAccount(ctx context.Context, id string) (social.Account, error) {
	var row socialAccountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, platform, handle, access_token, refresh_token, expires_at, created_at, updated_at
		FROM social_accounts
		WHERE id = $1
	`, id)
	if err != nil {
		return social.Account{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetSocialAccountByPlatform(ctx context.Context, userID string, platform social.Platform) (social.Account, error) {
	var row socialAccountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, platform, handle, access_token, refresh_token, expires_at, created_at, updated_at
		FROM social_accounts
		WHERE user_id = $1 AND platform = $2
	`, userID, platform)
	if err != nil {
		return social.Account{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListSocialAccounts(ctx context.Context, userID string) ([]social.Account, error) {
	var rows []socialAccountRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, platform, handle, access_token, refresh_token, expires_at, created_at, updated_at
		FROM social_accounts
		WHERE $1 = '' OR user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	result := make([]social.Account, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) DeleteSocialAccount(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM social_accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) CreatePost(ctx context.Context, p social.Post) (social.Post, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	if p.PostedAt.IsZero() {
		p.PostedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, user_id, platform, external_id, content, posted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.UserID, p.Platform, p.ExternalID, p.Content, p.PostedAt, p.CreatedAt)
	if err != nil {
		return social.Post{}, err
	}
	return p, nil
}

func (s *Store) ListPosts(ctx context.Context, userID string) ([]social.Post, error) {
	var result []social.Post
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, user_id, platform, external_id, content, posted_at, created_at
		FROM posts
		WHERE user_id = $1
		ORDER BY posted_at DESC
	`, userID)
	return result, err
}

// --- SubscriptionStore -----------------------------------------------------------

func (s *Store) CreateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	sub.Wallet = strings.TrimSpace(sub.Wallet)
	if sub.PaidTier == "" {
		sub.PaidTier = subscription.TierFree
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, wallet, paid_tier, paid_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sub.ID, sub.UserID, sub.Wallet, sub.PaidTier, toNullTime(sub.PaidUntil), sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return subscription.Subscription{}, err
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	existing, err := s.GetSubscription(ctx, sub.UserID)
	if err != nil {
		return subscription.Subscription{}, err
	}

	sub.ID = existing.ID
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = time.Now().UTC()
	sub.Wallet = strings.TrimSpace(sub.Wallet)

	result, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET wallet = $2, paid_tier = $3, paid_until = $4, updated_at = $5
		WHERE user_id = $1
	`, sub.UserID, sub.Wallet, sub.PaidTier, toNullTime(sub.PaidUntil), sub.UpdatedAt)
	if err != nil {
		return subscription.Subscription{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return subscription.Subscription{}, sql.ErrNoRows
	}
	return sub, nil
}

func (s *Store) GetSubscription(ctx context.Context, userID string) (subscription.Subscription, error) {
	var row subscriptionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, wallet, paid_tier, paid_until, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return subscription.Subscription{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetSubscriptionByWallet(ctx context.Context, wallet string) (subscription.Subscription, error) {
	var row subscriptionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, wallet, paid_tier, paid_until, created_at, updated_at
		FROM subscriptions
		WHERE LOWER(wallet) = LOWER($1)
	`, strings.TrimSpace(wallet))
	if err != nil {
		return subscription.Subscription{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetUsage(ctx context.Context, userID, day string) (subscription.Usage, error) {
	var usage subscription.Usage
	err := s.db.GetContext(ctx, &usage, `
		SELECT user_id, day, posts, research, updated_at
		FROM daily_usage
		WHERE user_id = $1 AND day = $2
	`, userID, day)
	if err == sql.ErrNoRows {
		return subscription.Usage{UserID: userID, Day: day}, nil
	}
	if err != nil {
		return subscription.Usage{}, err
	}
	return usage, nil
}

func (s *Store) UpsertUsage(ctx context.Context, usage subscription.Usage) (subscription.Usage, error) {
	usage.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_usage (user_id, day, posts, research, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, day)
		DO UPDATE SET posts = $3, research = $4, updated_at = $5
	`, usage.UserID, usage.Day, usage.Posts, usage.Research, usage.UpdatedAt)
	if err != nil {
		return subscription.Usage{}, err
	}
	return usage, nil
}

// --- GamificationStore -------------------------------------------------------------

func (s *Store) GetStreak(ctx context.Context, userID string) (gamification.Streak, error) {
	var streak gamification.Streak
	err := s.db.GetContext(ctx, &streak, `
		SELECT user_id, current, longest, last_post_day, total_posts, updated_at
		FROM streaks
		WHERE user_id = $1
	`, userID)
	if err == sql.ErrNoRows {
		return gamification.Streak{UserID: userID}, nil
	}
	if err != nil {
		return gamification.Streak{}, err
	}
	return streak, nil
}

func (s *Store) UpsertStreak(ctx context.Context, streak gamification.Streak) (gamification.Streak, error) {
	streak.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streaks (user_id, current, longest, last_post_day, total_posts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id)
		DO UPDATE SET current = $2, longest = $3, last_post_day = $4, total_posts = $5, updated_at = $6
	`, streak.UserID, streak.Current, streak.Longest, streak.LastPostDay, streak.TotalPosts, streak.UpdatedAt)
	if err != nil {
		return gamification.Streak{}, err
	}
	return streak, nil
}

func (s *Store) TopStreaks(ctx context.Context, limit int) ([]gamification.Streak, error) {
	if limit <= 0 {
		limit = 10
	}
	var result []gamification.Streak
	err := s.db.SelectContext(ctx, &result, `
		SELECT user_id, current, longest, last_post_day, total_posts, updated_at
		FROM streaks
		ORDER BY current DESC, longest DESC, user_id
		LIMIT $1
	`, limit)
	return result, err
}

func (s *Store) CreateAchievement(ctx context.Context, a gamification.Achievement) (gamification.Achievement, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.UnlockedAt.IsZero() {
		a.UnlockedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO achievements (id, user_id, type, unlocked_at)
		VALUES ($1, $2, $3, $4)
	`, a.ID, a.UserID, a.Type, a.UnlockedAt)
	if err != nil {
		return gamification.Achievement{}, err
	}
	return a, nil
}

func (s *Store) ListAchievements(ctx context.Context, userID string) ([]gamification.Achievement, error) {
	var result []gamification.Achievement
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, user_id, type, unlocked_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY unlocked_at
	`, userID)
	return result, err
}

// --- WebhookStore ----------------------------------------------------------------

func (s *Store) CreateWebhook(ctx context.Context, sub webhook.Subscription) (webhook.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhooks (id, user_id, external_id, wallet, callback_url, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sub.ID, sub.UserID, sub.ExternalID, sub.Wallet, sub.CallbackURL, sub.Active, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return webhook.Subscription{}, err
	}
	return sub, nil
}

func (s *Store) UpdateWebhook(ctx context.Context, sub webhook.Subscription) (webhook.Subscription, error) {
	existing, err := s.GetWebhook(ctx, sub.ID)
	if err != nil {
		return webhook.Subscription{}, err
	}

	sub.UserID = existing.UserID
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE webhooks
		SET external_id = $2, wallet = $3, callback_url = $4, active = $5, updated_at = $6
		WHERE id = $1
	`, sub.ID, sub.ExternalID, sub.Wallet, sub.CallbackURL, sub.Active, sub.UpdatedAt)
	if err != nil {
		return webhook.Subscription{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return webhook.Subscription{}, sql.ErrNoRows
	}
	return sub, nil
}

func (s *Store) GetWebhook(ctx context.Context, id string) (webhook.Subscription, error) {
	var sub webhook.Subscription
	err := s.db.GetContext(ctx, &sub, `
		SELECT id, user_id, external_id, wallet, callback_url, active, created_at, updated_at
		FROM webhooks
		WHERE id = $1
	`, id)
	if err != nil {
		return webhook.Subscription{}, err
	}
	return sub, nil
}

func (s *Store) ListWebhooks(ctx context.Context, userID string) ([]webhook.Subscription, error) {
	var result []webhook.Subscription
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, user_id, external_id, wallet, callback_url, active, created_at, updated_at
		FROM webhooks
		WHERE $1 = '' OR user_id = $1
		ORDER BY created_at
	`, userID)
	return result, err
}

func (s *Store) RecordEvent(ctx context.Context, ev webhook.Event) (webhook.Event, bool, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.SeenAt.IsZero() {
		ev.SeenAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_events (id, type, signature, wallet, amount, raw, seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (signature) DO NOTHING
	`, ev.ID, ev.Type, ev.Signature, ev.Wallet, ev.Amount, ev.Raw, ev.SeenAt)
	if err != nil {
		return webhook.Event{}, false, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		var existing webhook.Event
		err := s.db.GetContext(ctx, &existing, `
			SELECT id, type, signature, wallet, amount, raw, seen_at
			FROM webhook_events
			WHERE signature = $1
		`, ev.Signature)
		if err != nil {
			return webhook.Event{}, false, err
		}
		return existing, false, nil
	}
	return ev, true, nil
}

// --- ScheduleStore ----------------------------------------------------------------

func (s *Store) CreateScheduledPost(ctx context.Context, p schedule.Post) (schedule.Post, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_posts (id, user_id, platform, content, rule, run_at, status, attempts, last_error, enabled, last_run, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, p.ID, p.UserID, p.Platform, p.Content, p.Rule, toNullTime(p.RunAt), p.Status, p.Attempts, p.LastError, p.Enabled, toNullTime(p.LastRun), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return schedule.Post{}, err
	}
	return p, nil
}

func (s *Store) UpdateScheduledPost(ctx context.Context, p schedule.Post) (schedule.Post, error) {
	existing, err := s.GetScheduledPost(ctx, p.ID)
	if err != nil {
		return schedule.Post{}, err
	}

	p.UserID = existing.UserID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_posts
		SET platform = $2, content = $3, rule = $4, run_at = $5, status = $6, attempts = $7, last_error = $8, enabled = $9, last_run = $10, updated_at = $11
		WHERE id = $1
	`, p.ID, p.Platform, p.Content, p.Rule, toNullTime(p.RunAt), p.Status, p.Attempts, p.LastError, p.Enabled, toNullTime(p.LastRun), p.UpdatedAt)
	if err != nil {
		return schedule.Post{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return schedule.Post{}, sql.ErrNoRows
	}
	return p, nil
}

func (s *Store) GetScheduledPost(ctx context.Context, id string) (schedule.Post, error) {
	var row scheduledPostRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, platform, content, rule, run_at, status, attempts, last_error, enabled, last_run, created_at, updated_at
		FROM scheduled_posts
		WHERE id = $1
	`, id)
	if err != nil {
		return schedule.Post{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListScheduledPosts(ctx context.Context, userID string) ([]schedule.Post, error) {
	var rows []scheduledPostRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, platform, content, rule, run_at, status, attempts, last_error, enabled, last_run, created_at, updated_at
		FROM scheduled_posts
		WHERE $1 = '' OR user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	result := make([]schedule.Post, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) ListDuePosts(ctx context.Context) ([]schedule.Post, error) {
	var rows []scheduledPostRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, platform, content, rule, run_at, status, attempts, last_error, enabled, last_run, created_at, updated_at
		FROM scheduled_posts
		WHERE enabled AND status <> 'published' AND run_at IS NOT NULL AND run_at <= NOW()
		ORDER BY run_at
	`)
	if err != nil {
		return nil, err
	}
	result := make([]schedule.Post, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// --- row helpers ------------------------------------------------------------------

// Nullable timestamp columns scan through row shadows so domain types keep
// plain time.Time fields.

type socialAccountRow struct {
	ID           string          `db:"id"`
	UserID       string          `db:"user_id"`
	Platform     social.Platform `db:"platform"`
	Handle       string          `db:"handle"`
	AccessToken  string          `db:"access_token"`
	RefreshToken string          `db:"refresh_token"`
	ExpiresAt    sql.NullTime    `db:"expires_at"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r socialAccountRow) toDomain() social.Account {
	acct := social.Account{
		ID:           r.ID,
		UserID:       r.UserID,
		Platform:     r.Platform,
		Handle:       r.Handle,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.ExpiresAt.Valid {
		acct.ExpiresAt = r.ExpiresAt.Time.UTC()
	}
	return acct
}

type subscriptionRow struct {
	ID        string            `db:"id"`
	UserID    string            `db:"user_id"`
	Wallet    string            `db:"wallet"`
	PaidTier  subscription.Tier `db:"paid_tier"`
	PaidUntil sql.NullTime      `db:"paid_until"`
	CreatedAt time.Time         `db:"created_at"`
	UpdatedAt time.Time         `db:"updated_at"`
}

func (r subscriptionRow) toDomain() subscription.Subscription {
	sub := subscription.Subscription{
		ID:        r.ID,
		UserID:    r.UserID,
		Wallet:    r.Wallet,
		PaidTier:  r.PaidTier,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.PaidUntil.Valid {
		sub.PaidUntil = r.PaidUntil.Time.UTC()
	}
	return sub
}

type scheduledPostRow struct {
	ID        string          `db:"id"`
	UserID    string          `db:"user_id"`
	Platform  string          `db:"platform"`
	Content   string          `db:"content"`
	Rule      string          `db:"rule"`
	RunAt     sql.NullTime    `db:"run_at"`
	Status    schedule.Status `db:"status"`
	Attempts  int             `db:"attempts"`
	LastError string          `db:"last_error"`
	Enabled   bool            `db:"enabled"`
	LastRun   sql.NullTime    `db:"last_run"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r scheduledPostRow) toDomain() schedule.Post {
	p := schedule.Post{
		ID:        r.ID,
		UserID:    r.UserID,
		Platform:  r.Platform,
		Content:   r.Content,
		Rule:      r.Rule,
		Status:    r.Status,
		Attempts:  r.Attempts,
		LastError: r.LastError,
		Enabled:   r.Enabled,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.RunAt.Valid {
		p.RunAt = r.RunAt.Time.UTC()
	}
	if r.LastRun.Valid {
		p.LastRun = r.LastRun.Time.UTC()
	}
	return p
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
