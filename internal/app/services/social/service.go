package social

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/app/storage"
	"github.com/postlane/platform/pkg/logger"
)

// PostSink is notified whenever a post is recorded. The gamification service
// implements this to maintain streaks and achievements.
type PostSink interface {
	PostRecorded(ctx context.Context, post social.Post) error
}

// Service manages linked platform accounts and published posts.
type Service struct {
	users storage.UserStore
	store storage.SocialStore
	log   *logger.Logger
	sinks []PostSink
}

// New constructs a social account service.
func New(users storage.UserStore, store storage.SocialStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("social")
	}
	return &Service{users: users, store: store, log: log}
}

// AttachSink registers a post sink. Call before serving traffic.
func (s *Service) AttachSink(sink PostSink) {
	if sink != nil {
		s.sinks = append(s.sinks, sink)
	}
}

// Link stores a platform credential for a user. One account per platform.
func (s *Service) Link(ctx context.Context, userID string, platform social.Platform, handle, accessToken, refreshToken string, expiresAt time.Time) (social.Account, error) {
	userID = strings.TrimSpace(userID)
	handle = strings.TrimSpace(handle)
	platform = social.Platform(strings.ToLower(strings.TrimSpace(string(platform))))

	if userID == "" {
		return social.Account{}, fmt.Errorf("user_id is required")
	}
	if !platform.Known() {
		return social.Account{}, fmt.Errorf("unsupported platform %q", platform)
	}
	if strings.TrimSpace(accessToken) == "" {
		return social.Account{}, fmt.Errorf("access_token is required")
	}

	if s.users != nil {
		if _, err := s.users.GetUser(ctx, userID); err != nil {
			return social.Account{}, fmt.Errorf("user validation failed: %w", err)
		}
	}

	acct := social.Account{
		UserID:       userID,
		Platform:     platform,
		Handle:       handle,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt.UTC(),
	}
	acct, err := s.store.CreateSocialAccount(ctx, acct)
	if err != nil {
		return social.Account{}, err
	}
	s.log.WithField("account_id", acct.ID).
		WithField("user_id", userID).
		WithField("platform", platform).
		Info("social account linked")
	return acct, nil
}

// Unlink removes a linked account.
func (s *Service) Unlink(ctx context.Context, accountID string) error {
	acct, err := s.store.GetSocialAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSocialAccount(ctx, accountID); err != nil {
		return err
	}
	s.log.WithField("account_id", accountID).
		WithField("user_id", acct.UserID).
		WithField("platform", acct.Platform).
		Info("social account unlinked")
	return nil
}

// List returns linked accounts for a user.
func (s *Service) List(ctx context.Context, userID string) ([]social.Account, error) {
	return s.store.ListSocialAccounts(ctx, userID)
}

// Get retrieves a linked account.
func (s *Service) Get(ctx context.Context, accountID string) (social.Account, error) {
	return s.store.GetSocialAccount(ctx, accountID)
}

// UpdateCredential replaces the stored tokens, typically after a refresh.
func (s *Service) UpdateCredential(ctx context.Context, accountID, accessToken, refreshToken string, expiresAt time.Time) (social.Account, error) {
	acct, err := s.store.GetSocialAccount(ctx, accountID)
	if err != nil {
		return social.Account{}, err
	}
	if strings.TrimSpace(accessToken) == "" {
		return social.Account{}, fmt.Errorf("access_token is required")
	}

	acct.AccessToken = accessToken
	if strings.TrimSpace(refreshToken) != "" {
		acct.RefreshToken = refreshToken
	}
	acct.ExpiresAt = expiresAt.UTC()
	return s.store.UpdateSocialAccount(ctx, acct)
}

// ListExpiring returns accounts whose tokens expire within the window.
func (s *Service) ListExpiring(ctx context.Context, window time.Duration) ([]social.Account, error) {
	accounts, err := s.store.ListSocialAccounts(ctx, "")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	result := make([]social.Account, 0)
	for _, acct := range accounts {
		if acct.ExpiresWithin(window, now) {
			result = append(result, acct)
		}
	}
	return result, nil
}

// RecordPost persists a published post and notifies sinks. The platform must
// be linked for the user.
func (s *Service) RecordPost(ctx context.Context, userID string, platform social.Platform, externalID, content string) (social.Post, error) {
	platform = social.Platform(strings.ToLower(strings.TrimSpace(string(platform))))
	if !platform.Known() {
		return social.Post{}, fmt.Errorf("unsupported platform %q", platform)
	}
	if _, err := s.store.GetSocialAccountByPlatform(ctx, userID, platform); err != nil {
		return social.Post{}, fmt.Errorf("platform validation failed: %w", err)
	}

	post := social.Post{
		UserID:     userID,
		Platform:   platform,
		ExternalID: strings.TrimSpace(externalID),
		Content:    content,
		PostedAt:   time.Now().UTC(),
	}
	post, err := s.store.CreatePost(ctx, post)
	if err != nil {
		return social.Post{}, err
	}

	for _, sink := range s.sinks {
		if err := sink.PostRecorded(ctx, post); err != nil {
			s.log.WithError(err).
				WithField("post_id", post.ID).
				Warn("post sink failed")
		}
	}

	s.log.WithField("post_id", post.ID).
		WithField("user_id", userID).
		WithField("platform", platform).
		Info("post recorded")
	return post, nil
}

// ListPosts returns recorded posts for a user.
func (s *Service) ListPosts(ctx context.Context, userID string) ([]social.Post, error) {
	return s.store.ListPosts(ctx, userID)
}
