package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/postlane/platform/internal/app/domain/schedule"
	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/app/storage"
	"github.com/postlane/platform/pkg/logger"
)

// Service manages scheduled posts: one-shot at a fixed time or recurring on
// a standard cron rule.
type Service struct {
	users storage.UserStore
	store storage.ScheduleStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a scheduler service.
func New(users storage.UserStore, store storage.ScheduleStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("scheduler")
	}
	return &Service{
		users: users,
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// Schedule queues content for publication. Rule, when set, must be a
// standard five-field cron expression; RunAt is then derived from it.
func (s *Service) Schedule(ctx context.Context, userID string, platform social.Platform, content, rule string, runAt time.Time) (schedule.Post, error) {
	userID = strings.TrimSpace(userID)
	content = strings.TrimSpace(content)
	rule = strings.TrimSpace(rule)
	if userID == "" {
		return schedule.Post{}, fmt.Errorf("user_id is required")
	}
	if !platform.Known() {
		return schedule.Post{}, fmt.Errorf("unknown platform %q", platform)
	}
	if content == "" {
		return schedule.Post{}, fmt.Errorf("content is required")
	}

	if s.users != nil {
		if _, err := s.users.GetUser(ctx, userID); err != nil {
			return schedule.Post{}, fmt.Errorf("user validation failed: %w", err)
		}
	}

	post := schedule.Post{
		UserID:   userID,
		Platform: string(platform),
		Content:  content,
		Rule:     rule,
		RunAt:    runAt.UTC(),
		Status:   schedule.StatusPending,
		Enabled:  true,
	}

	if rule != "" {
		sched, err := cron.ParseStandard(rule)
		if err != nil {
			return schedule.Post{}, fmt.Errorf("invalid cron rule %q: %w", rule, err)
		}
		post.RunAt = sched.Next(s.now().UTC())
	} else if runAt.IsZero() {
		return schedule.Post{}, fmt.Errorf("run_at or rule is required")
	}

	post, err := s.store.CreateScheduledPost(ctx, post)
	if err != nil {
		return schedule.Post{}, err
	}
	s.log.WithField("user_id", userID).
		WithField("post_id", post.ID).
		WithField("run_at", post.RunAt).
		Info("post scheduled")
	return post, nil
}

// Get returns a scheduled post, enforcing ownership.
func (s *Service) Get(ctx context.Context, userID, id string) (schedule.Post, error) {
	post, err := s.store.GetScheduledPost(ctx, id)
	if err != nil {
		return schedule.Post{}, err
	}
	if post.UserID != userID {
		return schedule.Post{}, fmt.Errorf("scheduled post %s does not belong to user %s", id, userID)
	}
	return post, nil
}

// List returns a user's scheduled posts.
func (s *Service) List(ctx context.Context, userID string) ([]schedule.Post, error) {
	return s.store.ListScheduledPosts(ctx, userID)
}

// SetEnabled pauses or resumes a scheduled post.
func (s *Service) SetEnabled(ctx context.Context, userID, id string, enabled bool) (schedule.Post, error) {
	post, err := s.Get(ctx, userID, id)
	if err != nil {
		return schedule.Post{}, err
	}
	post.Enabled = enabled
	return s.store.UpdateScheduledPost(ctx, post)
}

// UpdateContent replaces the content of a pending scheduled post.
func (s *Service) UpdateContent(ctx context.Context, userID, id, content string) (schedule.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return schedule.Post{}, fmt.Errorf("content is required")
	}
	post, err := s.Get(ctx, userID, id)
	if err != nil {
		return schedule.Post{}, err
	}
	if post.Status == schedule.StatusPublished && !post.Recurring() {
		return schedule.Post{}, fmt.Errorf("scheduled post %s already published", id)
	}
	post.Content = content
	return s.store.UpdateScheduledPost(ctx, post)
}
