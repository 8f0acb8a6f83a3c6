package gamification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/postlane/platform/internal/app/domain/gamification"
	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/app/storage"
	"github.com/postlane/platform/pkg/logger"
)

const dayFormat = "2006-01-02"

// Unlock thresholds.
const (
	weekStreakDays   = 7
	monthStreakDays  = 30
	centuryPostCount = 100
)

// Service maintains posting streaks and unlocks achievements. It consumes
// published posts as a social.PostSink.
type Service struct {
	users storage.UserStore
	store storage.GamificationStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a gamification service.
func New(users storage.UserStore, store storage.GamificationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("gamification")
	}
	return &Service{
		users: users,
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// PostRecorded advances the user's streak for the post's day and unlocks any
// newly earned achievements.
func (s *Service) PostRecorded(ctx context.Context, post social.Post) error {
	if strings.TrimSpace(post.UserID) == "" {
		return fmt.Errorf("user_id is required")
	}

	postedAt := post.PostedAt
	if postedAt.IsZero() {
		postedAt = s.now()
	}

	streak, err := s.advanceStreak(ctx, post.UserID, postedAt)
	if err != nil {
		return err
	}
	return s.unlock(ctx, streak)
}

// advanceStreak applies one post on the given day: a consecutive day extends
// the streak, the same day leaves it unchanged, a gap resets it to 1.
func (s *Service) advanceStreak(ctx context.Context, userID string, postedAt time.Time) (gamification.Streak, error) {
	streak, err := s.store.GetStreak(ctx, userID)
	if err != nil {
		return gamification.Streak{}, err
	}

	day := postedAt.UTC().Format(dayFormat)
	switch streak.LastPostDay {
	case day:
		// Second post of the same day.
	case previousDay(day):
		streak.Current++
	default:
		streak.Current = 1
	}
	if streak.Current > streak.Longest {
		streak.Longest = streak.Current
	}

	streak.UserID = userID
	streak.LastPostDay = day
	streak.TotalPosts++
	streak.UpdatedAt = s.now().UTC()

	streak, err = s.store.UpsertStreak(ctx, streak)
	if err != nil {
		return gamification.Streak{}, err
	}
	s.log.WithField("user_id", userID).
		WithField("current", streak.Current).
		Debug("streak advanced")
	return streak, nil
}

func (s *Service) unlock(ctx context.Context, streak gamification.Streak) error {
	earned := map[gamification.AchievementType]bool{}
	existing, err := s.store.ListAchievements(ctx, streak.UserID)
	if err != nil {
		return err
	}
	for _, a := range existing {
		earned[a.Type] = true
	}

	candidates := []struct {
		typ gamification.AchievementType
		ok  bool
	}{
		{gamification.AchieveFirstPost, streak.TotalPosts >= 1},
		{gamification.AchieveWeekStreak, streak.Current >= weekStreakDays},
		{gamification.AchieveMonthStreak, streak.Current >= monthStreakDays},
		{gamification.AchieveCenturyPosts, streak.TotalPosts >= centuryPostCount},
	}

	for _, c := range candidates {
		if !c.ok || earned[c.typ] {
			continue
		}
		_, err := s.store.CreateAchievement(ctx, gamification.Achievement{
			UserID:     streak.UserID,
			Type:       c.typ,
			UnlockedAt: s.now().UTC(),
		})
		if err != nil {
			// Unique (user, type) makes a concurrent unlock harmless.
			s.log.WithError(err).
				WithField("user_id", streak.UserID).
				WithField("type", c.typ).
				Warn("achievement unlock skipped")
			continue
		}
		s.log.WithField("user_id", streak.UserID).
			WithField("type", c.typ).
			Info("achievement unlocked")
	}
	return nil
}

// Streak returns the user's current streak. Users who never posted get a
// zero-valued streak.
func (s *Service) Streak(ctx context.Context, userID string) (gamification.Streak, error) {
	return s.store.GetStreak(ctx, userID)
}

// Achievements lists the achievements a user has unlocked.
func (s *Service) Achievements(ctx context.Context, userID string) ([]gamification.Achievement, error) {
	return s.store.ListAchievements(ctx, userID)
}

// Leaderboard returns the top streaks joined with display names.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]gamification.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	streaks, err := s.store.TopStreaks(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]gamification.LeaderboardEntry, 0, len(streaks))
	for _, st := range streaks {
		entry := gamification.LeaderboardEntry{
			UserID:  st.UserID,
			Current: st.Current,
			Longest: st.Longest,
		}
		if s.users != nil {
			if u, err := s.users.GetUser(ctx, st.UserID); err == nil {
				entry.DisplayName = u.DisplayName
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// previousDay returns the day key immediately before the given one, or ""
// when the key does not parse.
func previousDay(day string) string {
	t, err := time.Parse(dayFormat, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(dayFormat)
}
