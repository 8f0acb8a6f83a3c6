package gamification

import "time"

// Streak tracks consecutive posting days for one user. One row per user.
type Streak struct {
	UserID      string    `json:"user_id" db:"user_id"`
	Current     int       `json:"current" db:"current"`
	Longest     int       `json:"longest" db:"longest"`
	LastPostDay string    `json:"last_post_day" db:"last_post_day"`
	TotalPosts  int       `json:"total_posts" db:"total_posts"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// AchievementType identifies an unlockable achievement.
type AchievementType string

const (
	AchieveFirstPost    AchievementType = "first_post"
	AchieveWeekStreak   AchievementType = "week_streak"
	AchieveMonthStreak  AchievementType = "month_streak"
	AchieveCenturyPosts AchievementType = "century_posts"
)

// Achievement is an unlocked achievement. At most one per (user, type).
type Achievement struct {
	ID         string          `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	Type       AchievementType `json:"type" db:"type"`
	UnlockedAt time.Time       `json:"unlocked_at" db:"unlocked_at"`
}

// LeaderboardEntry is one ranked row in the streak leaderboard.
type LeaderboardEntry struct {
	UserID      string `json:"user_id" db:"user_id"`
	DisplayName string `json:"display_name" db:"display_name"`
	Current     int    `json:"current" db:"current"`
	Longest     int    `json:"longest" db:"longest"`
}
