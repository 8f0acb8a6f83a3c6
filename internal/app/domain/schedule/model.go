package schedule

import "time"

// Status tracks the lifecycle of a scheduled post.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Post is a piece of content queued for publication. Rule is either a cron
// expression (recurring) or empty, in which case RunAt is a one-shot time.
type Post struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Platform  string    `json:"platform" db:"platform"`
	Content   string    `json:"content" db:"content"`
	Rule      string    `json:"rule" db:"rule"`
	RunAt     time.Time `json:"run_at" db:"run_at"`
	Status    Status    `json:"status" db:"status"`
	Attempts  int       `json:"attempts" db:"attempts"`
	LastError string    `json:"last_error" db:"last_error"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	LastRun   time.Time `json:"last_run" db:"last_run"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Recurring reports whether the post repeats on a cron rule.
func (p Post) Recurring() bool { return p.Rule != "" }

// Due reports whether the post should be published at now.
func (p Post) Due(now time.Time) bool {
	if !p.Enabled || p.Status == StatusPublished {
		return false
	}
	return !p.RunAt.IsZero() && !p.RunAt.After(now)
}
