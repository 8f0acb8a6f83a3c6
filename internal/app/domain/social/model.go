package social

import "time"

// Platform identifies a supported social network.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformReddit    Platform = "reddit"
	PlatformInstagram Platform = "instagram"
)

// Known reports whether the platform is one the service integrates with.
func (p Platform) Known() bool {
	switch p {
	case PlatformTwitter, PlatformLinkedIn, PlatformReddit, PlatformInstagram:
		return true
	}
	return false
}

// Account holds the stored credential for one linked platform account.
// There is at most one account per (user, platform).
type Account struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Platform     Platform  `json:"platform" db:"platform"`
	Handle       string    `json:"handle" db:"handle"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ExpiresWithin reports whether the access token expires inside the window.
func (a Account) ExpiresWithin(window time.Duration, now time.Time) bool {
	if a.ExpiresAt.IsZero() {
		return false
	}
	return a.ExpiresAt.Before(now.Add(window))
}

// Post records a piece of content published to a platform.
type Post struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Platform   Platform  `json:"platform" db:"platform"`
	ExternalID string    `json:"external_id" db:"external_id"`
	Content    string    `json:"content" db:"content"`
	PostedAt   time.Time `json:"posted_at" db:"posted_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
