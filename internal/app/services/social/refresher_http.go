package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/httputil"
	"github.com/postlane/platform/pkg/logger"
)

// HTTPTokenRefresher posts refresh grants to per-platform token endpoints.
type HTTPTokenRefresher struct {
	client    *http.Client
	endpoints map[social.Platform]*url.URL
	log       *logger.Logger
}

var _ TokenRefresher = (*HTTPTokenRefresher)(nil)

// NewHTTPTokenRefresher constructs a refresher from platform token endpoints.
func NewHTTPTokenRefresher(client *http.Client, endpoints map[social.Platform]string, log *logger.Logger) (*HTTPTokenRefresher, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one token endpoint required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("social-token-refresher")
	}

	parsed := make(map[social.Platform]*url.URL, len(endpoints))
	for platform, endpoint := range endpoints {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint == "" {
			continue
		}
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse token endpoint for %s: %w", platform, err)
		}
		parsed[platform] = u
	}
	return &HTTPTokenRefresher{client: client, endpoints: parsed, log: log}, nil
}

func (r *HTTPTokenRefresher) Refresh(ctx context.Context, acct social.Account) (string, string, time.Time, error) {
	endpoint, ok := r.endpoints[acct.Platform]
	if !ok {
		return "", "", time.Time{}, fmt.Errorf("no token endpoint configured for %s", acct.Platform)
	}
	if strings.TrimSpace(acct.RefreshToken) == "" {
		return "", "", time.Time{}, fmt.Errorf("account %s has no refresh token", acct.ID)
	}

	payload, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": acct.RefreshToken,
	})
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", time.Time{}, fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	body, err := httputil.ReadAllStrict(resp.Body, 1<<20)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("read token response: %w", err)
	}

	access := gjson.GetBytes(body, "access_token").String()
	if access == "" {
		return "", "", time.Time{}, fmt.Errorf("token response missing access_token")
	}
	refresh := gjson.GetBytes(body, "refresh_token").String()

	expiresAt := time.Time{}
	if seconds := gjson.GetBytes(body, "expires_in").Int(); seconds > 0 {
		expiresAt = time.Now().UTC().Add(time.Duration(seconds) * time.Second)
	}
	return access, refresh, expiresAt, nil
}
