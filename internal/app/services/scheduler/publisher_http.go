package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/postlane/platform/internal/app/domain/schedule"
	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/app/storage"
	"github.com/postlane/platform/internal/httputil"
	"github.com/postlane/platform/pkg/logger"
)

// HTTPPublisher posts content to platform publish endpoints using the user's
// stored credential.
type HTTPPublisher struct {
	accounts  storage.SocialStore
	endpoints map[social.Platform]string
	client    *http.Client
	log       *logger.Logger
}

// NewHTTPPublisher constructs a publisher. endpoints maps each platform to
// its publish URL.
func NewHTTPPublisher(accounts storage.SocialStore, endpoints map[social.Platform]string, timeout time.Duration, log *logger.Logger) *HTTPPublisher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("publisher")
	}
	return &HTTPPublisher{
		accounts:  accounts,
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
		log:       log,
	}
}

func (p *HTTPPublisher) Publish(ctx context.Context, post schedule.Post) (string, error) {
	platform := social.Platform(post.Platform)
	endpoint, ok := p.endpoints[platform]
	if !ok {
		return "", fmt.Errorf("no publish endpoint for platform %s", platform)
	}

	acct, err := p.accounts.GetSocialAccountByPlatform(ctx, post.UserID, platform)
	if err != nil {
		return "", fmt.Errorf("load %s credential: %w", platform, err)
	}

	payload, err := json.Marshal(map[string]string{"text": post.Content})
	if err != nil {
		return "", fmt.Errorf("marshal publish payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+acct.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", platform, err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, 1<<20)
	if err != nil {
		return "", fmt.Errorf("read publish response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("platform %s returned status %d", platform, resp.StatusCode)
	}

	id := gjson.GetBytes(body, "id")
	if !id.Exists() {
		id = gjson.GetBytes(body, "data.id")
	}
	if id.String() == "" {
		return "", fmt.Errorf("publish response missing post id")
	}
	return id.String(), nil
}
