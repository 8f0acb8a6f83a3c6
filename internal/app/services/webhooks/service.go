package webhooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/postlane/platform/internal/app/domain/webhook"
	"github.com/postlane/platform/internal/app/storage"
	"github.com/postlane/platform/internal/httputil"
	"github.com/postlane/platform/pkg/logger"
)

// Provider registers and removes webhooks with the upstream notification
// service.
type Provider interface {
	Register(ctx context.Context, wallet, callbackURL string) (externalID string, err error)
	Remove(ctx context.Context, externalID string) error
}

// Service manages webhook registrations for wallet activity.
type Service struct {
	users    storage.UserStore
	store    storage.WebhookStore
	provider Provider
	log      *logger.Logger
}

// New constructs a webhooks service. Without a provider, registrations are
// stored locally only.
func New(users storage.UserStore, store storage.WebhookStore, provider Provider, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("webhooks")
	}
	return &Service{
		users:    users,
		store:    store,
		provider: provider,
		log:      log,
	}
}

// Register creates a webhook for a wallet, registering it upstream when a
// provider is configured.
func (s *Service) Register(ctx context.Context, userID, wallet, callbackURL string) (webhook.Subscription, error) {
	userID = strings.TrimSpace(userID)
	wallet = strings.TrimSpace(wallet)
	callbackURL = strings.TrimSpace(callbackURL)
	if userID == "" {
		return webhook.Subscription{}, fmt.Errorf("user_id is required")
	}
	if wallet == "" {
		return webhook.Subscription{}, fmt.Errorf("wallet is required")
	}
	if callbackURL == "" {
		return webhook.Subscription{}, fmt.Errorf("callback_url is required")
	}

	if s.users != nil {
		if _, err := s.users.GetUser(ctx, userID); err != nil {
			return webhook.Subscription{}, fmt.Errorf("user validation failed: %w", err)
		}
	}

	sub := webhook.Subscription{
		UserID:      userID,
		Wallet:      wallet,
		CallbackURL: callbackURL,
		Active:      true,
	}

	if s.provider != nil {
		externalID, err := s.provider.Register(ctx, wallet, callbackURL)
		if err != nil {
			return webhook.Subscription{}, fmt.Errorf("provider registration failed: %w", err)
		}
		sub.ExternalID = externalID
	}

	sub, err := s.store.CreateWebhook(ctx, sub)
	if err != nil {
		return webhook.Subscription{}, err
	}
	s.log.WithField("user_id", userID).
		WithField("webhook_id", sub.ID).
		Info("webhook registered")
	return sub, nil
}

// Deactivate disables a webhook, removing it upstream when registered there.
func (s *Service) Deactivate(ctx context.Context, userID, id string) error {
	sub, err := s.store.GetWebhook(ctx, id)
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return fmt.Errorf("webhook %s does not belong to user %s", id, userID)
	}
	if !sub.Active {
		return nil
	}

	if s.provider != nil && sub.ExternalID != "" {
		if err := s.provider.Remove(ctx, sub.ExternalID); err != nil {
			s.log.WithError(err).
				WithField("webhook_id", id).
				Warn("provider removal failed; deactivating locally")
		}
	}

	sub.Active = false
	if _, err := s.store.UpdateWebhook(ctx, sub); err != nil {
		return err
	}
	s.log.WithField("webhook_id", id).Info("webhook deactivated")
	return nil
}

// List returns a user's webhooks.
func (s *Service) List(ctx context.Context, userID string) ([]webhook.Subscription, error) {
	return s.store.ListWebhooks(ctx, userID)
}

// HTTPProvider registers webhooks against an enhanced-transactions API.
type HTTPProvider struct {
	client *httputil.Client
}

// NewHTTPProvider constructs a provider over the given API host.
func NewHTTPProvider(cfg httputil.ClientConfig) *HTTPProvider {
	return &HTTPProvider{client: httputil.NewClient(cfg)}
}

func (p *HTTPProvider) Register(ctx context.Context, wallet, callbackURL string) (string, error) {
	payload := map[string]interface{}{
		"webhookURL":       callbackURL,
		"accountAddresses": []string{wallet},
		"transactionTypes": []string{"TRANSFER"},
		"webhookType":      "enhanced",
	}
	resp, err := p.client.Post(ctx, "/v0/webhooks", payload)
	if err != nil {
		return "", fmt.Errorf("create provider webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, 1<<20)
	if err != nil {
		return "", fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	id := gjson.GetBytes(body, "webhookID")
	if !id.Exists() || id.String() == "" {
		return "", fmt.Errorf("provider response missing webhookID")
	}
	return id.String(), nil
}

func (p *HTTPProvider) Remove(ctx context.Context, externalID string) error {
	resp, err := p.client.Delete(ctx, "/v0/webhooks/"+externalID)
	if err != nil {
		return fmt.Errorf("delete provider webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 && resp.StatusCode != 204 {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return nil
}
