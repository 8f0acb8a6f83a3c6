package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/postlane/platform/internal/app/cache"
	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/app/domain/webhook"
	gamificationsvc "github.com/postlane/platform/internal/app/services/gamification"
	researchsvc "github.com/postlane/platform/internal/app/services/research"
	schedulersvc "github.com/postlane/platform/internal/app/services/scheduler"
	socialsvc "github.com/postlane/platform/internal/app/services/social"
	subscriptionsvc "github.com/postlane/platform/internal/app/services/subscription"
	userssvc "github.com/postlane/platform/internal/app/services/users"
	webhookssvc "github.com/postlane/platform/internal/app/services/webhooks"
	"github.com/postlane/platform/internal/app/storage"
	"github.com/postlane/platform/internal/app/storage/memory"
	"github.com/postlane/platform/internal/app/system"
	"github.com/postlane/platform/internal/config"
	"github.com/postlane/platform/internal/httputil"
	"github.com/postlane/platform/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Social        storage.SocialStore
	Subscriptions storage.SubscriptionStore
	Gamification  storage.GamificationStore
	Webhooks      storage.WebhookStore
	Schedule      storage.ScheduleStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Users         *userssvc.Service
	Social        *socialsvc.Service
	Subscriptions *subscriptionsvc.Service
	Gamification  *gamificationsvc.Service
	Research      *researchsvc.Service
	Webhooks      *webhookssvc.Service
	Dispatcher    *webhookssvc.Dispatcher
	Scheduler     *schedulersvc.Service
}

// New builds a fully initialised application from configuration. backend is
// the shared cache; nil selects the in-memory cache.
func New(cfg config.Config, stores Stores, backend cache.Cache, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Social == nil {
		stores.Social = mem
	}
	if stores.Subscriptions == nil {
		stores.Subscriptions = mem
	}
	if stores.Gamification == nil {
		stores.Gamification = mem
	}
	if stores.Webhooks == nil {
		stores.Webhooks = mem
	}
	if stores.Schedule == nil {
		stores.Schedule = mem
	}
	if backend == nil {
		backend = cache.NewMemory()
	}

	manager := system.NewManager()

	usersService := userssvc.New(stores.Users, []byte(cfg.Auth.Secret), cfg.Auth.TokenTTL, log)
	socialService := socialsvc.New(stores.Users, stores.Social, log)
	subscriptionService := subscriptionsvc.New(stores.Users, stores.Subscriptions, backend, cfg.Tiers.BalanceTTL, log)
	gamificationService := gamificationsvc.New(stores.Users, stores.Gamification, log)
	schedulerService := schedulersvc.New(stores.Users, stores.Schedule, log)

	// Every recorded post feeds streaks and achievements.
	socialService.AttachSink(gamificationService)

	if cfg.Tiers.RPCEndpoint != "" && cfg.Tiers.TokenMint != "" {
		fetcher, err := subscriptionsvc.NewHTTPBalanceFetcher(subscriptionsvc.HTTPBalanceFetcherConfig{
			Endpoint: cfg.Tiers.RPCEndpoint,
			Mint:     cfg.Tiers.TokenMint,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("configure balance fetcher: %w", err)
		}
		subscriptionService.AttachFetcher(fetcher)
	} else {
		log.Warn("tiers.rpc_endpoint not set; token tiers disabled")
	}

	researchService := researchsvc.New(buildResearchSources(cfg.Research), backend, cfg.Research.CacheTTL, log)
	if cfg.Research.GroqAPIKey != "" {
		researchService.AttachSummarizer(researchsvc.NewGroqSummarizer("", cfg.Research.GroqAPIKey, cfg.Research.GroqModel, 0))
	}

	var provider webhookssvc.Provider
	if cfg.Webhooks.ProviderURL != "" {
		provider = webhookssvc.NewHTTPProvider(httputil.ClientConfig{
			BaseURL: cfg.Webhooks.ProviderURL,
			APIKey:  cfg.Webhooks.ProviderKey,
		})
	} else {
		log.Warn("webhooks.provider_url not set; registrations stored locally only")
	}
	webhooksService := webhookssvc.New(stores.Users, stores.Webhooks, provider, log)

	if cfg.Webhooks.Secret == "" {
		log.Warn("webhooks.secret not set; inbound event deliveries are unauthenticated")
	}
	dispatcher := webhookssvc.NewDispatcher(webhooksService, cfg.Webhooks.Secret, log)
	dispatcher.On(webhook.EventTokenTransfer, func(ctx context.Context, ev webhook.Event) error {
		subscriptionService.InvalidateWallet(ctx, ev.Wallet)
		return nil
	})
	dispatcher.On(webhook.EventPayment, func(ctx context.Context, ev webhook.Event) error {
		subscriptionService.InvalidateWallet(ctx, ev.Wallet)
		return nil
	})

	refresher := socialsvc.NewRefresher(socialService, log)
	if endpoints := platformEndpoints("SOCIAL_TOKEN_URL"); len(endpoints) > 0 {
		tokenRefresher, err := socialsvc.NewHTTPTokenRefresher(&http.Client{Timeout: 10 * time.Second}, endpoints, log)
		if err != nil {
			log.WithError(err).Warn("configure token refresher")
		} else {
			refresher.WithRefresher(tokenRefresher)
		}
	} else {
		log.Warn("no SOCIAL_TOKEN_URL_* endpoints set; credential refresh disabled")
	}

	var runner system.Service
	if endpoints := platformEndpoints("SOCIAL_PUBLISH_URL"); len(endpoints) > 0 {
		publisher := schedulersvc.NewHTTPPublisher(stores.Social, endpoints, 0, log)
		runner = schedulersvc.NewRunner(schedulerService, publisher, subscriptionService, socialService, log)
	} else {
		log.Warn("no SOCIAL_PUBLISH_URL_* endpoints set; schedule runner disabled")
	}

	services := []system.Service{refresher}
	if runner != nil {
		services = append(services, runner)
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:       manager,
		log:           log,
		Users:         usersService,
		Social:        socialService,
		Subscriptions: subscriptionService,
		Gamification:  gamificationService,
		Research:      researchService,
		Webhooks:      webhooksService,
		Dispatcher:    dispatcher,
		Scheduler:     schedulerService,
	}, nil
}

// buildResearchSources assembles the configured research sources. Reddit and
// CoinGecko are always on; RSS feeds come from configuration.
func buildResearchSources(cfg config.ResearchConfig) []researchsvc.Source {
	sources := []researchsvc.Source{
		researchsvc.NewRedditSource(cfg.RedditBaseURL, 0),
		researchsvc.NewCoinGeckoSource("", cfg.CoinGeckoAPIKey, 0),
	}
	for _, feed := range cfg.RSSFeeds {
		if feed.Name == "" || feed.URL == "" {
			continue
		}
		sources = append(sources, researchsvc.NewRSSSource(feed.Name, feed.URL, 0))
	}
	return sources
}

// platformEndpoints collects per-platform endpoints from environment
// variables named <prefix>_<PLATFORM>.
func platformEndpoints(prefix string) map[social.Platform]string {
	endpoints := make(map[social.Platform]string)
	for _, platform := range []social.Platform{
		social.PlatformTwitter,
		social.PlatformLinkedIn,
		social.PlatformReddit,
		social.PlatformInstagram,
	} {
		key := prefix + "_" + strings.ToUpper(string(platform))
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			endpoints[platform] = v
		}
	}
	return endpoints
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
