package research

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/postlane/platform/internal/app/cache"
	"github.com/postlane/platform/internal/app/domain/research"
	"github.com/postlane/platform/pkg/logger"
)

// Source fetches research items for a topic from one upstream.
type Source interface {
	Name() string
	Fetch(ctx context.Context, topic string, limit int) ([]research.Item, error)
}

// Summarizer condenses a merged result set into a short brief.
type Summarizer interface {
	Summarize(ctx context.Context, topic string, items []research.Item) (string, error)
}

// Service fans a topic out to all registered sources and merges the results.
// Bundles are cached per topic; expiry triggers a single refetch.
type Service struct {
	sources    []Source
	summarizer Summarizer
	loader     *cache.Loader
	ttl        time.Duration
	perSource  int
	timeout    time.Duration
	log        *logger.Logger
	now        func() time.Time
}

// New constructs a research service over the given sources.
func New(sources []Source, backend cache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("research")
	}
	if backend == nil {
		backend = cache.NewMemory()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		sources:   sources,
		loader:    cache.NewLoader(backend),
		ttl:       ttl,
		perSource: 10,
		timeout:   15 * time.Second,
		log:       log,
		now:       time.Now,
	}
}

// AttachSummarizer enables bundle summaries. Without one, bundles carry only
// the raw items.
func (s *Service) AttachSummarizer(sum Summarizer) {
	s.summarizer = sum
}

// Research returns the cached or freshly assembled bundle for a topic.
func (s *Service) Research(ctx context.Context, topic string) (research.Bundle, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return research.Bundle{}, fmt.Errorf("topic is required")
	}
	if len(s.sources) == 0 {
		return research.Bundle{}, fmt.Errorf("no research sources configured")
	}

	value, err := s.loader.GetOrFill(ctx, topicKey(topic), s.ttl, func(ctx context.Context) ([]byte, error) {
		bundle, err := s.assemble(ctx, topic)
		if err != nil {
			return nil, err
		}
		return json.Marshal(bundle)
	})
	if err != nil {
		return research.Bundle{}, err
	}

	var bundle research.Bundle
	if err := json.Unmarshal(value, &bundle); err != nil {
		return research.Bundle{}, fmt.Errorf("decode cached bundle: %w", err)
	}
	return bundle, nil
}

// assemble queries every source concurrently. Individual source failures are
// recorded on the bundle; only all sources failing is an error.
func (s *Service) assemble(ctx context.Context, topic string) (research.Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		source string
		items  []research.Item
		err    error
	}

	results := make(chan result, len(s.sources))
	var wg sync.WaitGroup
	for _, src := range s.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			items, err := src.Fetch(ctx, topic, s.perSource)
			results <- result{source: src.Name(), items: items, err: err}
		}(src)
	}
	wg.Wait()
	close(results)

	bundle := research.Bundle{
		Topic:     topic,
		FetchedAt: s.now().UTC(),
	}
	for r := range results {
		if r.err != nil {
			s.log.WithError(r.err).
				WithField("source", r.source).
				WithField("topic", topic).
				Warn("research source failed")
			bundle.Failed = append(bundle.Failed, r.source)
			continue
		}
		bundle.Sources = append(bundle.Sources, r.source)
		bundle.Items = append(bundle.Items, r.items...)
	}
	if len(bundle.Sources) == 0 {
		return research.Bundle{}, fmt.Errorf("all research sources failed for topic %q", topic)
	}

	sort.SliceStable(bundle.Items, func(i, j int) bool {
		return bundle.Items[i].PublishedAt.After(bundle.Items[j].PublishedAt)
	})
	sort.Strings(bundle.Sources)
	sort.Strings(bundle.Failed)

	if s.summarizer != nil && len(bundle.Items) > 0 {
		summary, err := s.summarizer.Summarize(ctx, topic, bundle.Items)
		if err != nil {
			s.log.WithError(err).WithField("topic", topic).Warn("summarizer failed")
		} else {
			bundle.Summary = strings.TrimSpace(summary)
		}
	}
	return bundle, nil
}

// Invalidate drops the cached bundle for a topic.
func (s *Service) Invalidate(ctx context.Context, topic string) {
	if err := s.loader.Invalidate(ctx, topicKey(topic)); err != nil {
		s.log.WithError(err).WithField("topic", topic).Warn("invalidate research cache failed")
	}
}

func topicKey(topic string) string {
	return "research:" + strings.ToLower(strings.TrimSpace(topic))
}
