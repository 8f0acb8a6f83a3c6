package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/postlane/platform/internal/app/domain/schedule"
	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/app/system"
	"github.com/postlane/platform/pkg/logger"
)

var _ system.Service = (*Runner)(nil)

// Publisher delivers content to a social platform and returns the platform's
// post ID.
type Publisher interface {
	Publish(ctx context.Context, post schedule.Post) (externalID string, err error)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, post schedule.Post) (string, error)

func (f PublisherFunc) Publish(ctx context.Context, post schedule.Post) (string, error) {
	return f(ctx, post)
}

// UsageGate charges a publication against the user's daily allowance.
type UsageGate interface {
	ConsumePost(ctx context.Context, userID string) error
}

// Recorder records a successful publication.
type Recorder interface {
	RecordPost(ctx context.Context, userID string, platform social.Platform, externalID, content string) (social.Post, error)
}

const maxPublishAttempts = 5

// Runner periodically scans for due posts and publishes them.
type Runner struct {
	service   *Service
	publisher Publisher
	gate      UsageGate
	recorder  Recorder
	log       *logger.Logger
	interval  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRunner creates a lifecycle-managed publication runner. gate and
// recorder are optional; without them publications are uncharged and
// unrecorded.
func NewRunner(service *Service, publisher Publisher, gate UsageGate, recorder Recorder, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewDefault("schedule-runner")
	}
	return &Runner{
		service:   service,
		publisher: publisher,
		gate:      gate,
		recorder:  recorder,
		log:       log,
		interval:  30 * time.Second,
		now:       time.Now,
	}
}

func (r *Runner) Name() string { return "schedule-runner" }

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("schedule runner started")
	return nil
}

func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("schedule runner stopped")
	return nil
}

func (r *Runner) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	due, err := r.service.store.ListDuePosts(ctx)
	if err != nil {
		r.log.WithError(err).Warn("schedule runner tick failed")
		return
	}

	now := r.now().UTC()
	for _, post := range due {
		if post.Status == schedule.StatusFailed || !post.Due(now) {
			continue
		}
		r.publish(ctx, post)
	}
}

// publish attempts one delivery, applying the usage gate first. One-shot
// posts end published or, after maxPublishAttempts, failed. Recurring posts
// advance to the next cron occurrence.
func (r *Runner) publish(ctx context.Context, post schedule.Post) {
	now := r.now().UTC()
	post.Attempts++
	post.LastRun = now

	fail := func(cause error) {
		post.LastError = cause.Error()
		if post.Recurring() {
			if next, ok := r.nextRun(post); ok {
				post.RunAt = next
				post.Attempts = 0
			}
		} else if post.Attempts >= maxPublishAttempts {
			post.Status = schedule.StatusFailed
		}
		if _, err := r.service.store.UpdateScheduledPost(ctx, post); err != nil {
			r.log.WithError(err).WithField("post_id", post.ID).Error("store failed publication")
		}
		r.log.WithError(cause).
			WithField("post_id", post.ID).
			WithField("attempts", post.Attempts).
			Warn("scheduled publication failed")
	}

	if r.gate != nil {
		if err := r.gate.ConsumePost(ctx, post.UserID); err != nil {
			fail(err)
			return
		}
	}

	externalID, err := r.publisher.Publish(ctx, post)
	if err != nil {
		fail(err)
		return
	}

	post.LastError = ""
	post.Attempts = 0
	if post.Recurring() {
		post.Status = schedule.StatusPending
		if next, ok := r.nextRun(post); ok {
			post.RunAt = next
		} else {
			post.Enabled = false
		}
	} else {
		post.Status = schedule.StatusPublished
	}
	if _, err := r.service.store.UpdateScheduledPost(ctx, post); err != nil {
		r.log.WithError(err).WithField("post_id", post.ID).Error("store publication result")
	}

	if r.recorder != nil {
		if _, err := r.recorder.RecordPost(ctx, post.UserID, social.Platform(post.Platform), externalID, post.Content); err != nil {
			r.log.WithError(err).
				WithField("post_id", post.ID).
				Warn("record published post failed")
		}
	}

	r.log.WithField("post_id", post.ID).
		WithField("platform", post.Platform).
		Info("scheduled post published")
}

func (r *Runner) nextRun(post schedule.Post) (time.Time, bool) {
	sched, err := cron.ParseStandard(post.Rule)
	if err != nil {
		r.log.WithError(err).WithField("post_id", post.ID).Error("invalid cron rule on stored post")
		return time.Time{}, false
	}
	return sched.Next(r.now().UTC()), true
}
