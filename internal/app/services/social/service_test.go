package social

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/postlane/platform/internal/app/domain/social"
	"github.com/postlane/platform/internal/app/domain/user"
	"github.com/postlane/platform/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, user.User) {
	t.Helper()
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{
		Email:       "social@example.com",
		DisplayName: "Social",
		Role:        "user",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return New(store, store, nil), store, u
}

func TestLinkAndList(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()

	acct, err := svc.Link(ctx, u.ID, social.PlatformTwitter, "@tester", "access-1", "refresh-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if acct.Handle != "@tester" {
		t.Fatalf("unexpected handle %q", acct.Handle)
	}

	accounts, err := svc.List(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
}

func TestLinkValidation(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	if _, err := svc.Link(ctx, u.ID, "myspace", "@x", "access", "", expires); err == nil {
		t.Fatal("expected error for unknown platform")
	}
	if _, err := svc.Link(ctx, u.ID, social.PlatformTwitter, "@x", "", "", expires); err == nil {
		t.Fatal("expected error for missing access token")
	}
	if _, err := svc.Link(ctx, "missing", social.PlatformTwitter, "@x", "access", "", expires); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestLinkRejectsDuplicatePlatform(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	if _, err := svc.Link(ctx, u.ID, social.PlatformTwitter, "@a", "access", "", expires); err != nil {
		t.Fatalf("link: %v", err)
	}
	if _, err := svc.Link(ctx, u.ID, social.PlatformTwitter, "@b", "access", "", expires); err == nil {
		t.Fatal("expected error for duplicate platform link")
	}
}

func TestUpdateCredentialKeepsRefreshTokenWhenBlank(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()

	acct, err := svc.Link(ctx, u.ID, social.PlatformTwitter, "@x", "access-1", "refresh-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	updated, err := svc.UpdateCredential(ctx, acct.ID, "access-2", "", time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("update credential: %v", err)
	}
	if updated.AccessToken != "access-2" {
		t.Fatalf("expected new access token, got %q", updated.AccessToken)
	}
	if updated.RefreshToken != "refresh-1" {
		t.Fatalf("expected refresh token preserved, got %q", updated.RefreshToken)
	}
}

func TestListExpiring(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Link(ctx, u.ID, social.PlatformTwitter, "@soon", "access", "refresh", time.Now().Add(5*time.Minute)); err != nil {
		t.Fatalf("link twitter: %v", err)
	}
	if _, err := svc.Link(ctx, u.ID, social.PlatformLinkedIn, "@later", "access", "refresh", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("link linkedin: %v", err)
	}

	expiring, err := svc.ListExpiring(ctx, 15*time.Minute)
	if err != nil {
		t.Fatalf("list expiring: %v", err)
	}
	if len(expiring) != 1 {
		t.Fatalf("expected 1 expiring account, got %d", len(expiring))
	}
	if expiring[0].Platform != social.PlatformTwitter {
		t.Fatalf("expected twitter account, got %s", expiring[0].Platform)
	}
}

type recordingSink struct {
	posts []social.Post
	err   error
}

func (r *recordingSink) PostRecorded(_ context.Context, post social.Post) error {
	r.posts = append(r.posts, post)
	return r.err
}

func TestRecordPostNotifiesSinks(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Link(ctx, u.ID, social.PlatformTwitter, "@x", "access", "", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("link: %v", err)
	}

	sink := &recordingSink{}
	svc.AttachSink(sink)

	post, err := svc.RecordPost(ctx, u.ID, social.PlatformTwitter, "ext-1", "hello")
	if err != nil {
		t.Fatalf("record post: %v", err)
	}
	if post.ExternalID != "ext-1" {
		t.Fatalf("unexpected external id %q", post.ExternalID)
	}
	if len(sink.posts) != 1 || sink.posts[0].ID != post.ID {
		t.Fatalf("expected sink notified with post, got %v", sink.posts)
	}

	posts, err := svc.ListPosts(ctx, u.ID)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
}

func TestRecordPostRequiresLinkedPlatform(t *testing.T) {
	svc, _, u := newTestService(t)
	if _, err := svc.RecordPost(context.Background(), u.ID, social.PlatformReddit, "ext", "hello"); err == nil {
		t.Fatal("expected error for unlinked platform")
	}
}

func TestRecordPostSinkErrorIsNonFatal(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Link(ctx, u.ID, social.PlatformTwitter, "@x", "access", "", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("link: %v", err)
	}
	svc.AttachSink(&recordingSink{err: fmt.Errorf("sink down")})

	if _, err := svc.RecordPost(ctx, u.ID, social.PlatformTwitter, "ext", "hello"); err != nil {
		t.Fatalf("record post should tolerate sink failure: %v", err)
	}
}

func TestRefresherUpdatesExpiringCredentials(t *testing.T) {
	svc, _, u := newTestService(t)
	ctx := context.Background()

	acct, err := svc.Link(ctx, u.ID, social.PlatformTwitter, "@x", "stale", "refresh-1", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	refresher := NewRefresher(svc, nil)
	refresher.interval = 10 * time.Millisecond
	refresher.WithRefresher(TokenRefresherFunc(func(_ context.Context, a social.Account) (string, string, time.Time, error) {
		return "fresh-" + string(a.Platform), "refresh-2", time.Now().Add(time.Hour), nil
	}))

	if err := refresher.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer refresher.Stop(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := svc.Get(ctx, acct.ID)
		if err != nil {
			t.Fatalf("get account: %v", err)
		}
		if got.AccessToken == "fresh-twitter" {
			if got.RefreshToken != "refresh-2" {
				t.Fatalf("expected rotated refresh token, got %q", got.RefreshToken)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("credential was not refreshed in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
