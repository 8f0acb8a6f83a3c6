package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/postlane/platform/internal/app/domain/user"
	"github.com/postlane/platform/internal/app/domain/webhook"
	"github.com/postlane/platform/internal/app/storage/memory"
	"github.com/postlane/platform/internal/httputil"
)

type fakeProvider struct {
	registered []string
	removed    []string
	failNext   bool
}

func (f *fakeProvider) Register(_ context.Context, wallet, _ string) (string, error) {
	if f.failNext {
		return "", fmt.Errorf("provider unavailable")
	}
	id := "ext-" + wallet
	f.registered = append(f.registered, id)
	return id, nil
}

func (f *fakeProvider) Remove(_ context.Context, externalID string) error {
	f.removed = append(f.removed, externalID)
	return nil
}

func newTestService(t *testing.T, provider Provider) (*Service, *memory.Store, user.User) {
	t.Helper()
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{
		Email:       "hooks@example.com",
		DisplayName: "Hooks",
		Role:        "user",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return New(store, store, provider, nil), store, u
}

func TestRegisterStoresExternalID(t *testing.T) {
	provider := &fakeProvider{}
	svc, _, u := newTestService(t, provider)

	sub, err := svc.Register(context.Background(), u.ID, "wallet-1", "https://app.example.com/hook")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sub.ExternalID != "ext-wallet-1" {
		t.Fatalf("expected provider external id, got %q", sub.ExternalID)
	}
	if !sub.Active {
		t.Fatal("expected webhook active")
	}
	if len(provider.registered) != 1 {
		t.Fatalf("expected one provider registration, got %d", len(provider.registered))
	}
}

func TestRegisterFailsWhenProviderFails(t *testing.T) {
	provider := &fakeProvider{failNext: true}
	svc, store, u := newTestService(t, provider)

	if _, err := svc.Register(context.Background(), u.ID, "wallet-1", "https://cb"); err == nil {
		t.Fatal("expected error when provider registration fails")
	}
	hooks, err := store.ListWebhooks(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("list webhooks: %v", err)
	}
	if len(hooks) != 0 {
		t.Fatalf("expected no webhook persisted, got %d", len(hooks))
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	svc, _, u := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, u.ID, "", "https://cb"); err == nil {
		t.Fatal("expected error for missing wallet")
	}
	if _, err := svc.Register(ctx, u.ID, "wallet-1", ""); err == nil {
		t.Fatal("expected error for missing callback URL")
	}
	if _, err := svc.Register(ctx, "missing", "wallet-1", "https://cb"); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestDeactivateEnforcesOwnership(t *testing.T) {
	provider := &fakeProvider{}
	svc, _, u := newTestService(t, provider)
	ctx := context.Background()

	sub, err := svc.Register(ctx, u.ID, "wallet-1", "https://cb")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.Deactivate(ctx, "other-user", sub.ID); err == nil {
		t.Fatal("expected ownership error")
	}
	if err := svc.Deactivate(ctx, u.ID, sub.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if len(provider.removed) != 1 || provider.removed[0] != sub.ExternalID {
		t.Fatalf("expected provider removal of %s, got %v", sub.ExternalID, provider.removed)
	}

	hooks, err := svc.List(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(hooks) != 1 || hooks[0].Active {
		t.Fatalf("expected inactive webhook, got %+v", hooks)
	}
}

const transferPayload = `[{
	"signature": "sig-1",
	"type": "TRANSFER",
	"tokenTransfers": [{"toUserAccount": "wallet-1", "tokenAmount": 1500.5}]
}]`

func TestDispatchParsesAndHandlesTokenTransfer(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	d := NewDispatcher(svc, "", nil)

	var got []webhook.Event
	d.On(webhook.EventTokenTransfer, func(_ context.Context, ev webhook.Event) error {
		got = append(got, ev)
		return nil
	})

	n, err := d.Dispatch(context.Background(), []byte(transferPayload))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 processed event, got %d", n)
	}
	if len(got) != 1 {
		t.Fatalf("expected handler invoked once, got %d", len(got))
	}
	if got[0].Wallet != "wallet-1" || got[0].Amount != 1500.5 {
		t.Fatalf("unexpected event %+v", got[0])
	}
	if got[0].Signature != "sig-1" {
		t.Fatalf("unexpected signature %q", got[0].Signature)
	}
}

func TestDispatchDropsDuplicateSignatures(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	d := NewDispatcher(svc, "", nil)

	calls := 0
	d.On(webhook.EventTokenTransfer, func(context.Context, webhook.Event) error {
		calls++
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := d.Dispatch(ctx, []byte(transferPayload)); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected exactly one handler call across duplicate deliveries, got %d", calls)
	}
}

func TestDispatchHandlerErrorDoesNotAbort(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	d := NewDispatcher(svc, "", nil)

	d.On(webhook.EventTokenTransfer, func(context.Context, webhook.Event) error {
		return fmt.Errorf("downstream failure")
	})

	n, err := d.Dispatch(context.Background(), []byte(transferPayload))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected event counted as processed, got %d", n)
	}
}

func TestDispatchRejectsInvalidPayload(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	d := NewDispatcher(svc, "", nil)
	if _, err := d.Dispatch(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

func TestDispatchSkipsEventsWithoutSignature(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	d := NewDispatcher(svc, "", nil)

	n, err := d.Dispatch(context.Background(), []byte(`[{"type":"TRANSFER"}]`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestAuthorize(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	d := NewDispatcher(svc, "shared-secret", nil)

	if err := d.Authorize("shared-secret"); err != nil {
		t.Fatalf("plain secret should pass: %v", err)
	}
	if err := d.Authorize("Bearer shared-secret"); err != nil {
		t.Fatalf("bearer secret should pass: %v", err)
	}
	if err := d.Authorize("wrong"); !errors.Is(err, ErrBadAuth) {
		t.Fatalf("expected ErrBadAuth, got %v", err)
	}

	open := NewDispatcher(svc, "", nil)
	if err := open.Authorize(""); err != nil {
		t.Fatalf("no secret configured should pass: %v", err)
	}
}

func TestHTTPProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v0/webhooks":
			w.Write([]byte(`{"webhookID":"hook-123"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/v0/webhooks/hook-123":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := NewHTTPProvider(httputil.ClientConfig{BaseURL: server.URL, Timeout: time.Second})
	id, err := p.Register(context.Background(), "wallet-1", "https://cb")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id != "hook-123" {
		t.Fatalf("unexpected external id %q", id)
	}
	if err := p.Remove(context.Background(), "hook-123"); err != nil {
		t.Fatalf("remove: %v", err)
	}
}
