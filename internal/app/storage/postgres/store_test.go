package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/postlane/platform/internal/app/domain/user"
	"github.com/postlane/platform/internal/app/domain/webhook"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestCreateUserNormalizesEmailAndAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "alice@example.com", "Alice", "hash", "user",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreateUser(context.Background(), user.User{
		Email:        "  Alice@Example.COM ",
		DisplayName:  "Alice",
		PasswordHash: "hash",
		Role:         "user",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated ID")
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetUsageReturnsZeroRowOnMiss(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT user_id, day, posts, research").
		WithArgs("u-1", "2026-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "day", "posts", "research", "updated_at"}))

	usage, err := store.GetUsage(context.Background(), "u-1", "2026-03-01")
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if usage.UserID != "u-1" || usage.Day != "2026-03-01" {
		t.Fatalf("expected keyed zero row, got %+v", usage)
	}
	if usage.Posts != 0 || usage.Research != 0 {
		t.Fatalf("expected zero counters, got %+v", usage)
	}
}

func TestRecordEventFirstSeen(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO webhook_events").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ev, first, err := store.RecordEvent(context.Background(), webhook.Event{
		Type:      webhook.EventTokenTransfer,
		Signature: "sig-1",
		Wallet:    "wallet-1",
		Amount:    42,
	})
	if err != nil {
		t.Fatalf("record event: %v", err)
	}
	if !first {
		t.Fatal("expected first delivery to be recorded as new")
	}
	if ev.ID == "" || ev.SeenAt.IsZero() {
		t.Fatalf("expected ID and timestamp assigned, got %+v", ev)
	}
}

func TestRecordEventDuplicateReturnsExisting(t *testing.T) {
	store, mock := newMockStore(t)

	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO webhook_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, type, signature, wallet, amount, raw, seen_at").
		WithArgs("sig-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "signature", "wallet", "amount", "raw", "seen_at"}).
			AddRow("ev-1", "token_transfer", "sig-1", "wallet-1", 42.0, "{}", seen))

	ev, first, err := store.RecordEvent(context.Background(), webhook.Event{
		Type:      webhook.EventTokenTransfer,
		Signature: "sig-1",
	})
	if err != nil {
		t.Fatalf("record duplicate: %v", err)
	}
	if first {
		t.Fatal("expected duplicate signature to be reported as already seen")
	}
	if ev.ID != "ev-1" || !ev.SeenAt.Equal(seen) {
		t.Fatalf("expected stored event returned, got %+v", ev)
	}
}
