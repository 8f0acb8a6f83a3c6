package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/postlane/platform/internal/app/storage/memory"
)

var testSecret = []byte("test-secret")

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(memory.New(), testSecret, time.Hour, nil)
}

func TestRegisterHashesPassword(t *testing.T) {
	svc := newTestService(t)

	u, err := svc.Register(context.Background(), "Alice@Example.com", "correct horse", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}
	if u.PasswordHash == "correct horse" || u.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
	if u.Role != "user" {
		t.Fatalf("expected default role, got %q", u.Role)
	}
}

func TestRegisterDefaultsDisplayName(t *testing.T) {
	svc := newTestService(t)

	u, err := svc.Register(context.Background(), "bob@example.com", "long enough", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.DisplayName != "bob" {
		t.Fatalf("expected display name from email local part, got %q", u.DisplayName)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "not-an-email", "long enough", ""); err == nil {
		t.Fatal("expected error for invalid email")
	}
	if _, err := svc.Register(ctx, "a@b.com", "short", ""); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dup@example.com", "long enough", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "dup@example.com", "long enough", ""); err == nil {
		t.Fatal("expected error for duplicate email")
	}
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "carol@example.com", "long enough", "Carol")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	tokenString, u, err := svc.Login(ctx, "carol@example.com", "long enough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID != registered.ID {
		t.Fatalf("expected user %s, got %s", registered.ID, u.ID)
	}

	parsed, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return testSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		t.Fatal("expected valid claims")
	}
	if claims["user_id"] != registered.ID {
		t.Fatalf("expected user_id claim %s, got %v", registered.ID, claims["user_id"])
	}
	if claims["role"] != "user" {
		t.Fatalf("expected role claim, got %v", claims["role"])
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dave@example.com", "long enough", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "dave@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "long enough"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}
