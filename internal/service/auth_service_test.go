package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ampa/internal/models"
)

func TestAuthenticateFailsUniformly(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.users, 7*24*time.Hour)
	ctx := context.Background()
	env.createUser(t, "ana", models.RoleAdmin)

	user, err := auth.Authenticate(ctx, "ana", testPassword)
	if err != nil || user == nil || user.Username != "ana" {
		t.Fatalf("Authenticate(valid) = %v, %v", user, err)
	}

	_, wrongPassword := auth.Authenticate(ctx, "ana", "not-the-password")
	_, unknownUser := auth.Authenticate(ctx, "nobody", testPassword)

	if !errors.Is(wrongPassword, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v", wrongPassword)
	}
	if !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v", unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Errorf("errors differ: %q vs %q", wrongPassword, unknownUser)
	}
}

func TestResolveSessionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.users, 7*24*time.Hour)
	ctx := context.Background()
	env.createUser(t, "ana", models.RoleUser)

	user, session, err := auth.Login(ctx, "ana", testPassword)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session.ExpiresAt.Sub(session.CreatedAt) != 7*24*time.Hour {
		t.Errorf("session lifetime = %v, want 7 days", session.ExpiresAt.Sub(session.CreatedAt))
	}

	for i := 0; i < 5; i++ {
		resolved, err := auth.ResolveSession(ctx, session.Token)
		if err != nil {
			t.Fatalf("ResolveSession() error = %v", err)
		}
		if resolved == nil || resolved.ID != user.ID {
			t.Fatalf("ResolveSession() call %d = %+v, want user %d", i, resolved, user.ID)
		}
	}
	if n := env.count(t, "sessions"); n != 1 {
		t.Errorf("ResolveSession() changed session count to %d", n)
	}
}

func TestResolveSessionUnknownAndExpired(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.users, time.Hour)
	ctx := context.Background()
	user := env.createUser(t, "ana", models.RoleUser)

	for _, token := range []string{"", "does-not-exist"} {
		resolved, err := auth.ResolveSession(ctx, token)
		if err != nil || resolved != nil {
			t.Errorf("ResolveSession(%q) = %v, %v; want nil, nil", token, resolved, err)
		}
	}

	session, err := auth.CreateSession(ctx, user.ID)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	resolved, err := auth.ResolveSession(ctx, session.Token)
	if err != nil || resolved != nil {
		t.Errorf("expired session resolved to %v, %v", resolved, err)
	}

	if err := auth.CleanupExpiredSessions(ctx); err != nil {
		t.Fatalf("CleanupExpiredSessions() error = %v", err)
	}
	if n := env.count(t, "sessions"); n != 0 {
		t.Errorf("%d sessions left after cleanup", n)
	}
}

func TestDestroySessionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.users, time.Hour)
	ctx := context.Background()
	env.createUser(t, "ana", models.RoleUser)

	_, session, err := auth.Login(ctx, "ana", testPassword)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := auth.DestroySession(ctx, session.Token); err != nil {
			t.Fatalf("DestroySession() call %d error = %v", i, err)
		}
	}
	if resolved, _ := auth.ResolveSession(ctx, session.Token); resolved != nil {
		t.Error("destroyed session still resolves")
	}
	if err := auth.DestroySession(ctx, "never-issued"); err != nil {
		t.Errorf("DestroySession(unknown) error = %v", err)
	}
}

func TestSessionOfDeletedUserResolvesToNobody(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.users, time.Hour)
	ctx := context.Background()
	user := env.createUser(t, "ana", models.RoleUser)

	session, err := auth.CreateSession(ctx, user.ID)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := env.users.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	resolved, err := auth.ResolveSession(ctx, session.Token)
	if err != nil || resolved != nil {
		t.Errorf("ResolveSession() = %v, %v; want nil, nil", resolved, err)
	}
}
