package services

import (
	"context"
	"testing"

	"github.com/yungbote/clipforge-backend/internal/apperr"
)

func authSvc(t *testing.T, env *testEnv) AuthService {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	return NewAuthService(env.log, env.users)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	svc := authSvc(t, env)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "Someone@Example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "someone@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if token == "" {
		t.Fatalf("no access token issued")
	}

	got, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got != user.ID {
		t.Fatalf("token subject: want=%s got=%s", user.ID, got)
	}

	if _, _, err := svc.Register(ctx, "someone@example.com", "hunter2hunter2"); !apperr.IsCode(err, apperr.CodeConflict) {
		t.Fatalf("duplicate email: want conflict, got %v", err)
	}

	if _, _, err := svc.Login(ctx, "someone@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := svc.Login(ctx, "someone@example.com", "wrongpass"); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Fatalf("wrong password: want forbidden, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "hunter2hunter2"); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Fatalf("unknown email: want forbidden, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := authSvc(t, env)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "not-an-email", "hunter2hunter2"); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("bad email: want validation, got %v", err)
	}
	if _, _, err := svc.Register(ctx, "ok@example.com", "short"); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("short password: want validation, got %v", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	svc := authSvc(t, env)

	if _, err := svc.ValidateToken("not.a.jwt"); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Fatalf("garbage token: want forbidden, got %v", err)
	}
}
