package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskhive/task-system/internal/core/domain"
	"github.com/taskhive/task-system/internal/core/ports"
)

// passthroughTx runs the body without a real transaction but records whether
// a body failure was observed, mimicking the abort contract.
type passthroughTx struct {
	calls   int
	aborted bool
}

func (t *passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	if err := fn(ctx); err != nil {
		t.aborted = true
		return err
	}
	return nil
}

type stubUserRepo struct {
	users map[string]*domain.Credentials // keyed by email
	roles map[string][]string            // email -> role ids
	// password update bookkeeping
	updatedDigest string
	updateCount   int64
	findErr       error
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.Credentials, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, email, digest string) (int64, error) {
	r.updatedDigest = digest
	return r.updateCount, nil
}

func (r *stubUserRepo) FindRoleRefsByEmail(_ context.Context, email string) ([]string, error) {
	return r.roles[email], nil
}

type stubRoleRepo struct {
	names map[string]string // role id -> name
	err   error
}

func (r *stubRoleRepo) ResolveNames(_ context.Context, ids []string) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	var names []string
	for _, id := range ids {
		if name, ok := r.names[id]; ok {
			names = append(names, name)
		}
	}
	return names, nil
}

type stubSessionStore struct {
	sessions  map[string]*domain.SessionUser
	createErr error
	nextSID   string
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{sessions: make(map[string]*domain.SessionUser), nextSID: "sid-1"}
}

func (s *stubSessionStore) Create(_ context.Context, user *domain.SessionUser, _ time.Duration) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	clone := *user
	s.sessions[s.nextSID] = &clone
	return s.nextSID, nil
}

func (s *stubSessionStore) Get(_ context.Context, sid string) (*domain.SessionUser, error) {
	u, ok := s.sessions[sid]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return u, nil
}

func (s *stubSessionStore) Touch(_ context.Context, _ string, _ time.Duration) error { return nil }

func (s *stubSessionStore) Delete(_ context.Context, sid string) error {
	delete(s.sessions, sid)
	return nil
}

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(digest)
}

func newTestAuthService(t *testing.T, users *stubUserRepo, roles *stubRoleRepo, sessions ports.SessionStore, tx ports.TxRunner) *AuthService {
	t.Helper()
	return NewAuthService(users, roles, sessions, tx, testPasswords{}, "secret", time.Hour, zerolog.Nop())
}

// testPasswords uses bcrypt directly; MinCost keeps the tests fast.
type testPasswords struct{}

func (testPasswords) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	return string(digest), err
}

func (testPasswords) Compare(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

func seededUserRepo(t *testing.T) *stubUserRepo {
	t.Helper()
	return &stubUserRepo{
		users: map[string]*domain.Credentials{
			"admin@example.com": {
				ID:           "u1",
				Username:     "admin",
				Email:        "admin@example.com",
				PasswordHash: mustHash(t, "Password123$"),
			},
			"basic@example.com": {
				ID:           "u2",
				Username:     "basic",
				Email:        "basic@example.com",
				PasswordHash: mustHash(t, "Password123$"),
			},
		},
		roles: map[string][]string{
			"admin@example.com": {"r1", "r2", "r3"},
			"basic@example.com": {"r1"},
		},
		updateCount: 1,
	}
}

func seededRoleRepo() *stubRoleRepo {
	return &stubRoleRepo{names: map[string]string{
		"r1": domain.RoleBasic,
		"r2": domain.RoleModerator,
		"r3": domain.RoleAdmin,
	}}
}

func TestAuthService_Login_Success(t *testing.T) {
	users := seededUserRepo(t)
	sessions := newStubSessionStore()
	tx := &passthroughTx{}
	svc := newTestAuthService(t, users, seededRoleRepo(), sessions, tx)

	user, token, err := svc.Login(context.Background(), "admin@example.com", "Password123$")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != "u1" || user.Username != "admin" || user.Email != "admin@example.com" {
		t.Fatalf("unexpected session user: %+v", user)
	}
	if tx.calls != 1 {
		t.Fatalf("expected one transaction, got %d", tx.calls)
	}

	// Cumulative hierarchy: the admin's session must hold all three names.
	want := map[string]bool{domain.RoleBasic: true, domain.RoleModerator: true, domain.RoleAdmin: true}
	if len(user.Roles) != len(want) {
		t.Fatalf("expected %d roles, got %v", len(want), user.Roles)
	}
	for _, r := range user.Roles {
		if !want[r] {
			t.Fatalf("unexpected role %q", r)
		}
	}

	sid, err := ParseSessionToken(token, "secret")
	if err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	stored, err := sessions.Get(context.Background(), sid)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if stored.Username != "admin" {
		t.Fatalf("stored session holds wrong identity: %+v", stored)
	}
}

func TestAuthService_Login_BasicUserRoles(t *testing.T) {
	users := seededUserRepo(t)
	svc := newTestAuthService(t, users, seededRoleRepo(), newStubSessionStore(), &passthroughTx{})

	user, _, err := svc.Login(context.Background(), "basic@example.com", "Password123$")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if len(user.Roles) != 1 || user.Roles[0] != domain.RoleBasic {
		t.Fatalf("expected exactly [basic], got %v", user.Roles)
	}
}

func TestAuthService_Login_FailureIndistinguishable(t *testing.T) {
	users := seededUserRepo(t)
	svc := newTestAuthService(t, users, seededRoleRepo(), newStubSessionStore(), &passthroughTx{})

	_, _, wrongPassword := svc.Login(context.Background(), "admin@example.com", "nope")
	_, _, unknownEmail := svc.Login(context.Background(), "ghost@example.com", "nope")

	if !errors.Is(wrongPassword, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if !errors.Is(unknownEmail, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("failure causes are distinguishable: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestAuthService_Login_InternalErrorMasked(t *testing.T) {
	users := seededUserRepo(t)
	users.findErr = fmt.Errorf("connection reset")
	svc := newTestAuthService(t, users, seededRoleRepo(), newStubSessionStore(), &passthroughTx{})

	_, _, err := svc.Login(context.Background(), "admin@example.com", "Password123$")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected masked ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_SessionWriteFailureAborts(t *testing.T) {
	users := seededUserRepo(t)
	sessions := newStubSessionStore()
	sessions.createErr = fmt.Errorf("redis down")
	tx := &passthroughTx{}
	svc := newTestAuthService(t, users, seededRoleRepo(), sessions, tx)

	_, _, err := svc.Login(context.Background(), "admin@example.com", "Password123$")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected masked failure, got %v", err)
	}
	if !tx.aborted {
		t.Fatalf("expected transaction abort on session write failure")
	}
	if len(sessions.sessions) != 0 {
		t.Fatalf("no session state should be visible after a failed login")
	}
}

func TestAuthService_Login_EmptyInput(t *testing.T) {
	svc := newTestAuthService(t, seededUserRepo(t), seededRoleRepo(), newStubSessionStore(), &passthroughTx{})

	if _, _, err := svc.Login(context.Background(), "", "x"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "a@b.c", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Logout_DestroysSession(t *testing.T) {
	users := seededUserRepo(t)
	sessions := newStubSessionStore()
	svc := newTestAuthService(t, users, seededRoleRepo(), sessions, &passthroughTx{})

	_, token, err := svc.Login(context.Background(), "admin@example.com", "Password123$")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Fatalf("session should be destroyed after logout")
	}

	// A garbage token is already logged out, not an error.
	if err := svc.Logout(context.Background(), "not-a-token"); err != nil {
		t.Fatalf("logout with bad token should be a no-op, got %v", err)
	}
}

func TestAuthService_UpdatePassword(t *testing.T) {
	users := seededUserRepo(t)
	svc := newTestAuthService(t, users, seededRoleRepo(), newStubSessionStore(), &passthroughTx{})

	if err := svc.UpdatePassword(context.Background(), "admin@example.com", "Password123$", "NewPassword1$"); err != nil {
		t.Fatalf("update password failed: %v", err)
	}
	if users.updatedDigest == "" || users.updatedDigest == "NewPassword1$" {
		t.Fatalf("expected a stored digest, got %q", users.updatedDigest)
	}

	if err := svc.UpdatePassword(context.Background(), "admin@example.com", "wrong", "x12345678"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong current password: expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.UpdatePassword(context.Background(), "ghost@example.com", "x", "x12345678"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_UpdatePassword_ZeroModified(t *testing.T) {
	users := seededUserRepo(t)
	users.updateCount = 0
	svc := newTestAuthService(t, users, seededRoleRepo(), newStubSessionStore(), &passthroughTx{})

	err := svc.UpdatePassword(context.Background(), "admin@example.com", "Password123$", "NewPassword1$")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected masked failure for zero modified count, got %v", err)
	}
}

func TestParseSessionToken_RejectsTampering(t *testing.T) {
	svc := newTestAuthService(t, seededUserRepo(t), seededRoleRepo(), newStubSessionStore(), &passthroughTx{})

	_, token, err := svc.Login(context.Background(), "admin@example.com", "Password123$")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := ParseSessionToken(token, "other-secret"); err == nil {
		t.Fatalf("token signed with a different secret must not validate")
	}
	if _, err := ParseSessionToken(token+"x", "secret"); err == nil {
		t.Fatalf("tampered token must not validate")
	}
}
