package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/locauto/locauto/internal/account"
	"github.com/locauto/locauto/internal/identity"
	"github.com/locauto/locauto/internal/model"
	"github.com/locauto/locauto/internal/repository"
)

// --- モック定義 ---

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, email, password string) (*model.Credential, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, email, password string) (*model.Credential, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, email, password)
	}
	return nil, nil
}

type mockAccountRepo struct {
	repository.AccountRepository
	findByEmailFn func(ctx context.Context, email string) (*model.Account, error)
}

func (m *mockAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

// --- compile-time interface checks ---
var _ repository.AccountRepository = (*mockAccountRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ Authenticator = (*mockAuthenticator)(nil)
var _ Authenticator = (*identity.LocalProvider)(nil)

const adminEmail = "admin@locauto.com"

var fixedNow = time.Date(2024, 6, 10, 9, 0, 0, 0, time.FixedZone("BRT", -3*60*60))

func okAuthenticator(email string) *mockAuthenticator {
	return &mockAuthenticator{
		authenticateFn: func(ctx context.Context, e, p string) (*model.Credential, error) {
			return &model.Credential{ID: "cred-1", Email: email}, nil
		},
	}
}

func newTestService(idp Authenticator, accounts repository.AccountRepository, sessions repository.SessionRepository, enforce bool) *Service {
	return NewService(
		idp,
		accounts,
		sessions,
		account.NewSingleAdminPolicy(adminEmail),
		account.ClockFunc(func() time.Time { return fixedNow }),
		nil,
		ServiceConfig{SessionMaxAge: 86400, EnforceAccess: enforce},
	)
}

func profileWith(expiry *civil.Date, frozen bool) *mockAccountRepo {
	return &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			return &model.Account{ID: 12, Email: email, ExpiryDate: expiry, Frozen: frozen}, nil
		},
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Fatalf("error code = %s, want %s", apiErr.Code, code)
	}
}

// --- テスト ---

func TestSignIn_CreatesSession(t *testing.T) {
	ctx := context.Background()

	var created *model.Session
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			created = session
			return nil
		},
	}

	svc := newTestService(okAuthenticator("rider@example.com"), &mockAccountRepo{}, sessionRepo, true)

	session, err := svc.SignIn(ctx, "rider@example.com", "secret123")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if session == nil || created == nil {
		t.Fatal("expected session to be created")
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}
	if session.CredentialID != "cred-1" || session.Email != "rider@example.com" {
		t.Errorf("unexpected session: %+v", session)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl < 23*time.Hour || ttl > 25*time.Hour {
		t.Errorf("session TTL = %v, want about 24h", ttl)
	}
}

func TestSignIn_InvalidCredentials_SurfacesProviderMessage(t *testing.T) {
	idp := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, email, password string) (*model.Credential, error) {
			return nil, &identity.Error{Message: identity.MsgInvalidCredentials}
		},
	}
	svc := newTestService(idp, &mockAccountRepo{}, &mockSessionRepo{}, true)

	_, err := svc.SignIn(context.Background(), "rider@example.com", "wrong")

	assertCode(t, err, model.ErrCodeInvalidCredentials)
	var apiErr *model.APIError
	errors.As(err, &apiErr)
	if apiErr.Message != identity.MsgInvalidCredentials {
		t.Errorf("Message = %q, want %q", apiErr.Message, identity.MsgInvalidCredentials)
	}
}

func TestSignIn_ProviderFailure_ReturnsWrappedError(t *testing.T) {
	cause := errors.New("connection reset")
	idp := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, email, password string) (*model.Credential, error) {
			return nil, cause
		},
	}
	svc := newTestService(idp, &mockAccountRepo{}, &mockSessionRepo{}, true)

	_, err := svc.SignIn(context.Background(), "rider@example.com", "secret123")
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestSignIn_AccessCheck(t *testing.T) {
	tests := []struct {
		name     string
		expiry   *civil.Date
		frozen   bool
		enforce  bool
		wantCode string
	}{
		{"凍結中は拒否", nil, true, true, model.ErrCodeAccountFrozen},
		{"昨日で期限切れは拒否", &civil.Date{Year: 2024, Month: 6, Day: 9}, false, true, model.ErrCodeAccountExpired},
		{"今日が期限日なら許可", &civil.Date{Year: 2024, Month: 6, Day: 10}, false, true, ""},
		{"無期限は許可", nil, false, true, ""},
		{"無効化時は凍結中でも許可", nil, true, false, ""},
		{"無効化時は期限切れでも許可", &civil.Date{Year: 2024, Month: 1, Day: 1}, false, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(okAuthenticator("rider@example.com"), profileWith(tt.expiry, tt.frozen), &mockSessionRepo{}, tt.enforce)

			session, err := svc.SignIn(context.Background(), "rider@example.com", "secret123")

			if tt.wantCode != "" {
				assertCode(t, err, tt.wantCode)
				if session != nil {
					t.Error("no session should be issued")
				}
				return
			}
			if err != nil {
				t.Fatalf("SignIn() error = %v", err)
			}
		})
	}
}

func TestSignIn_IdentityWithoutProfileIsAllowed(t *testing.T) {
	svc := newTestService(okAuthenticator("orphan@example.com"), &mockAccountRepo{}, &mockSessionRepo{}, true)

	if _, err := svc.SignIn(context.Background(), "orphan@example.com", "secret123"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
}

func TestSignIn_AdminSkipsProfileCheck(t *testing.T) {
	accounts := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			t.Fatal("profile lookup should not happen for the administrator")
			return nil, nil
		},
	}
	svc := newTestService(okAuthenticator(adminEmail), accounts, &mockSessionRepo{}, true)

	if _, err := svc.SignIn(context.Background(), adminEmail, "secret123"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
}

func TestSignIn_SessionSaveError(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			return errors.New("db down")
		},
	}
	svc := newTestService(okAuthenticator("rider@example.com"), &mockAccountRepo{}, sessionRepo, false)

	if _, err := svc.SignIn(context.Background(), "rider@example.com", "secret123"); err == nil {
		t.Fatal("expected error from SignIn")
	}
}

func TestSignOut_DeletesSession(t *testing.T) {
	ctx := context.Background()

	var deletedSessionID string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedSessionID = id
			return nil
		},
	}

	svc := newTestService(nil, nil, sessionRepo, true)

	if err := svc.SignOut(ctx, "session-to-delete"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if deletedSessionID != "session-to-delete" {
		t.Errorf("deleted session ID = %q, want %q", deletedSessionID, "session-to-delete")
	}
}

func TestSignOut_NotifiesAfterDelete(t *testing.T) {
	var calls []string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			calls = append(calls, "delete:"+id)
			return nil
		},
	}
	svc := NewService(nil, nil, sessionRepo, account.NewSingleAdminPolicy(adminEmail), nil, nil,
		ServiceConfig{OnSignOut: func(id string) { calls = append(calls, "notify:"+id) }})

	if err := svc.SignOut(context.Background(), "s1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if len(calls) != 2 || calls[0] != "delete:s1" || calls[1] != "notify:s1" {
		t.Errorf("calls = %v", calls)
	}
}

func TestSignOut_DeleteFailure_DoesNotNotify(t *testing.T) {
	notified := false
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			return errors.New("connection reset")
		},
	}
	svc := NewService(nil, nil, sessionRepo, account.NewSingleAdminPolicy(adminEmail), nil, nil,
		ServiceConfig{OnSignOut: func(string) { notified = true }})

	if err := svc.SignOut(context.Background(), "s1"); err == nil {
		t.Fatal("expected error")
	}
	if notified {
		t.Error("OnSignOut should not run when the session was not deleted")
	}
}

func TestSignOut_EmptySessionID_ReturnsError(t *testing.T) {
	svc := newTestService(nil, nil, nil, true)

	if err := svc.SignOut(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestGetCurrentUser_ReportsAdminFlag(t *testing.T) {
	tests := []struct {
		email     string
		wantAdmin bool
	}{
		{adminEmail, true},
		{"rider@example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			sessionRepo := &mockSessionRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
					return &model.Session{ID: id, CredentialID: "cred-1", Email: tt.email, ExpiresAt: time.Now().Add(time.Hour)}, nil
				},
			}
			svc := newTestService(nil, nil, sessionRepo, true)

			user, err := svc.GetCurrentUser(context.Background(), "session-valid")
			if err != nil {
				t.Fatalf("GetCurrentUser() error = %v", err)
			}
			if user.Email != tt.email || user.IsAdmin != tt.wantAdmin {
				t.Errorf("user = %+v, want email %s admin %v", user, tt.email, tt.wantAdmin)
			}
		})
	}
}

func TestGetCurrentUser_ExpiredSession_ReturnsError(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			// 期限切れセッション -> リポジトリはnilを返す
			return nil, nil
		},
	}
	svc := newTestService(nil, nil, sessionRepo, true)

	if _, err := svc.GetCurrentUser(context.Background(), "expired-session"); err == nil {
		t.Fatal("expected error for expired session")
	}
}

func TestGetCurrentUser_EmptySessionID_ReturnsError(t *testing.T) {
	svc := newTestService(nil, nil, nil, true)

	if _, err := svc.GetCurrentUser(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}
