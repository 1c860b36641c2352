// Package auth はメールアドレスとパスワードによるログイン、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/locauto/locauto/internal/account"
	"github.com/locauto/locauto/internal/identity"
	"github.com/locauto/locauto/internal/metrics"
	"github.com/locauto/locauto/internal/model"
	"github.com/locauto/locauto/internal/repository"
)

// Authenticator はIdPの認証操作。
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*model.Credential, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	// EnforceAccess がtrueの場合、凍結中または期限切れのプロフィールはログインできない。
	EnforceAccess bool
	// OnSignOut はログアウトでセッションを破棄した後に呼ばれる。nilなら何もしない。
	OnSignOut     func(sessionID string)
}

// CurrentUser はセッションに紐づくログイン中の利用者。
type CurrentUser struct {
	CredentialID string
	Email        string
	IsAdmin      bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	idp         Authenticator
	accounts    repository.AccountRepository
	sessionRepo repository.SessionRepository
	authz       account.Authorizer
	clock       account.Clock
	metrics     metrics.MetricsCollector
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	idp Authenticator,
	accounts repository.AccountRepository,
	sessionRepo repository.SessionRepository,
	authz account.Authorizer,
	clock account.Clock,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if clock == nil {
		clock = account.SystemClock{}
	}
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Service{
		idp:         idp,
		accounts:    accounts,
		sessionRepo: sessionRepo,
		authz:       authz,
		clock:       clock,
		metrics:     collector,
		config:      config,
	}
}

// SignIn はIdPで認証し、セッションを発行する。
// EnforceAccess が有効な場合、プロフィールの凍結フラグと期限日を確認する。
// プロフィールを持たない認証情報（管理者など）は拒否しない。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	credential, err := s.idp.Authenticate(ctx, email, password)
	if err != nil {
		if msg, ok := identity.MessageOf(err); ok {
			s.metrics.RecordSignIn("invalid_credentials")
			return nil, model.NewInvalidCredentialsError(msg)
		}
		s.metrics.RecordSignIn("error")
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	if err := s.checkAccess(ctx, credential); err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, credential)
	if err != nil {
		s.metrics.RecordSignIn("error")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.metrics.RecordSignIn("success")
	slog.Info("user signed in",
		slog.String("credential_id", credential.ID),
		slog.String("email", credential.Email),
	)
	return session, nil
}

// checkAccess はプロフィールの凍結と期限切れを確認する。
func (s *Service) checkAccess(ctx context.Context, credential *model.Credential) error {
	if !s.config.EnforceAccess {
		return nil
	}
	if s.authz.IsAuthorized(account.Actor{Email: credential.Email}) {
		return nil
	}

	profile, err := s.accounts.FindByEmail(ctx, credential.Email)
	if err != nil {
		s.metrics.RecordSignIn("error")
		return fmt.Errorf("failed to find profile: %w", err)
	}
	if profile == nil {
		return nil
	}

	if profile.Frozen {
		s.metrics.RecordSignIn("frozen")
		slog.Warn("sign-in rejected: account frozen", slog.Int64("account_id", profile.ID))
		return model.NewAccountFrozenError()
	}
	if account.IsExpired(*profile, s.clock.Now()) {
		s.metrics.RecordSignIn("expired")
		slog.Warn("sign-in rejected: access expired",
			slog.Int64("account_id", profile.ID),
			slog.String("expiry_date", profile.ExpiryDate.String()),
		)
		return model.NewAccountExpiredError()
	}
	return nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if s.config.OnSignOut != nil {
		s.config.OnSignOut(sessionID)
	}

	slog.Info("user signed out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在の利用者を取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*CurrentUser, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	return &CurrentUser{
		CredentialID: session.CredentialID,
		Email:        session.Email,
		IsAdmin:      s.authz.IsAuthorized(account.Actor{SessionID: session.ID, Email: session.Email}),
	}, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, credential *model.Credential) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:           sessionID,
		CredentialID: credential.ID,
		Email:        credential.Email,
		ExpiresAt:    now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt:    now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
