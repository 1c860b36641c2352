// Package identity はメールアドレスとパスワードによる認証情報を管理するIdPを提供する。
// ホスティング型IdPと同じ契約（認証情報の作成と認証）をPostgreSQL上で実装する。
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/locauto/locauto/internal/model"
	"github.com/locauto/locauto/internal/repository"
)

// MinPasswordLength はIdPが受け付けるパスワードの最小文字数。
const MinPasswordLength = 6

// MaxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
const MaxPasswordBytes = 72

// IdPがクライアントに返すメッセージ。呼び出し側はこれをそのまま表示する。
const (
	MsgUserAlreadyRegistered = "User already registered"
	MsgWeakPassword          = "Password should be at least 6 characters."
	MsgPasswordTooLong       = "Password cannot be longer than 72 characters"
	MsgInvalidEmail          = "Unable to validate email address: invalid format"
	MsgInvalidCredentials    = "Invalid login credentials"
)

// Error はIdPが拒否した操作を表す。
// Messageは利用者に表示できるIdPのメッセージ。
type Error struct {
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity provider: %s: %v", e.Message, e.Err)
	}
	return "identity provider: " + e.Message
}

// Unwrap は元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// MessageOf はエラーがIdPのエラーであればそのメッセージを返す。
func MessageOf(err error) (string, bool) {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Message, true
	}
	return "", false
}

// LocalProvider はcredentialsテーブルとbcryptで実装したIdP。
type LocalProvider struct {
	repo   repository.CredentialRepository
	hasher PasswordHasher
	now    func() time.Time
}

// NewLocalProvider はLocalProviderを生成する。
func NewLocalProvider(repo repository.CredentialRepository, hasher PasswordHasher) *LocalProvider {
	return &LocalProvider{
		repo:   repo,
		hasher: hasher,
		now:    time.Now,
	}
}

// CreateCredential はメールアドレスとパスワードの認証情報を作成する。
// 既に登録済みのメールアドレスや弱いパスワードはIdPのメッセージ付きで拒否する。
func (p *LocalProvider) CreateCredential(ctx context.Context, email, password string) (*model.Credential, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, &Error{Message: MsgInvalidEmail, Err: err}
	}
	if len([]rune(password)) < MinPasswordLength {
		return nil, &Error{Message: MsgWeakPassword}
	}
	if len(password) > MaxPasswordBytes {
		return nil, &Error{Message: MsgPasswordTooLong}
	}

	hash, err := p.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	credential := &model.Credential{
		ID:           uuid.New().String(),
		Email:        normalized,
		PasswordHash: hash,
		CreatedAt:    p.now(),
	}

	if err := p.repo.Create(ctx, credential); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, &Error{Message: MsgUserAlreadyRegistered, Err: err}
		}
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	slog.Info("credential created",
		slog.String("credential_id", credential.ID),
		slog.String("email", credential.Email),
	)

	return credential, nil
}

// Authenticate はメールアドレスとパスワードを照合し、一致した認証情報を返す。
// 未登録とパスワード不一致は区別せず同じメッセージで拒否する。
func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (*model.Credential, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, &Error{Message: MsgInvalidCredentials, Err: err}
	}

	credential, err := p.repo.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if credential == nil || !p.hasher.Check(password, credential.PasswordHash) {
		return nil, &Error{Message: MsgInvalidCredentials}
	}

	return credential, nil
}
