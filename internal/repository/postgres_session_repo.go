package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/locauto/locauto/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// セッション行は認証情報IDのみを持ち、メールアドレスはcredentialsから引く。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。session.Emailは保存しない。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if session.CredentialID == "" {
		return errors.New("session has no credential id")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, credential_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, session.CredentialID, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", session.CredentialID, err)
	}
	return nil
}

// FindByID は有効期限内のセッションを認証情報のメールアドレス付きで返す。
// 期限切れ、または認証情報が消えている場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT s.id, s.credential_id, c.email, s.expires_at, s.created_at
		 FROM sessions s
		 JOIN credentials c ON c.id = s.credential_id
		 WHERE s.id = $1 AND s.expires_at > now()`,
		id,
	).Scan(&s.ID, &s.CredentialID, &s.Email, &s.ExpiresAt, &s.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &s, nil
}

// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

var _ SessionRepository = (*PostgresSessionRepo)(nil)
