// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/locauto/locauto/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
var ErrNotFound = errors.New("record not found")

// ErrDuplicateEmail は同一メールアドレスの認証情報が既に存在する場合に返される。
var ErrDuplicateEmail = errors.New("duplicate email")

// AccountRepository は利用者プロフィール（accountsテーブル）の永続化インターフェース。
// 管理パネルが唯一の書き込み元であり、行単位の書き込みはDBが直列化する。
type AccountRepository interface {
	// ListAll は全アカウントをid昇順で返す。ページングは行わない。
	ListAll(ctx context.Context) ([]model.Account, error)

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを取得する。見つからない場合はnilを返す。
	// 複数行が一致する場合はidが最小の行を返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Insert はアカウントを作成し、採番されたIDと監査時刻をaccountに設定する。
	Insert(ctx context.Context, account *model.Account) error

	// Update は表示名、メールアドレス、期限日、凍結フラグを書き換える。
	// 対象行が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, id int64, changes model.AccountChanges) (*model.Account, error)

	// UpdateFrozen は凍結フラグのみを書き換える。
	// 対象行が存在しない場合はErrNotFoundを返す。
	UpdateFrozen(ctx context.Context, id int64, frozen bool) (*model.Account, error)

	// DeleteByID は指定IDのアカウントを削除する。
	// 対象行が存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id int64) error
}

// CredentialRepository はIdPの認証情報（credentialsテーブル）の永続化インターフェース。
type CredentialRepository interface {
	// Create は認証情報を作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, credential *model.Credential) error

	// FindByEmail はメールアドレスで認証情報を取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Credential, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}
