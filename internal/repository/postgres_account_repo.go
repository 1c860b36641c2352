package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/locauto/locauto/internal/model"
)

const accountColumns = `id, display_name, email, expiry_date, frozen, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// ListAll は全アカウントをid昇順で返す。
func (r *PostgresAccountRepo) ListAll(ctx context.Context) ([]model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id int64) (*model.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return a, nil
}

// FindByEmail はメールアドレスでアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1) ORDER BY id ASC LIMIT 1`,
		email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return a, nil
}

// Insert はアカウントを作成する。
// idはBIGSERIALで採番され、created_at/updated_atはDB側で設定される。
func (r *PostgresAccountRepo) Insert(ctx context.Context, account *model.Account) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO accounts (display_name, email, expiry_date, frozen)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		account.DisplayName, account.Email, dateParam(account.ExpiryDate), account.Frozen,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// Update は表示名、メールアドレス、期限日、凍結フラグを書き換える。
func (r *PostgresAccountRepo) Update(ctx context.Context, id int64, changes model.AccountChanges) (*model.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`UPDATE accounts
		 SET display_name = $2, email = $3, expiry_date = $4, frozen = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+accountColumns,
		id, changes.DisplayName, changes.Email, dateParam(changes.ExpiryDate), changes.Frozen,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return a, nil
}

// UpdateFrozen は凍結フラグのみを書き換える。
func (r *PostgresAccountRepo) UpdateFrozen(ctx context.Context, id int64, frozen bool) (*model.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`UPDATE accounts SET frozen = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+accountColumns,
		id, frozen,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update frozen flag: %w", err)
	}
	return a, nil
}

// DeleteByID は指定IDのアカウントを削除する。
// credentialsテーブルの行は削除しない。
func (r *PostgresAccountRepo) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanAccount は1行分のアカウントを読み取る。
// DATE型はlib/pqによりUTC 0時のtime.Timeとして返るため暦日に変換する。
func scanAccount(s rowScanner) (*model.Account, error) {
	var (
		a      model.Account
		expiry sql.NullTime
	)
	if err := s.Scan(&a.ID, &a.DisplayName, &a.Email, &expiry, &a.Frozen, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if expiry.Valid {
		d := civil.DateOf(expiry.Time)
		a.ExpiryDate = &d
	}
	return &a, nil
}

// dateParam は期限日をSQLパラメータに変換する。nilはNULLになる。
func dateParam(d *civil.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
