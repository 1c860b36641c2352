// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// スキーマはcredentials, accounts, sessionsの3テーブル。
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus は適用済みマイグレーションの状態。
// Versionが0の場合は未適用。Dirtyがtrueの場合は前回の適用が途中で失敗している。
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// ErrDirtySchema は前回のマイグレーションが途中で失敗していることを表す。
// 手動で修復するまで自動適用しない。
var ErrDirtySchema = errors.New("database schema is dirty")

// NewMigrator は埋め込みSQLを読み込むmigrateインスタンスを生成する。
// databaseURLはPostgreSQLの接続URL。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations は未適用のマイグレーションを全て適用する。
// 最新の場合は何もしない。
func RunMigrations(databaseURL string) error {
	_, _, err := Migrate(databaseURL)
	return err
}

// Migrate は未適用のマイグレーションを全て適用し、適用前後の状態を返す。
// 適用前の状態がdirtyの場合はErrDirtySchemaを返し、何も適用しない。
func Migrate(databaseURL string) (before, after MigrationStatus, err error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return before, after, err
	}
	defer m.Close()

	if before, err = status(m); err != nil {
		return before, after, err
	}
	if before.Dirty {
		return before, before, fmt.Errorf("version %d: %w", before.Version, ErrDirtySchema)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return before, after, fmt.Errorf("failed to run migrations: %w", err)
	}

	after, err = status(m)
	return before, after, err
}

// MigrationVersion は適用済みのマイグレーション状態を返す。
func MigrationVersion(databaseURL string) (MigrationStatus, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer m.Close()
	return status(m)
}

func status(m *migrate.Migrate) (MigrationStatus, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}
