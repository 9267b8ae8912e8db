// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrations/ には利用者・蔵書・貸出・セッションのテーブル定義を番号順に置く。
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema は前回のマイグレーションが途中で失敗したままであることを示す。
var ErrDirtySchema = errors.New("database schema is dirty")

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
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

// RunMigrations は未適用のマイグレーションをすべて適用する。
// すでに最新の場合はエラーなしで返る。dirtyなスキーマには適用しない。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	before, dirty, err := version(m)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w at version %d; fix it and force the version before migrating", ErrDirtySchema, before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	after, _, err := version(m)
	if err != nil {
		return err
	}
	slog.Info("schema version",
		slog.Uint64("from", uint64(before)),
		slog.Uint64("to", uint64(after)),
	)
	return nil
}

// SchemaVersion は適用済みのスキーマバージョンを返す。未適用なら0を返す。
func SchemaVersion(databaseURL string) (uint, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	v, dirty, err := version(m)
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, ErrDirtySchema
	}
	return v, nil
}

func version(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, dirty, nil
}
