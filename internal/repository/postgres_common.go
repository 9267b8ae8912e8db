package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

// pgUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pgUniqueViolation = "23505"

// querier は *sql.DB と *sql.Tx の共通部分。
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner は *sql.Row と *sql.Rows の共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// uniqueViolation は一意制約違反の場合に制約名を返す。それ以外は空文字列を返す。
func uniqueViolation(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return pqErr.Constraint
	}
	return ""
}

// expectOneRow は更新・削除で対象行が存在したことを確認する。
// 対象が無い場合はNotFoundエラーを返す。
func expectOneRow(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError(resource, id)
	}
	return nil
}
