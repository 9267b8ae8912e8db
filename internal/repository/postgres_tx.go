package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresTxRunner は *sql.Tx に束ねたリポジトリでfnを実行する。
type PostgresTxRunner struct {
	db *sql.DB
}

// NewPostgresTxRunner はPostgresTxRunnerを生成する。
func NewPostgresTxRunner(db *sql.DB) *PostgresTxRunner {
	return &PostgresTxRunner{db: db}
}

// InTx はトランザクションを開始し、fnが成功した場合のみコミットする。
func (r *PostgresTxRunner) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(Tx{
		Books: &PostgresBookRepo{db: tx},
		Loans: &PostgresLoanRepo{db: tx},
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
