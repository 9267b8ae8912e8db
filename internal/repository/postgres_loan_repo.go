package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

var loanColumns = []any{
	"id", "user_id", "book_id", "checkout_date", "due_date", "returned_at",
	"fine_cents", "active", "created_at", "updated_at",
}

// PostgresLoanRepo はPostgreSQLを使用した貸出リポジトリ。
type PostgresLoanRepo struct {
	db querier
}

// NewPostgresLoanRepo はPostgresLoanRepoを生成する。
func NewPostgresLoanRepo(db *sql.DB) *PostgresLoanRepo {
	return &PostgresLoanRepo{db: db}
}

// FindByID は指定IDの貸出を取得する。見つからない場合はnilを返す。
func (r *PostgresLoanRepo) FindByID(ctx context.Context, id string) (*model.Loan, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From("loans").
		Select(loanColumns...).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build loan query: %w", err)
	}

	loan, err := scanLoan(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find loan: %w", err)
	}
	return loan, nil
}

// List は条件に一致する貸出を貸出日の新しい順で返す。
func (r *PostgresLoanRepo) List(ctx context.Context, filter model.LoanFilter, today time.Time) ([]*model.Loan, error) {
	query, args, err := buildLoanListQuery(filter, today)
	if err != nil {
		return nil, fmt.Errorf("failed to build loan list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}
	return loans, nil
}

// buildLoanListQuery は絞り込み条件からSELECT文を組み立てる。
func buildLoanListQuery(filter model.LoanFilter, today time.Time) (string, []any, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From("loans").
		Select(loanColumns...).
		Order(goqu.I("checkout_date").Desc(), goqu.I("created_at").Desc()).
		Prepared(true)

	switch filter {
	case model.LoanFilterActive:
		stmt = stmt.Where(goqu.C("active").IsTrue())
	case model.LoanFilterOverdue:
		stmt = stmt.Where(overdueCondition(today))
	}
	return stmt.ToSQL()
}

func overdueCondition(today time.Time) goqu.Expression {
	return goqu.And(
		goqu.C("active").IsTrue(),
		goqu.C("due_date").Lt(model.DateOf(today)),
	)
}

// Count は貸出記録の総数を返す。
func (r *PostgresLoanRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM loans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count loans: %w", err)
	}
	return n, nil
}

// CountOverdue は today 時点で延滞中の貸出数を返す。
func (r *PostgresLoanRepo) CountOverdue(ctx context.Context, today time.Time) (int, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From("loans").
		Select(goqu.COUNT(goqu.Star())).
		Where(overdueCondition(today)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build overdue count query: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count overdue loans: %w", err)
	}
	return n, nil
}

// CountActiveByBookID は指定蔵書の未返却貸出数を返す。
func (r *PostgresLoanRepo) CountActiveByBookID(ctx context.Context, bookID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM loans WHERE book_id = $1 AND active`,
		bookID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active loans by book: %w", err)
	}
	return n, nil
}

// CountActiveByUserID は指定利用者の未返却貸出数を返す。
func (r *PostgresLoanRepo) CountActiveByUserID(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM loans WHERE user_id = $1 AND active`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active loans by user: %w", err)
	}
	return n, nil
}

// Create は貸出を作成する。
func (r *PostgresLoanRepo) Create(ctx context.Context, loan *model.Loan) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO loans (id, user_id, book_id, checkout_date, due_date, returned_at,
		                    fine_cents, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		loan.ID, loan.UserID, loan.BookID, loan.CheckoutDate, loan.DueDate, loan.ReturnedAt,
		loan.FineCents, loan.Active, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", err)
	}
	return nil
}

// Close は未返却の貸出を返却済みに更新する。
// 既に返却済みだった場合はfalseを返す。
func (r *PostgresLoanRepo) Close(ctx context.Context, loan *model.Loan) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE loans
		 SET returned_at = $2, fine_cents = $3, active = false, updated_at = $4
		 WHERE id = $1 AND active`,
		loan.ID, loan.ReturnedAt, loan.FineCents, loan.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to close loan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func scanLoan(row rowScanner) (*model.Loan, error) {
	l := &model.Loan{}
	var returnedAt sql.NullTime
	err := row.Scan(&l.ID, &l.UserID, &l.BookID, &l.CheckoutDate, &l.DueDate, &returnedAt,
		&l.FineCents, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if returnedAt.Valid {
		t := returnedAt.Time
		l.ReturnedAt = &t
	}
	return l, nil
}

// compile-time interface check
var _ LoanRepository = (*PostgresLoanRepo)(nil)
