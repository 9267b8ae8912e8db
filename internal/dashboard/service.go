// Package dashboard は管理画面向けの集計を提供する。
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

// BookCounter は蔵書数の集計インターフェース。
type BookCounter interface {
	Count(ctx context.Context) (int, error)
	CountAvailable(ctx context.Context) (int, error)
}

// UserCounter は利用者数の集計インターフェース。
type UserCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// LoanCounter は貸出数の集計インターフェース。
type LoanCounter interface {
	Count(ctx context.Context) (int, error)
	CountOverdue(ctx context.Context, today time.Time) (int, error)
}

// Service は統計情報を読み取り専用で集計する。
type Service struct {
	books BookCounter
	users UserCounter
	loans LoanCounter
	now   func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(books BookCounter, users UserCounter, loans LoanCounter) *Service {
	return &Service{books: books, users: users, loans: loans, now: time.Now}
}

// GetStatistics は蔵書総数、有効な利用者数、貸出総数、貸出可能な蔵書数、延滞中の貸出数を返す。
func (s *Service) GetStatistics(ctx context.Context) (*model.Statistics, error) {
	var (
		st  model.Statistics
		err error
	)

	if st.TotalBooks, err = s.books.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}
	if st.AvailableBooks, err = s.books.CountAvailable(ctx); err != nil {
		return nil, fmt.Errorf("failed to count available books: %w", err)
	}
	if st.ActiveUsers, err = s.users.CountActive(ctx); err != nil {
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}
	if st.TotalLoans, err = s.loans.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count loans: %w", err)
	}
	if st.OverdueLoans, err = s.loans.CountOverdue(ctx, s.now()); err != nil {
		return nil, fmt.Errorf("failed to count overdue loans: %w", err)
	}

	return &st, nil
}
