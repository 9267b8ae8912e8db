// Package loan は貸出台帳のドメインロジックを提供する。
// 貸出の成立、返却期限と延滞料の計算、返却の登録を扱う。
package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/repository"
)

const (
	// LoanPeriodDays は貸出期間（日）。
	LoanPeriodDays = 14
	// FinePerDayCents は延滞1日あたりの延滞料（センタボ）。R$ 2,00。
	FinePerDayCents int64 = 200
)

// BookAvailability は蔵書の取得と在庫数の増減を行うインターフェース。
// 在庫数の増減は貸出の保存と同じトランザクション内で行う。
type BookAvailability interface {
	FindByID(ctx context.Context, id string) (*model.Book, error)
	DecrementAvailabilityIn(ctx context.Context, tx repository.Tx, book *model.Book) error
	IncrementAvailabilityIn(ctx context.Context, tx repository.Tx, book *model.Book) error
}

// UserFinder は利用者を取得するインターフェース。
type UserFinder interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// Recorder は貸出関連のメトリクスを記録するインターフェース。
type Recorder interface {
	RecordLoanCreated()
	RecordLoanReturned(fineCents int64)
	RecordCheckoutRejected(reason string)
}

// Service は貸出台帳のサービス層。
type Service struct {
	loanRepo repository.LoanRepository
	tx       repository.TxRunner
	books    BookAvailability
	users    UserFinder
	recorder Recorder
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。recorderはnilでもよい。
func NewService(loanRepo repository.LoanRepository, tx repository.TxRunner, books BookAvailability, users UserFinder, recorder Recorder) *Service {
	return &Service{
		loanRepo: loanRepo,
		tx:       tx,
		books:    books,
		users:    users,
		recorder: recorder,
		now:      time.Now,
	}
}

// ComputeDueDate は貸出日から返却期限を求める。
func ComputeDueDate(checkoutDate time.Time) time.Time {
	return model.DateOf(checkoutDate).AddDate(0, 0, LoanPeriodDays)
}

// ComputeFineAt は today 時点の延滞料を求める。
// 返却済みなら返却日、未返却なら today を基準に、返却期限を過ぎた日数分を課金する。
func ComputeFineAt(loan *model.Loan, today time.Time) int64 {
	end := today
	if loan.ReturnedAt != nil {
		end = *loan.ReturnedAt
	}
	daysLate := model.DaysBetween(loan.DueDate, end)
	if daysLate <= 0 {
		return 0
	}
	return int64(daysLate) * FinePerDayCents
}

// ComputeFine は現在時点の延滞料を求める。
func (s *Service) ComputeFine(loan *model.Loan) int64 {
	return ComputeFineAt(loan, s.now())
}

// CreateLoan は利用者IDと蔵書IDから貸出を成立させる。
func (s *Service) CreateLoan(ctx context.Context, userID, bookID string) (*model.Loan, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, s.rejected(err)
	}
	book, err := s.books.FindByID(ctx, bookID)
	if err != nil {
		return nil, s.rejected(err)
	}
	return s.Checkout(ctx, user, book)
}

// Checkout は利用者に蔵書を1冊貸し出す。
// 在庫の減算と貸出の保存は1つのトランザクションで行い、どちらかが失敗すれば両方を取り消す。
func (s *Service) Checkout(ctx context.Context, user *model.User, book *model.Book) (*model.Loan, error) {
	if !user.Active {
		return nil, s.rejected(model.NewInactiveUserError())
	}
	if !book.IsAvailable() {
		return nil, s.rejected(model.NewBookUnavailableError())
	}

	now := s.now()
	today := model.DateOf(now)
	loan := &model.Loan{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		BookID:       book.ID,
		CheckoutDate: today,
		DueDate:      ComputeDueDate(today),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	reserved := *book
	err := s.tx.InTx(ctx, func(tx repository.Tx) error {
		if err := s.books.DecrementAvailabilityIn(ctx, tx, &reserved); err != nil {
			return err
		}
		if err := tx.Loans.Create(ctx, loan); err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.rejected(err)
	}
	*book = reserved

	if s.recorder != nil {
		s.recorder.RecordLoanCreated()
	}
	slog.Info("loan created",
		slog.String("loan_id", loan.ID),
		slog.String("user_id", user.ID),
		slog.String("book_id", book.ID),
		slog.String("due_date", loan.DueDate.Format(time.DateOnly)),
	)
	return loan, nil
}

// rejected は業務エラーによる貸出拒否をメトリクスに記録してそのまま返す。
func (s *Service) rejected(err error) error {
	var apiErr *model.APIError
	if s.recorder != nil && errors.As(err, &apiErr) {
		s.recorder.RecordCheckoutRejected(apiErr.Code)
	}
	return err
}

// RegisterReturn は返却を登録し、延滞料を確定して在庫を戻す。
// 貸出のクローズと在庫の加算は同じトランザクションで確定する。
// 返却済みの貸出に対しては何度呼んでもAlreadyReturnedエラーを返す。
func (s *Service) RegisterReturn(ctx context.Context, loanID string) (*model.Loan, error) {
	loan, err := s.loanRepo.FindByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to find loan: %w", err)
	}
	if loan == nil {
		return nil, model.NewNotFoundError("Empréstimo", loanID)
	}
	if loan.IsReturned() {
		return nil, model.NewAlreadyReturnedError()
	}

	now := s.now()
	today := model.DateOf(now)
	loan.ReturnedAt = &today
	loan.FineCents = ComputeFineAt(loan, today)
	loan.Active = false
	loan.UpdatedAt = now

	book, err := s.books.FindByID(ctx, loan.BookID)
	if err != nil {
		return nil, fmt.Errorf("failed to find returned book: %w", err)
	}

	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		closed, err := tx.Loans.Close(ctx, loan)
		if err != nil {
			return err
		}
		if !closed {
			return model.NewAlreadyReturnedError()
		}
		if err := s.books.IncrementAvailabilityIn(ctx, tx, book); err != nil {
			return fmt.Errorf("failed to restore availability: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.RecordLoanReturned(loan.FineCents)
	}
	slog.Info("loan returned",
		slog.String("loan_id", loan.ID),
		slog.Int64("fine_cents", loan.FineCents),
	)
	return loan, nil
}

// GetLoan は指定IDの貸出を返す。
func (s *Service) GetLoan(ctx context.Context, id string) (*model.Loan, error) {
	loan, err := s.loanRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find loan: %w", err)
	}
	if loan == nil {
		return nil, model.NewNotFoundError("Empréstimo", id)
	}
	return loan, nil
}

// ListLoans は条件に一致する貸出を返す。
func (s *Service) ListLoans(ctx context.Context, filter model.LoanFilter) ([]*model.Loan, error) {
	loans, err := s.loanRepo.List(ctx, filter, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	if loans == nil {
		loans = []*model.Loan{}
	}
	return loans, nil
}

// Today は延滞判定に使う現在の暦日を返す。
func (s *Service) Today() time.Time {
	return model.DateOf(s.now())
}
