// Package book は蔵書管理のドメインロジックを提供する。
package book

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/repository"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/security"
)

// maxCASAttempts は在庫数の楽観的更新を再試行する上限。
const maxCASAttempts = 5

// Input は蔵書の登録・更新内容を表す。
// AvailableCopies が nil の場合、新規登録では総数、更新では貸出中の冊数を差し引いた数になる。
// 指定された場合も、その上限を超える値は上限に丸める。
type Input struct {
	ID              string `json:"id,omitempty"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Publisher       string `json:"publisher"`
	Year            int    `json:"year"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies *int   `json:"available_copies,omitempty"`
}

// Service は蔵書管理のサービス層。
type Service struct {
	bookRepo  repository.BookRepository
	tx        repository.TxRunner
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// 未返却貸出数の確認を伴う更新・削除はtxのトランザクション内で行う。
func NewService(bookRepo repository.BookRepository, tx repository.TxRunner, sanitizer security.TextSanitizer) *Service {
	return &Service{
		bookRepo:  bookRepo,
		tx:        tx,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Save は蔵書を検証して保存する。IDが空なら新規登録、それ以外は更新する。
func (s *Service) Save(ctx context.Context, in Input) (*model.Book, error) {
	in.Title = s.clean(in.Title)
	in.Author = s.clean(in.Author)
	in.Publisher = s.clean(in.Publisher)
	in.ISBN = strings.TrimSpace(in.ISBN)

	if err := validate(in); err != nil {
		return nil, err
	}

	var existing *model.Book
	if in.ID != "" {
		b, err := s.bookRepo.FindByID(ctx, in.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to find book: %w", err)
		}
		if b == nil {
			return nil, model.NewNotFoundError("Livro", in.ID)
		}
		existing = b
	}

	if in.ISBN != "" {
		dup, err := s.bookRepo.FindByISBN(ctx, in.ISBN)
		if err != nil {
			return nil, fmt.Errorf("failed to check isbn: %w", err)
		}
		if dup != nil && dup.ID != in.ID {
			return nil, model.NewDuplicateISBNError(in.ISBN)
		}
	}

	now := s.now()
	book := &model.Book{
		ID:          in.ID,
		Title:       in.Title,
		Author:      in.Author,
		ISBN:        in.ISBN,
		Publisher:   in.Publisher,
		Year:        in.Year,
		TotalCopies: in.TotalCopies,
		UpdatedAt:   now,
	}

	if existing == nil {
		book.ID = uuid.New().String()
		book.CreatedAt = now
		book.AvailableCopies = resolveAvailable(in.AvailableCopies, in.TotalCopies)
		if err := s.bookRepo.Create(ctx, book); err != nil {
			return nil, err
		}
		slog.Info("book created", slog.String("book_id", book.ID), slog.String("isbn", book.ISBN))
		return book, nil
	}

	book.CreatedAt = existing.CreatedAt
	err := s.tx.InTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.Books.FindByIDForUpdate(ctx, existing.ID)
		if err != nil {
			return fmt.Errorf("failed to lock book: %w", err)
		}
		if locked == nil {
			return model.NewNotFoundError("Livro", existing.ID)
		}
		onLoan, err := tx.Loans.CountActiveByBookID(ctx, existing.ID)
		if err != nil {
			return fmt.Errorf("failed to count active loans: %w", err)
		}
		if in.TotalCopies < onLoan {
			return model.NewValidationError(
				fmt.Sprintf("Quantidade total não pode ser menor que os %d exemplares emprestados", onLoan))
		}
		book.AvailableCopies = resolveAvailable(in.AvailableCopies, in.TotalCopies-onLoan)
		return tx.Books.Update(ctx, book)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("book updated", slog.String("book_id", book.ID), slog.Int("available_copies", book.AvailableCopies))
	return book, nil
}

// resolveAvailable は貸出可能数を決める。未指定なら limit、limit超過はlimitに丸める。
func resolveAvailable(requested *int, limit int) int {
	available := limit
	if requested != nil && *requested < limit {
		available = *requested
	}
	if available < 0 {
		available = 0
	}
	return available
}

func validate(in Input) error {
	if in.Title == "" {
		return model.NewValidationError("Título é obrigatório")
	}
	if in.Year < model.MinPublicationYear || in.Year > model.MaxPublicationYear {
		return model.NewValidationError(fmt.Sprintf("Ano de publicação deve estar entre %d e %d",
			model.MinPublicationYear, model.MaxPublicationYear))
	}
	if in.TotalCopies <= 0 {
		return model.NewValidationError("Quantidade total deve ser maior que zero")
	}
	if in.AvailableCopies != nil && *in.AvailableCopies < 0 {
		return model.NewValidationError("Quantidade disponível não pode ser negativa")
	}
	return nil
}

func (s *Service) clean(v string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(v)
	}
	return s.sanitizer.Sanitize(v)
}

// Delete は蔵書を削除する。未返却の貸出がある場合は削除できない。
func (s *Service) Delete(ctx context.Context, bookID string) error {
	err := s.tx.InTx(ctx, func(tx repository.Tx) error {
		book, err := tx.Books.FindByIDForUpdate(ctx, bookID)
		if err != nil {
			return fmt.Errorf("failed to find book: %w", err)
		}
		if book == nil {
			return model.NewNotFoundError("Livro", bookID)
		}

		active, err := tx.Loans.CountActiveByBookID(ctx, bookID)
		if err != nil {
			return fmt.Errorf("failed to count active loans: %w", err)
		}
		if active > 0 {
			return model.NewActiveLoansError("livro")
		}
		return tx.Books.DeleteByID(ctx, bookID)
	})
	if err != nil {
		return err
	}
	slog.Info("book deleted", slog.String("book_id", bookID))
	return nil
}

// DecrementAvailability は貸出可能数を1減らす。0の場合は何もしない。
// 他の貸出が先に最後の1冊を取った場合はUnavailableエラーを返す。
func (s *Service) DecrementAvailability(ctx context.Context, book *model.Book) error {
	return decrement(ctx, s.bookRepo, book)
}

// DecrementAvailabilityIn はDecrementAvailabilityをtxの中で行う。
func (s *Service) DecrementAvailabilityIn(ctx context.Context, tx repository.Tx, book *model.Book) error {
	return decrement(ctx, tx.Books, book)
}

// IncrementAvailability は貸出可能数を1増やす。総数を超える場合は総数に丸める。
func (s *Service) IncrementAvailability(ctx context.Context, book *model.Book) error {
	return increment(ctx, s.bookRepo, book)
}

// IncrementAvailabilityIn はIncrementAvailabilityをtxの中で行う。
func (s *Service) IncrementAvailabilityIn(ctx context.Context, tx repository.Tx, book *model.Book) error {
	return increment(ctx, tx.Books, book)
}

func decrement(ctx context.Context, repo repository.BookRepository, book *model.Book) error {
	if book.AvailableCopies <= 0 {
		return nil
	}
	return adjust(ctx, repo, book, -1)
}

func increment(ctx context.Context, repo repository.BookRepository, book *model.Book) error {
	if book.AvailableCopies == book.TotalCopies {
		return nil
	}
	return adjust(ctx, repo, book, 1)
}

// adjust は保存済みの値を比較しながら貸出可能数を更新する。
// 更新に負けた場合は最新の値を読み直して再試行する。
func adjust(ctx context.Context, repo repository.BookRepository, book *model.Book, delta int) error {
	current := book
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		next := current.AvailableCopies + delta
		if next > current.TotalCopies {
			next = current.TotalCopies
		}
		if next < 0 {
			return model.NewBookUnavailableError()
		}
		if next == current.AvailableCopies {
			*book = *current
			return nil
		}

		ok, err := repo.CompareAndSetAvailability(ctx, current.ID, current.AvailableCopies, next)
		if err != nil {
			return err
		}
		if ok {
			current.AvailableCopies = next
			*book = *current
			return nil
		}

		fresh, err := repo.FindByID(ctx, book.ID)
		if err != nil {
			return fmt.Errorf("failed to reload book: %w", err)
		}
		if fresh == nil {
			return model.NewNotFoundError("Livro", book.ID)
		}
		current = fresh
	}

	slog.Warn("availability update contended",
		slog.String("book_id", book.ID),
		slog.Int("delta", delta),
	)
	if delta < 0 {
		return model.NewBookUnavailableError()
	}
	return fmt.Errorf("failed to update availability of book %s after %d attempts", book.ID, maxCASAttempts)
}

// FindByID は指定IDの蔵書を返す。
func (s *Service) FindByID(ctx context.Context, id string) (*model.Book, error) {
	book, err := s.bookRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	if book == nil {
		return nil, model.NewNotFoundError("Livro", id)
	}
	return book, nil
}

// FindByISBN はISBNで蔵書を返す。
func (s *Service) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	isbn = strings.TrimSpace(isbn)
	book, err := s.bookRepo.FindByISBN(ctx, isbn)
	if err != nil {
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	if book == nil {
		return nil, model.NewNotFoundError("Livro", isbn)
	}
	return book, nil
}

// FindByTitle はタイトルの部分一致（大文字小文字を区別しない）で蔵書を検索する。
func (s *Service) FindByTitle(ctx context.Context, text string) ([]*model.Book, error) {
	return s.Search(ctx, model.BookQuery{Title: text})
}

// FindByAuthor は著者名の部分一致（大文字小文字を区別しない）で蔵書を検索する。
func (s *Service) FindByAuthor(ctx context.Context, text string) ([]*model.Book, error) {
	return s.Search(ctx, model.BookQuery{Author: text})
}

// ListAvailable は貸出可能な蔵書を返す。
func (s *Service) ListAvailable(ctx context.Context) ([]*model.Book, error) {
	return s.Search(ctx, model.BookQuery{AvailableOnly: true})
}

// Search は条件を組み合わせて蔵書を検索する。
func (s *Service) Search(ctx context.Context, q model.BookQuery) ([]*model.Book, error) {
	books, err := s.bookRepo.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search books: %w", err)
	}
	if books == nil {
		books = []*model.Book{}
	}
	return books, nil
}
