package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

const dialectPostgres = "postgres"

var bookColumns = []any{
	"id", "title", "author", "isbn", "publisher", "publication_year",
	"total_copies", "available_copies", "created_at", "updated_at",
}

// PostgresBookRepo はPostgreSQLを使用した蔵書リポジトリ。
type PostgresBookRepo struct {
	db querier
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sql.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

// FindByID は指定IDの蔵書を取得する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	return r.findOne(ctx, goqu.Ex{"id": id}, false)
}

// FindByIDForUpdate は指定IDの蔵書を SELECT ... FOR UPDATE で取得する。
// トランザクション外で呼んだ場合、ロックは文の終了とともに解放される。
func (r *PostgresBookRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Book, error) {
	return r.findOne(ctx, goqu.Ex{"id": id}, true)
}

// FindByISBN はISBNで蔵書を検索する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	return r.findOne(ctx, goqu.Ex{"isbn": isbn}, false)
}

func (r *PostgresBookRepo) findOne(ctx context.Context, where goqu.Ex, lock bool) (*model.Book, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From("books").
		Select(bookColumns...).
		Where(where).
		Prepared(true)
	if lock {
		stmt = stmt.ForUpdate(exp.Wait)
	}
	query, args, err := stmt.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build book query: %w", err)
	}

	book, err := scanBook(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	return book, nil
}

// Search は条件に一致する蔵書をタイトル順で返す。
// タイトル・著者はILIKEによる部分一致で、ワイルドカード文字はエスケープする。
func (r *PostgresBookRepo) Search(ctx context.Context, q model.BookQuery) ([]*model.Book, error) {
	query, args, err := buildBookSearchQuery(q)
	if err != nil {
		return nil, fmt.Errorf("failed to build book search query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search books: %w", err)
	}
	defer rows.Close()

	var books []*model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return books, nil
}

// buildBookSearchQuery は検索条件からSELECT文を組み立てる。
func buildBookSearchQuery(q model.BookQuery) (string, []any, error) {
	var conds []exp.Expression
	if t := strings.TrimSpace(q.Title); t != "" {
		conds = append(conds, goqu.C("title").ILike(containsPattern(t)))
	}
	if a := strings.TrimSpace(q.Author); a != "" {
		conds = append(conds, goqu.C("author").ILike(containsPattern(a)))
	}
	if q.AvailableOnly {
		conds = append(conds, goqu.C("available_copies").Gt(0))
	}

	stmt := goqu.Dialect(dialectPostgres).
		From("books").
		Select(bookColumns...).
		Order(goqu.I("title").Asc(), goqu.I("created_at").Asc()).
		Prepared(true)
	if len(conds) > 0 {
		stmt = stmt.Where(goqu.And(conds...))
	}
	return stmt.ToSQL()
}

// containsPattern はLIKE用の部分一致パターンを返す。
func containsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// Count は蔵書の総数を返す。
func (r *PostgresBookRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return n, nil
}

// CountAvailable は貸出可能な在庫が1冊以上ある蔵書の数を返す。
func (r *PostgresBookRepo) CountAvailable(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM books WHERE available_copies > 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count available books: %w", err)
	}
	return n, nil
}

// Create は蔵書を作成する。ISBNの一意制約違反は重複エラーに変換する。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO books (id, title, author, isbn, publisher, publication_year,
		                    total_copies, available_copies, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		book.ID, book.Title, book.Author, book.ISBN, book.Publisher, book.Year,
		book.TotalCopies, book.AvailableCopies, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err) == "books_isbn_key" {
			return model.NewDuplicateISBNError(book.ISBN)
		}
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// Update は蔵書情報を更新する。
func (r *PostgresBookRepo) Update(ctx context.Context, book *model.Book) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE books
		 SET title = $2, author = $3, isbn = $4, publisher = $5, publication_year = $6,
		     total_copies = $7, available_copies = $8, updated_at = $9
		 WHERE id = $1`,
		book.ID, book.Title, book.Author, book.ISBN, book.Publisher, book.Year,
		book.TotalCopies, book.AvailableCopies, book.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err) == "books_isbn_key" {
			return model.NewDuplicateISBNError(book.ISBN)
		}
		return fmt.Errorf("failed to update book: %w", err)
	}
	return expectOneRow(result, "Livro", book.ID)
}

// CompareAndSetAvailability は貸出可能数が from の場合に限り to へ更新する。
func (r *PostgresBookRepo) CompareAndSetAvailability(ctx context.Context, id string, from, to int) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE books
		 SET available_copies = $3, updated_at = now()
		 WHERE id = $1 AND available_copies = $2 AND $3 BETWEEN 0 AND total_copies`,
		id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update book availability: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteByID は指定IDの蔵書を削除する。
func (r *PostgresBookRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM books WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return expectOneRow(result, "Livro", id)
}

func scanBook(row rowScanner) (*model.Book, error) {
	b := &model.Book{}
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Publisher, &b.Year,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
