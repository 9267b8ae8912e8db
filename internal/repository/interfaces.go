// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

// UserRepository は利用者データの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDの利用者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスで利用者を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByCPF は数字11桁のCPFで利用者を検索する。見つからない場合はnilを返す。
	FindByCPF(ctx context.Context, cpf string) (*model.User, error)

	// List は利用者一覧を名前順で返す。activeOnlyがtrueの場合は有効な利用者のみ返す。
	List(ctx context.Context, activeOnly bool) ([]*model.User, error)

	// CountActive は有効な利用者数を返す。
	CountActive(ctx context.Context) (int, error)

	// Create は利用者を作成する。
	Create(ctx context.Context, user *model.User) error

	// Update は利用者情報を更新する。
	Update(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDの利用者を削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は now 時点で期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// BookRepository は蔵書データの永続化インターフェース。
type BookRepository interface {
	// FindByID は指定IDの蔵書を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Book, error)

	// FindByIDForUpdate は指定IDの蔵書を取得し、トランザクション終了まで行をロックする。
	// 見つからない場合はnilを返す。
	FindByIDForUpdate(ctx context.Context, id string) (*model.Book, error)

	// FindByISBN はISBNで蔵書を検索する。見つからない場合はnilを返す。
	FindByISBN(ctx context.Context, isbn string) (*model.Book, error)

	// Search は条件に一致する蔵書をタイトル順で返す。
	Search(ctx context.Context, query model.BookQuery) ([]*model.Book, error)

	// Count は蔵書の総数を返す。
	Count(ctx context.Context) (int, error)

	// CountAvailable は貸出可能な在庫が1冊以上ある蔵書の数を返す。
	CountAvailable(ctx context.Context) (int, error)

	// Create は蔵書を作成する。
	Create(ctx context.Context, book *model.Book) error

	// Update は蔵書情報を更新する。
	Update(ctx context.Context, book *model.Book) error

	// CompareAndSetAvailability は貸出可能数が from の場合に限り to へ更新する。
	// 更新できた場合はtrue、他の処理が先に更新していた場合はfalseを返す。
	CompareAndSetAvailability(ctx context.Context, id string, from, to int) (bool, error)

	// DeleteByID は指定IDの蔵書を削除する。
	DeleteByID(ctx context.Context, id string) error
}

// LoanRepository は貸出データの永続化インターフェース。
type LoanRepository interface {
	// FindByID は指定IDの貸出を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Loan, error)

	// List は条件に一致する貸出を貸出日の新しい順で返す。
	// LoanFilterOverdue の判定には today を使用する。
	List(ctx context.Context, filter model.LoanFilter, today time.Time) ([]*model.Loan, error)

	// Count は貸出記録の総数を返す。
	Count(ctx context.Context) (int, error)

	// CountOverdue は today 時点で延滞中の貸出数を返す。
	CountOverdue(ctx context.Context, today time.Time) (int, error)

	// CountActiveByBookID は指定蔵書の未返却貸出数を返す。
	CountActiveByBookID(ctx context.Context, bookID string) (int, error)

	// CountActiveByUserID は指定利用者の未返却貸出数を返す。
	CountActiveByUserID(ctx context.Context, userID string) (int, error)

	// Create は貸出を作成する。
	Create(ctx context.Context, loan *model.Loan) error

	// Close は未返却の貸出を返却済みに更新する。
	// 既に返却済みだった場合はfalseを返す。
	Close(ctx context.Context, loan *model.Loan) (bool, error)
}

// Tx は1つのトランザクションに束ねた蔵書・貸出リポジトリ。
type Tx struct {
	Books BookRepository
	Loans LoanRepository
}

// TxRunner はfnを1つのトランザクション内で実行する。
// fnがエラーを返した場合はロールバックし、そのエラーを返す。
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
