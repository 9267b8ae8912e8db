package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/book"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/middleware"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn      func(ctx context.Context, email, password string) (*model.Session, *model.User, error)
	logoutFn     func(ctx context.Context, sessionID string) error
	getUserFn    func(ctx context.Context, userID string) (*model.User, error)
	issueTokenFn func(ctx context.Context, email, password string) (string, time.Time, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	return m.loginFn(ctx, email, password)
}
func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}
func (m *mockAuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return m.getUserFn(ctx, userID)
}
func (m *mockAuthService) IssueToken(ctx context.Context, email, password string) (string, time.Time, error) {
	return m.issueTokenFn(ctx, email, password)
}

type mockBookService struct {
	saveFn       func(ctx context.Context, in book.Input) (*model.Book, error)
	deleteFn     func(ctx context.Context, id string) error
	findByIDFn   func(ctx context.Context, id string) (*model.Book, error)
	findByISBNFn func(ctx context.Context, isbn string) (*model.Book, error)
	searchFn     func(ctx context.Context, q model.BookQuery) ([]*model.Book, error)
}

func (m *mockBookService) Save(ctx context.Context, in book.Input) (*model.Book, error) {
	return m.saveFn(ctx, in)
}
func (m *mockBookService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}
func (m *mockBookService) FindByID(ctx context.Context, id string) (*model.Book, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockBookService) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	return m.findByISBNFn(ctx, isbn)
}
func (m *mockBookService) Search(ctx context.Context, q model.BookQuery) ([]*model.Book, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return []*model.Book{}, nil
}

type mockUserService struct {
	saveFn      func(ctx context.Context, in user.Input, password string) (*model.User, error)
	deleteFn    func(ctx context.Context, id string) error
	getUserFn   func(ctx context.Context, id string) (*model.User, error)
	listUsersFn func(ctx context.Context, activeOnly bool) ([]*model.User, error)
}

func (m *mockUserService) Save(ctx context.Context, in user.Input, password string) (*model.User, error) {
	return m.saveFn(ctx, in, password)
}
func (m *mockUserService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}
func (m *mockUserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return m.getUserFn(ctx, id)
}
func (m *mockUserService) ListUsers(ctx context.Context, activeOnly bool) ([]*model.User, error) {
	return m.listUsersFn(ctx, activeOnly)
}

type mockLoanService struct {
	createLoanFn     func(ctx context.Context, userID, bookID string) (*model.Loan, error)
	registerReturnFn func(ctx context.Context, loanID string) (*model.Loan, error)
	getLoanFn        func(ctx context.Context, id string) (*model.Loan, error)
	listLoansFn      func(ctx context.Context, filter model.LoanFilter) ([]*model.Loan, error)
	fineFn           func(loan *model.Loan) int64
	today            time.Time
}

func (m *mockLoanService) CreateLoan(ctx context.Context, userID, bookID string) (*model.Loan, error) {
	return m.createLoanFn(ctx, userID, bookID)
}
func (m *mockLoanService) RegisterReturn(ctx context.Context, loanID string) (*model.Loan, error) {
	return m.registerReturnFn(ctx, loanID)
}
func (m *mockLoanService) GetLoan(ctx context.Context, id string) (*model.Loan, error) {
	return m.getLoanFn(ctx, id)
}
func (m *mockLoanService) ListLoans(ctx context.Context, filter model.LoanFilter) ([]*model.Loan, error) {
	return m.listLoansFn(ctx, filter)
}
func (m *mockLoanService) ComputeFine(loan *model.Loan) int64 {
	if m.fineFn != nil {
		return m.fineFn(loan)
	}
	return 0
}
func (m *mockLoanService) Today() time.Time {
	return m.today
}

type mockDashboardService struct {
	getStatisticsFn func(ctx context.Context) (*model.Statistics, error)
}

func (m *mockDashboardService) GetStatistics(ctx context.Context) (*model.Statistics, error) {
	return m.getStatisticsFn(ctx)
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(_ context.Context) error {
	return m.err
}

var (
	_ AuthServiceInterface      = (*mockAuthService)(nil)
	_ BookServiceInterface      = (*mockBookService)(nil)
	_ UserServiceInterface      = (*mockUserService)(nil)
	_ LoanServiceInterface      = (*mockLoanService)(nil)
	_ DashboardServiceInterface = (*mockDashboardService)(nil)
	_ Pinger                    = (*mockPinger)(nil)
)

// --- ヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
