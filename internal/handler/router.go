package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/metrics"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	DB                Pinger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 業務
	BookService      BookServiceInterface
	UserService      UserServiceInterface
	LoanService      LoanServiceInterface
	DashboardService DashboardServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	保護ルート: Session(Cookie/Bearer) → CSRF → RateLimit(General)
//
// ログイン・トークン発行は接続元IPごとのレート制限を受ける。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(metrics.Middleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	bookHandler := NewBookHandler(deps.BookService)
	userHandler := NewUserHandler(deps.UserService)
	loanHandler := NewLoanHandler(deps.LoanService)
	dashboardHandler := NewDashboardHandler(deps.DashboardService)

	sessionMW := middleware.NewSessionMiddleware(deps.SessionFinder, deps.TokenVerifier)

	// --- 認証不要のルート ---
	if deps.DB != nil {
		r.Get("/health", NewHealthHandler(deps.DB))
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/token", authHandler.IssueToken)
		r.Post("/logout", authHandler.Logout)
		r.With(sessionMW).Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(sessionMW)
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/dashboard", dashboardHandler.GetStatistics)

		r.Route("/api/books", func(r chi.Router) {
			r.Get("/", bookHandler.ListBooks)
			r.Post("/", bookHandler.CreateBook)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", bookHandler.GetBook)
				r.Put("/", bookHandler.UpdateBook)
				r.Delete("/", bookHandler.DeleteBook)
			})
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.ListUsers)
			r.Post("/", userHandler.CreateUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.GetUser)
				r.Put("/", userHandler.UpdateUser)
				r.Delete("/", userHandler.DeleteUser)
			})
		})

		r.Route("/api/loans", func(r chi.Router) {
			r.Get("/", loanHandler.ListLoans)
			r.Post("/", loanHandler.Checkout)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", loanHandler.GetLoan)
				r.Post("/return", loanHandler.Return)
			})
		})
	})

	return r
}
