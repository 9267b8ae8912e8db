package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/auth"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/book"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/config"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/dashboard"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/database"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/handler"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/loan"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/logger"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/metrics"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/middleware"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/repository"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/security"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/user"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandStats:
		return runStats(cfg, os.Stdout)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// services はドメインサービス一式。
type services struct {
	sessionRepo *repository.PostgresSessionRepo
	users       *user.Service
	books       *book.Service
	loans       *loan.Service
	dashboard   *dashboard.Service
	auth        *auth.Service
}

// newServices はリポジトリとドメインサービスを組み立てる。
// recorderがnilの場合は貸出メトリクスを記録しない。
func newServices(db *sql.DB, cfg *config.Config, recorder loan.Recorder) *services {
	userRepo := repository.NewPostgresUserRepo(db)
	bookRepo := repository.NewPostgresBookRepo(db)
	loanRepo := repository.NewPostgresLoanRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	txRunner := repository.NewPostgresTxRunner(db)

	sanitizer := security.NewTextSanitizer()

	userSvc := user.NewService(userRepo, sessionRepo, loanRepo, sanitizer, user.Config{StrictCPF: cfg.CPFStrict})
	bookSvc := book.NewService(bookRepo, txRunner, sanitizer)

	return &services{
		sessionRepo: sessionRepo,
		users:       userSvc,
		books:       bookSvc,
		loans:       loan.NewService(loanRepo, txRunner, bookSvc, userSvc, recorder),
		dashboard:   dashboard.NewService(bookRepo, userRepo, loanRepo),
		auth: auth.NewService(userSvc, userRepo, sessionRepo, auth.ServiceConfig{
			SessionMaxAge: cfg.SessionMaxAge,
			TokenSecret:   cfg.SessionSecret,
		}),
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービスの初期化
	svc := newServices(db, cfg, collector)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     svc.sessionRepo,
		TokenVerifier:     svc.auth,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:    rateLimiter,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		DB:             db,

		AuthService: svc.auth,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		BookService:      svc.books,
		UserService:      svc.users,
		LoanService:      svc.loans,
		DashboardService: svc.dashboard,
	}

	router := handler.NewRouter(deps)

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除ジョブをSESSION_CLEANUP_INTERVALごとに実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	sessionRepo := repository.NewPostgresSessionRepo(db)
	collector := metrics.NewCollector(prometheus.NewRegistry())
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, collector, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用し、
// ADMIN_EMAILとADMIN_PASSWORDが設定されていれば初期管理者を作成する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")

	if !cfg.HasAdminSeed() {
		return nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := newServices(db, cfg, nil)
	admin, created, err := svc.users.EnsureAdmin(context.Background(), user.AdminSeed{
		Name:     cfg.AdminName,
		Email:    cfg.AdminEmail,
		CPF:      cfg.AdminCPF,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}

	slog.Info("admin account checked",
		slog.String("user_id", admin.ID),
		slog.Bool("created", created),
	)
	return nil
}

// runStats はダッシュボードの集計値を表形式で出力する。
func runStats(cfg *config.Config, out io.Writer) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := newServices(db, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := svc.dashboard.GetStatistics(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	renderStatistics(out, stats)
	return nil
}

// renderStatistics は集計値を表として書き出す。
func renderStatistics(out io.Writer, stats *model.Statistics) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Indicador", "Valor"})
	t.AppendRows([]table.Row{
		{"Livros cadastrados", stats.TotalBooks},
		{"Usuários ativos", stats.ActiveUsers},
		{"Empréstimos registrados", stats.TotalLoans},
		{"Livros disponíveis", stats.AvailableBooks},
		{"Empréstimos atrasados", stats.OverdueLoans},
	})
	t.Render()
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
