package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/sheetdash/internal/auth"
	"github.com/hitoshi/sheetdash/internal/cache"
	"github.com/hitoshi/sheetdash/internal/clock"
	"github.com/hitoshi/sheetdash/internal/config"
	"github.com/hitoshi/sheetdash/internal/database"
	"github.com/hitoshi/sheetdash/internal/handler"
	"github.com/hitoshi/sheetdash/internal/logger"
	"github.com/hitoshi/sheetdash/internal/messaging"
	"github.com/hitoshi/sheetdash/internal/metrics"
	"github.com/hitoshi/sheetdash/internal/middleware"
	"github.com/hitoshi/sheetdash/internal/model"
	"github.com/hitoshi/sheetdash/internal/repository"
	"github.com/hitoshi/sheetdash/internal/security"
	"github.com/hitoshi/sheetdash/internal/sheets"
	"github.com/hitoshi/sheetdash/internal/user"
	"github.com/hitoshi/sheetdash/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

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
	default:
		return runServe(cfg)
	}
}

// App はAPIサーバーを構成する依存関係一式。
type App struct {
	Router      http.Handler
	Cleanup     *cleanup.CleanupJob
	RateLimiter *middleware.RateLimiter
}

// Close はバックグラウンドで動くリソースを停止する。
func (a *App) Close() {
	a.RateLimiter.Stop()
}

// New は開いたDB接続から全依存関係をワイヤリングしてAppを返す。
func New(cfg *config.Config, db *sql.DB, dialect database.Dialect) *App {
	clk := clock.System{}

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(reg)

	// 2. リポジトリの初期化
	userRepo := repository.NewSQLUserRepo(db, dialect)
	sessionRepo := repository.NewSQLSessionRepo(db, dialect)
	snapshotRepo := repository.NewSQLSheetSnapshotRepo(db, dialect)

	// 3. セキュリティ（Google APIへの外向き通信はhttps:443のみ許可）
	guard := security.NewGuard()
	googleHTTP := guard.NewSafeClient(cfg.GoogleAPITimeout)

	// 4. ドメインサービスの初期化
	authService := newAuthService(cfg, userRepo, sessionRepo, clk, googleHTTP)

	sheetCache := cache.New[*model.SheetPayload](clk, cfg.CacheTTL)
	sheetService := sheets.NewService(
		sheets.NewGoogleClient(sheets.GoogleClientConfig{
			HTTPClient: googleHTTP,
			Timeout:    cfg.GoogleAPITimeout,
		}),
		sheetCache, snapshotRepo, clk, mc,
		sheets.Config{
			SheetID:  cfg.GoogleSheetID,
			Range:    cfg.GoogleSheetRange,
			CacheTTL: cfg.CacheTTL,
		},
	)

	userService := user.NewService(userRepo, sessionRepo, security.NewProfileSanitizer(), guard, clk)
	messagingService := messaging.NewService(messaging.Config{
		BaseURL: cfg.WAHABaseURL,
		APIKey:  cfg.WAHAAPIKey,
	}, clk)

	// 5. ルーターの構築
	// configのレート制限はreq/min単位
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitRefresh))

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     authService,
		AdminEmails:       cfg.AdminEmails,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		Logger:            slog.Default(),
		Metrics:           mc,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     db,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			FrontendURL:  cfg.FrontendURL,
			CookieSecure: cfg.CookieSecure,
		},

		SheetService:     sheetService,
		UserService:      userService,
		MessagingService: messagingService,
	})

	return &App{
		Router:      router,
		Cleanup:     cleanup.NewCleanupJob(authService, sheetService, mc, slog.Default()),
		RateLimiter: rl,
	}
}

func newAuthService(
	cfg *config.Config,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	clk clock.Clock,
	httpClient *http.Client,
) *auth.Service {
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		HTTPClient:   httpClient,
	})
	tokens := auth.NewTokenService(sessions, users, clk, auth.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.JWTExpiresIn,
	})
	return auth.NewService(oauthProvider, auth.NewResolver(users, clk), tokens)
}

// openDB はDB接続を開いて疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, database.Dialect, error) {
	db, dialect, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established", slog.String("dialect", string(dialect)))
	return db, dialect, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, dialect, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	app := New(cfg, db, dialect)
	defer app.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      app.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// キャッシュとセッションの掃除をバックグラウンドで実行
	go app.Cleanup.Start(ctx, cfg.CleanupInterval)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// APIサーバーとは別プロセスで期限切れセッションを定期削除する。
// キャッシュはプロセスローカルのため、ここでは掃除しない。
func runWorker(cfg *config.Config) error {
	db, dialect, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	userRepo := repository.NewSQLUserRepo(db, dialect)
	sessionRepo := repository.NewSQLSessionRepo(db, dialect)
	authService := newAuthService(cfg, userRepo, sessionRepo, clock.System{}, nil)

	job := cleanup.NewCleanupJob(authService, nil, nil, slog.Default())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting", slog.Duration("session_sweep_interval", cfg.SessionSweepInterval))

	// ブロッキング
	job.Start(ctx, cfg.SessionSweepInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
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
// sqlite:// のファイルパスはそのまま返す。
func maskDatabaseURL(url string) string {
	if strings.HasPrefix(url, "sqlite://") {
		return url
	}
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
