package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sheetdash/internal/metrics"
	"github.com/hitoshi/sheetdash/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	AdminEmails       []string
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// nilの場合 /metrics は公開しない
	MetricsHandler http.Handler
	HealthChecker  HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	SheetService     SheetServiceInterface
	UserService      UserServiceInterface
	MessagingService MessagingServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS → Auth → RateLimit(General)
//
// /health、/metrics、OAuthフロー（/auth/google/*）は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	sheetHandler := NewSheetHandler(deps.SheetService)
	userHandler := NewUserHandler(deps.UserService)
	messagingHandler := NewMessagingHandler(deps.MessagingService)
	adminOnly := middleware.NewAdminMiddleware(deps.AdminEmails)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Get("/auth/google/login", authHandler.Login)
	r.Get("/auth/google/callback", authHandler.Callback)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator, deps.Metrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/auth", func(r chi.Router) {
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Post("/refresh", authHandler.Refresh)
			r.With(adminOnly).Post("/cleanup-sessions", authHandler.CleanupSessions)
		})

		// シートデータ（X-Google-Access-Token が必要）
		r.Route("/api/sheets", func(r chi.Router) {
			r.Get("/", sheetHandler.GetData)
			r.Get("/info", sheetHandler.Info)
			// 再取得は専用のレート制限を追加
			r.With(deps.RateLimiter.RefreshMiddleware()).Post("/refresh", sheetHandler.Refresh)
			r.Post("/cache/clear", sheetHandler.ClearCache)
			r.Get("/cache/stats", sheetHandler.CacheStats)
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Patch("/me", userHandler.UpdateMe)
			r.Get("/me/stats", userHandler.MeStats)

			// 管理者のみ
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", userHandler.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", userHandler.Get)
					r.Patch("/", userHandler.Update)
					r.Delete("/", userHandler.Delete)
					r.Get("/stats", userHandler.Stats)
				})
			})
		})

		r.Route("/api/waha", func(r chi.Router) {
			r.Get("/status", messagingHandler.Status)
			r.Get("/sessions", messagingHandler.Sessions)
			r.Post("/sessions/{sessionID}/send", messagingHandler.Send)
		})
	})

	return r
}
