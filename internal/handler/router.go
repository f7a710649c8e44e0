package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/redditreach/internal/metrics"
	"github.com/hitoshi/redditreach/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// セッションCookieとエラー応答
	Cookie      CookieConfig
	ErrorWriter *ErrorWriter

	// サービス
	AuthService      AuthServiceInterface
	ProductService   ProductServiceInterface
	CommentService   CommentServiceInterface
	AnalyticsService AnalyticsServiceInterface
	SettingsService  SettingsServiceInterface

	// メトリクス公開用
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery
//	（保護ルートはさらに Session → CSRF → RateLimit(General)、
//	  モデレーションルートは RateLimit(Moderation) を追加）
//
// ログイン・ヘルスチェック・メトリクスはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookie, deps.ErrorWriter)
	productHandler := NewProductHandler(deps.ProductService, deps.ErrorWriter)
	commentHandler := NewCommentHandler(deps.CommentService, deps.ErrorWriter)
	analyticsHandler := NewAnalyticsHandler(deps.AnalyticsService, deps.ErrorWriter)
	settingsHandler := NewSettingsHandler(deps.SettingsService, deps.ErrorWriter)

	// --- 認証不要のルート ---

	r.Post("/auth/login", authHandler.Login)
	r.Post("/auth/logout", authHandler.Logout)
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/auth/me", authHandler.Me)

		// プロダクト管理
		r.Route("/api/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", productHandler.Update)
				r.Delete("/", productHandler.Delete)
			})
		})

		// コメントモデレーション
		r.Route("/api/comments", func(r chi.Router) {
			r.Get("/pending", commentHandler.ListPending)

			// 承認・却下はモデレーション専用レート制限を追加
			moderation := deps.RateLimiter.ModerationMiddleware()
			r.With(moderation).Post("/{id}/approve", commentHandler.Approve)
			r.With(moderation).Post("/{id}/reject", commentHandler.Reject)
			r.With(moderation).Post("/bulk/approve", commentHandler.BulkApprove)
			r.With(moderation).Post("/bulk/reject", commentHandler.BulkReject)
		})

		// 分析データ
		r.Get("/api/analytics/{type}", analyticsHandler.Get)

		// アウトリーチ設定
		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.Put("/", settingsHandler.Update)
		})
	})

	return r
}
