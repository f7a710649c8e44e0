// Package app はアプリケーションの起動・初期化・依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/redditreach/internal/analytics"
	"github.com/hitoshi/redditreach/internal/auth"
	"github.com/hitoshi/redditreach/internal/comment"
	"github.com/hitoshi/redditreach/internal/config"
	"github.com/hitoshi/redditreach/internal/database"
	"github.com/hitoshi/redditreach/internal/gateway"
	"github.com/hitoshi/redditreach/internal/handler"
	"github.com/hitoshi/redditreach/internal/logger"
	"github.com/hitoshi/redditreach/internal/metrics"
	"github.com/hitoshi/redditreach/internal/middleware"
	"github.com/hitoshi/redditreach/internal/product"
	"github.com/hitoshi/redditreach/internal/repository"
	"github.com/hitoshi/redditreach/internal/security"
	"github.com/hitoshi/redditreach/internal/settings"
	"github.com/hitoshi/redditreach/internal/worker/cleanup"
)

// gatewayMaxResponseSize はSSRF防止クライアントのレスポンス上限（5MiB）。
const gatewayMaxResponseSize = 5 << 20

// sessionCleanupInterval は期限切れセッション削除の実行間隔。
const sessionCleanupInterval = 1 * time.Hour

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

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
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. 外部Webhookサービス向けのHTTPクライアント
	// 通常はSSRF防止クライアントを使用する。ローカル開発でプライベート
	// アドレスのWebhookを使う場合のみWEBHOOK_ALLOW_PRIVATEで緩和できる。
	ssrfGuard := security.NewSSRFGuard()
	var httpClient *http.Client
	if cfg.WebhookAllowPrivate {
		slog.Warn("SSRF protection disabled for webhook client (WEBHOOK_ALLOW_PRIVATE=true)")
		httpClient = &http.Client{Timeout: cfg.GatewayTimeout}
	} else {
		if err := ssrfGuard.ValidateURL(cfg.WebhookURL); err != nil {
			return fmt.Errorf("webhook URL validation failed: %w", err)
		}
		httpClient = ssrfGuard.NewSafeClient(cfg.GatewayTimeout, gatewayMaxResponseSize)
	}

	// 4. メトリクスとゲートウェイクライアント
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	gatewayClient := gateway.NewClient(httpClient, slog.Default(), gateway.ClientConfig{
		Endpoint:   cfg.WebhookURL,
		APIKey:     cfg.WebhookAPIKey,
		MaxRetries: cfg.GatewayMaxRetries,
		RetryDelay: cfg.GatewayRetryDelay,
	})
	gatewayClient.SetMetrics(collector)

	// 5. ドメインサービスの初期化
	authService := auth.NewService(
		gatewayClient, userRepo, sessionRepo,
		auth.ServiceConfig{
			SessionMaxAge:    cfg.SessionMaxAge,
			DemoLoginEnabled: cfg.DemoLoginEnabled,
		},
	)

	sanitizer := security.NewContentSanitizer()
	productService := product.NewService(gatewayClient)
	commentService := comment.NewService(gatewayClient, sanitizer)
	analyticsService := analytics.NewService(gatewayClient)
	settingsService := settings.NewService(gatewayClient)

	// 6. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ModerationRate = rate.Limit(float64(cfg.RateLimitModeration) / 60.0)
	rateLimiterCfg.ModerationBurst = cfg.RateLimitModeration
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	cookieCfg := handler.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
		MaxAge: cfg.SessionMaxAge,
	}

	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger: slog.Default(),

		Cookie:      cookieCfg,
		ErrorWriter: handler.NewErrorWriter(authService, cookieCfg),

		AuthService:      authService,
		ProductService:   productService,
		CommentService:   commentService,
		AnalyticsService: analyticsService,
		SettingsService:  settingsService,

		MetricsGatherer: registry,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// 8. 期限切れセッションのクリーンアップジョブをバックグラウンド実行
	cleanupJob := cleanup.NewCleanupJob(db, sessionRepo, collector, slog.Default())
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("session cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("session cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

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
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
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
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
