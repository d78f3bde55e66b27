// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pressroom/internal/config"
	"github.com/hitoshi/pressroom/internal/database"
	"github.com/hitoshi/pressroom/internal/digest"
	"github.com/hitoshi/pressroom/internal/handler"
	"github.com/hitoshi/pressroom/internal/logger"
	"github.com/hitoshi/pressroom/internal/metrics"
	"github.com/hitoshi/pressroom/internal/middleware"
	"github.com/hitoshi/pressroom/internal/news"
	"github.com/hitoshi/pressroom/internal/openai"
	"github.com/hitoshi/pressroom/internal/repository"
	"github.com/hitoshi/pressroom/internal/schedule"
	"github.com/hitoshi/pressroom/internal/security"
	"github.com/hitoshi/pressroom/internal/worker/cleanup"
	"github.com/hitoshi/pressroom/internal/worker/digestrun"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// deps はserve/workerの両モードで共有される依存関係一式。
type deps struct {
	userRepo     *repository.PostgresUserRepo
	interestRepo *repository.PostgresInterestRepo
	digestRepo   *repository.PostgresDigestRepo
	collector    *metrics.Collector
	registry     *prometheus.Registry
	digestSvc    *digest.Service
}

// buildDeps はDB接続からダイジェスト生成までの依存関係をワイヤリングする。
func buildDeps(cfg *config.Config, db *sql.DB) *deps {
	userRepo := repository.NewPostgresUserRepo(db)
	interestRepo := repository.NewPostgresInterestRepo(db)
	digestRepo := repository.NewPostgresDigestRepo(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	feedGuard := security.NewFeedGuard()
	markdownSanitizer := security.NewMarkdownSanitizer()
	headlineSanitizer := security.NewHeadlineSanitizer()

	newsClient := news.NewClient(
		&http.Client{Timeout: cfg.FetchTimeout},
		slog.Default(), cfg.NewsAPIKey, cfg.NewsAPICountry, cfg.NewsAPIPageSize,
	)
	rssSource := news.NewRSSSource(
		feedGuard.SafeClient(cfg.FetchTimeout), feedGuard,
		slog.Default(), cfg.NewsAPIPageSize, cfg.FetchMaxSize,
	)
	cache := news.NewHeadlineCache(cfg.HeadlineCacheTTL)
	newsService := news.NewService(newsClient, rssSource, cache, headlineSanitizer, slog.Default())

	openaiClient := openai.NewClient(
		&http.Client{Timeout: cfg.GenerateTimeout},
		slog.Default(), markdownSanitizer, headlineSanitizer,
		cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIMaxTokens,
	)

	digestSvc := digest.NewService(
		userRepo, interestRepo, digestRepo,
		newsService, openaiClient, collector, slog.Default(),
	)

	return &deps{
		userRepo:     userRepo,
		interestRepo: interestRepo,
		digestRepo:   digestRepo,
		collector:    collector,
		registry:     registry,
		digestSvc:    digestSvc,
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	d := buildDeps(cfg, db)

	// 定義済みトピックを冪等にシードする
	seeded, err := d.interestRepo.Seed(context.Background())
	if err != nil {
		return fmt.Errorf("failed to seed interests: %w", err)
	}
	if seeded > 0 {
		slog.Info("predefined interests seeded", slog.Int("created", seeded))
	}

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(
			cfg.RateLimitPerMinute, cfg.RateLimitBurst,
			cfg.AuthRatePerMinute, cfg.AuthRateBurst,
		),
		cfg.JWTSecret,
		d.collector,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         slog.Default(),
		RateLimiter:    rateLimiter,
		JWTSecret:      cfg.JWTSecret,
		DigestService:  d.digestSvc,
		InterestLister: d.interestRepo,
		MetricsHandler: metrics.Handler(d.registry),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // オンデマンド生成は外部API呼び出しを含む
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
// ダイジェスト生成スケジューラとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	d := buildDeps(cfg, db)

	scheduler := digestrun.NewScheduler(
		d.userRepo, d.interestRepo, d.digestRepo, d.digestSvc,
		slog.Default(), schedule.DefaultWindowLength,
	)

	cleanupJob := cleanup.NewDigestCleanupJob(db, slog.Default(), cfg.DigestRetentionDays)

	// グレースフルシャットダウンのためのシグナルハンドリング
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
		slog.Duration("check_interval", cfg.DigestCheckInterval),
		slog.Int("retention_days", cfg.DigestRetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go cleanupJob.StartDaily(ctx)

	// ダイジェストスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.DigestCheckInterval)

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
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
