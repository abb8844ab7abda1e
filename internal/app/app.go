// Package app はアプリケーションの起動とワイヤリングを提供する。
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
	"golang.org/x/time/rate"

	"github.com/hitoshi/patchvote/internal/config"
	"github.com/hitoshi/patchvote/internal/database"
	"github.com/hitoshi/patchvote/internal/handler"
	"github.com/hitoshi/patchvote/internal/ingest"
	"github.com/hitoshi/patchvote/internal/logger"
	"github.com/hitoshi/patchvote/internal/metrics"
	"github.com/hitoshi/patchvote/internal/middleware"
	"github.com/hitoshi/patchvote/internal/parser"
	"github.com/hitoshi/patchvote/internal/patch"
	"github.com/hitoshi/patchvote/internal/repository"
	"github.com/hitoshi/patchvote/internal/security"
	"github.com/hitoshi/patchvote/internal/source"
	"github.com/hitoshi/patchvote/internal/worker/cleanup"
	ingestworker "github.com/hitoshi/patchvote/internal/worker/ingest"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// ログの初期化（設定読み込み前にログを使えるようにする）
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
		slog.String("source_base_url", cfg.SourceBaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandFetch:
		return runFetch(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開いて疎通を確認する。
func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// newPatchSource は設定に応じた外部パッチソースを構築する。
// FeedURLが設定されている場合はRSSソース、そうでなければHTMLインデックスソースを使う。
func newPatchSource(cfg *config.Config, collector metrics.MetricsCollector) source.PatchSource {
	ssrfGuard := security.NewSSRFGuard()
	limiter := rate.NewLimiter(rate.Limit(cfg.FetchRateLimit), cfg.FetchRateBurst)

	if cfg.FeedURL != "" {
		return source.NewRSSSource(
			cfg.FeedURL, ssrfGuard, limiter, collector,
			slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize, cfg.FetchUserAgent,
		)
	}

	return source.NewRiotHTMLSource(source.RiotHTMLSourceOptions{
		BaseURL:     cfg.SourceBaseURL,
		Versions:    cfg.Versions,
		MajorMin:    cfg.MajorMin,
		MajorMax:    cfg.MajorMax,
		MinorMax:    cfg.MinorMax,
		SSRFGuard:   ssrfGuard,
		Limiter:     limiter,
		Collector:   collector,
		Logger:      slog.Default(),
		Timeout:     cfg.FetchTimeout,
		MaxBodySize: cfg.FetchMaxSize,
		UserAgent:   cfg.FetchUserAgent,
	})
}

// newIngestor は取り込みパイプラインを構築する。
func newIngestor(db *sql.DB, cfg *config.Config, collector metrics.MetricsCollector) *ingest.Ingestor {
	patchRepo := repository.NewPostgresPatchRepo(db)
	sectionRepo := repository.NewPostgresPatchSectionRepo(db)
	runRepo := repository.NewPostgresIngestRunRepo(db)

	src := newPatchSource(cfg, collector)
	patchParser := parser.NewPatchParser()
	sanitizer := security.NewContentSanitizer()
	upsertSvc := ingest.NewPatchUpsertService(patchRepo, sectionRepo, sanitizer)

	return ingest.NewIngestor(src, patchParser, upsertSvc, runRepo, collector, slog.Default())
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	patchRepo := repository.NewPostgresPatchRepo(db)
	sectionRepo := repository.NewPostgresPatchSectionRepo(db)
	runRepo := repository.NewPostgresIngestRunRepo(db)

	patchService := patch.NewService(patchRepo, sectionRepo)
	runService := patch.NewRunService(runRepo)

	registry := prometheus.NewRegistry()
	metrics.NewCollector(registry)

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:       slog.Default(),
		RateLimiter:  rateLimiter,
		DB:           db,
		Gatherer:     registry,
		PatchService: patchService,
		RunService:   runService,
	})

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

// runWorker は取り込みワーカーモードで起動する。
// 取り込みスケジューラと監査レコードのクリーンアップジョブを定期実行し、
// メトリクスとヘルスチェック用のHTTPエンドポイントも公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	ingestor := newIngestor(db, cfg, collector)
	scheduler := ingestworker.NewScheduler(ingestor, slog.Default())

	runRepo := repository.NewPostgresIngestRunRepo(db)
	cleanupJob := cleanup.NewCleanupJob(runRepo, slog.Default(), cfg.RunRetentionDays)

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

	// メトリクスとヘルスチェックの公開（ワーカーは公開APIを持たない）
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	metricsServer := &http.Server{Addr: ":" + cfg.ServerPort, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	slog.Info("worker starting",
		slog.Duration("ingest_interval", cfg.IngestInterval),
		slog.Int("run_retention_days", cleanupJob.RetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go cleanupJob.StartDaily(ctx)

	// 取り込みスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.IngestInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runFetch は取り込みを1回だけ実行して終了する。
// バージョン単位の失敗はサマリーに記録されるだけで終了コードには影響しない。
// ソースレベルの失敗で中断した場合のみエラーを返す。
func runFetch(cfg *config.Config) error {
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ingestor := newIngestor(db, cfg, metrics.NopCollector{})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, err := ingestor.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingest run failed: %w", err)
	}

	slog.Info("ingest run completed",
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("unchanged", summary.Unchanged),
		slog.Int("failed", summary.Failed),
		slog.Int("not_found", summary.NotFound),
	)
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
