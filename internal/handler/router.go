package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/patchvote/internal/metrics"
	"github.com/hitoshi/patchvote/internal/middleware"
)

// Pinger はヘルスチェックで疎通確認する依存のインターフェース。
// *sql.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter
	DB          Pinger
	Gatherer    prometheus.Gatherer

	PatchService PatchServiceInterface
	RunService   RunServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	patchHandler := NewPatchHandler(deps.PatchService)
	runHandler := NewIngestRunHandler(deps.RunService)

	// 運用系エンドポイント
	r.Get("/health", newHealthHandler(deps.DB))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// 公開API
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware())

		r.Route("/api/patches", func(r chi.Router) {
			r.Get("/", patchHandler.ListPatches)

			r.Route("/{version}", func(r chi.Router) {
				r.Get("/", patchHandler.GetPatch)
				r.Get("/sections", patchHandler.ListSections)
			})
		})

		r.Get("/api/ingest-runs", runHandler.ListRuns)
	})

	return r
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
}

func newHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(healthResponse{Status: "unhealthy", DB: "unreachable"})
				return
			}
		}

		json.NewEncoder(w).Encode(healthResponse{Status: "ok", DB: "ok"})
	}
}
