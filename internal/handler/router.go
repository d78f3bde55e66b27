package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pressroom/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter
	JWTSecret   string

	DigestService  DigestServiceInterface
	InterestLister InterestListerInterface

	// MetricsHandler は/metricsにマウントするPrometheusハンドラー。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → RateLimit → (認証ルートのみ) Auth
//
// /healthと/metricsはレート制限・認証の対象外。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(deps.RateLimiter.Middleware())

	digestHandler := NewDigestHandler(deps.DigestService)
	interestHandler := NewInterestHandler(deps.InterestLister)

	// --- 認証不要のルート ---

	r.Get("/health", handleHealth)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// トピックカタログは未認証でも参照できる
	r.Get("/api/interests", interestHandler.ListInterests)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.JWTSecret))

		r.Get("/api/interests/me", interestHandler.ListMyInterests)

		r.Route("/api/digests", func(r chi.Router) {
			r.Post("/generate", digestHandler.GenerateDigest)
			r.Get("/", digestHandler.ListDigests)
			r.Get("/latest", digestHandler.LatestDigest)
			r.Get("/date/{date}", digestHandler.GetDigestByDate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", digestHandler.GetDigest)
				r.Delete("/", digestHandler.DeleteDigest)
			})
		})
	})

	return r
}

// handleHealth はヘルスチェックエンドポイント。
// GET /health
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
