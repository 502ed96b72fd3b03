package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tunetalk/internal/metrics"
	"github.com/hitoshi/tunetalk/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	JWTSecret          []byte
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	Logger             *slog.Logger

	// サービス
	AuthService    AuthServiceInterface
	AuthConfig     AuthHandlerConfig
	CommentService CommentServiceInterface

	// 運用
	Metrics metrics.MetricsCollector
	Version string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → RateLimit(General)
//
// 認証ミドルウェアはルート単位で適用する。読み取り系はOptionalAuth、
// 書き込み系はRequireAuthを使用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	requireAuth := middleware.NewRequireAuthMiddleware(deps.JWTSecret)
	optionalAuth := middleware.NewOptionalAuthMiddleware(deps.JWTSecret)

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Metrics)
	commentHandler := NewCommentHandler(deps.CommentService, deps.Metrics)
	systemHandler := NewSystemHandler(deps.Version)

	// 404をプレーンテキストではなくJSONで返す
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":   "not_found",
			"message": "指定されたエンドポイントは存在しません",
		})
	})

	// --- 運用ルート（レート制限の外） ---
	r.Get("/health", systemHandler.Health)
	r.Get("/debug", systemHandler.Debug)

	// --- APIルート ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			// OptionalAuthを先に通し、認証済みならユーザーID単位で制限する
			r.Use(optionalAuth)
			r.Use(deps.RateLimiter.GeneralMiddleware())
		} else {
			r.Use(optionalAuth)
		}

		// 認証
		r.Route("/auth", func(r chi.Router) {
			r.Post("/exchange", authHandler.Exchange)
			r.Post("/dev-login", authHandler.DevLogin)
			r.With(requireAuth).Get("/me", authHandler.Me)
		})

		// コメント
		r.Route("/comments", func(r chi.Router) {
			r.Get("/", commentHandler.List)
			r.Post("/counts", commentHandler.BulkCounts)
			r.Get("/stats/{playlist_id}", commentHandler.Stats)

			if deps.RateLimiter != nil {
				r.With(requireAuth, deps.RateLimiter.PostMiddleware()).Post("/", commentHandler.Create)
			} else {
				r.With(requireAuth).Post("/", commentHandler.Create)
			}
			r.With(requireAuth).Delete("/{comment_id}", commentHandler.Delete)
		})
	})

	return r
}
