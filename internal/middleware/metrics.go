package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tunetalk/internal/metrics"
)

// NewMetricsMiddleware はリクエスト数とレイテンシをPrometheusに記録するミドルウェアを返す。
// パスラベルにはchiのルートパターンを使用し、実パスによるラベルの爆発を避ける。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			// ルートパターンはルーティング完了後にのみ確定する
			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			collector.RecordHTTPRequest(r.Method, path, rec.statusCode)
			collector.RecordHTTPLatency(time.Since(start))
		})
	}
}
