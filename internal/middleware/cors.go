package middleware

import (
	"net/http"
	"strings"
)

// chromeExtensionScheme はブラウザ拡張のオリジンスキーム。
// 拡張のオリジンはインストールごとに異なるIDを含むため、スキーム単位で許可する。
const chromeExtensionScheme = "chrome-extension://"

// NewCORSMiddleware は許可オリジンリストに基づくCORSミドルウェアを返す。
// chrome-extension://スキームのオリジンは設定に関わらず常に許可する。
// Bearerトークン方式のためcredentialsは使用せず、Authorizationヘッダーを許可する。
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin != "" {
			allowed[origin] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed[origin] || strings.HasPrefix(origin, chromeExtensionScheme)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			// OPTIONSプリフライトリクエストには204で応答
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
