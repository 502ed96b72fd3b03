// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/tunetalk/internal/auth"
	"github.com/hitoshi/tunetalk/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済み識別情報を格納するためのキー。
var identityContextKey = contextKey("identity")

// NewRequireAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 識別情報をリクエストコンテキストに注入するミドルウェアを返す。
// トークンが無い・無効・期限切れのリクエストには401 Unauthorizedを返す。
func NewRequireAuthMiddleware(jwtSecret []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFromRequest(jwtSecret, r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalAuthMiddleware は有効なBearerトークンがあれば識別情報を注入し、
// 無ければ匿名のままリクエストを通すミドルウェアを返す。
// 公開読み取りエンドポイントで所有者注釈を計算するために使用する。
// 無効なトークンはエラーにせず匿名として扱う。
func NewOptionalAuthMiddleware(jwtSecret []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity, ok := identityFromRequest(jwtSecret, r); ok {
				r = r.WithContext(ContextWithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// identityFromRequest はAuthorizationヘッダーからセッショントークンを取り出し検証する。
func identityFromRequest(jwtSecret []byte, r *http.Request) (*auth.Identity, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, false
	}

	identity, err := auth.ParseSessionToken(jwtSecret, token)
	if err != nil {
		return nil, false
	}
	return identity, true
}

// IdentityFromContext はリクエストコンテキストから認証済み識別情報を取得する。
// 未認証リクエストではnil, falseを返す。
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*auth.Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// ContextWithIdentity はコンテキストに識別情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
