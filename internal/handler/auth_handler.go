// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/tunetalk/internal/auth"
	"github.com/hitoshi/tunetalk/internal/metrics"
	"github.com/hitoshi/tunetalk/internal/middleware"
	"github.com/hitoshi/tunetalk/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Exchange は外部IDトークンをアプリのセッショントークンに交換する。
	Exchange(ctx context.Context, externalToken string) (*auth.ExchangeResult, error)
	// DevLogin はemailから決定的なdevトークンを生成する。
	DevLogin(ctx context.Context, email string) (string, error)
	// CurrentUser はセッションの内部ユーザーIDから現在のユーザーを取得する。
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// DevLoginEnabled はdev-loginエンドポイントを有効にするか。
	// 外部IdPが設定されている環境では必ずfalseにする。
	DevLoginEnabled bool
}

// AuthHandler はIDトークン交換関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: collector,
	}
}

// --- リクエスト・レスポンス型 ---

// exchangeRequest はトークン交換リクエストのボディ。
type exchangeRequest struct {
	PrivyToken string `json:"privyToken"`
}

// exchangeResponse はトークン交換のレスポンス。
type exchangeResponse struct {
	Token       string `json:"token"`
	PrivyUserID string `json:"privyUserId"`
}

// devLoginRequest はdev-loginリクエストのボディ。
type devLoginRequest struct {
	Email string `json:"email"`
}

// devLoginResponse はdev-loginのレスポンス。
// 返されたトークンは/auth/exchangeにそのまま渡せる。
type devLoginResponse struct {
	PrivyToken string `json:"privyToken"`
}

// meResponse は現在のユーザー情報のレスポンス。
type meResponse struct {
	ID          string    `json:"id"`
	PrivyUserID string    `json:"privy_user_id"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// Exchange は外部IDトークンをセッショントークンに交換する。
// POST /auth/exchange
func (h *AuthHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidArgumentError("リクエストボディが不正です"))
		return
	}

	result, err := h.service.Exchange(r.Context(), req.PrivyToken)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordTokenExchange(false)
		}
		middleware.WriteAPIError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTokenExchange(true)
	}
	writeJSON(w, http.StatusOK, exchangeResponse{
		Token:       result.Token,
		PrivyUserID: result.PrivyUserID,
	})
}

// DevLogin はIdP未設定環境向けにdevトークンを発行する。
// POST /auth/dev-login
// IdPが設定されている環境では400を返す。
func (h *AuthHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	if !h.config.DevLoginEnabled {
		middleware.WriteAPIError(w, model.NewInvalidArgumentError("dev-loginはこの環境では利用できません"))
		return
	}

	var req devLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidArgumentError("リクエストボディが不正です"))
		return
	}

	token, err := h.service.DevLogin(r.Context(), req.Email)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, devLoginResponse{PrivyToken: token})
}

// Me は現在のユーザー情報を返す。
// GET /auth/me（要認証）
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.CurrentUser(r.Context(), identity.UserID)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:          user.ID,
		PrivyUserID: user.PrivyUserID,
		Email:       user.Email,
		CreatedAt:   user.CreatedAt,
	})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
