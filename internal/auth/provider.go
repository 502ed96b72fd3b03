// Package auth はIDトークン交換、セッショントークンの発行・検証を提供する。
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultPrivyAPIURL = "https://auth.privy.io"

// DevTokenPrefix はdevバイパス用トークンの予約プレフィックス。
// IdPが未設定の環境でのみ受理される。
const DevTokenPrefix = "dev."

// ErrTokenRejected はIdPがトークンを検証できなかったことを表す。
var ErrTokenRejected = errors.New("identity token rejected")

// IdentityProvider は外部IdPとの連携インターフェース。
// 本番のPrivy検証とdevバイパスを同一の契約で差し替える。
type IdentityProvider interface {
	// VerifyToken は外部IDトークンを検証し、subject IDを返す。
	// 検証できない場合はErrTokenRejectedを返す。
	VerifyToken(ctx context.Context, token string) (string, error)

	// FetchEmail はsubjectのメールアドレスをベストエフォートで取得する。
	// 取得できない場合は空文字列を返す。交換フローを失敗させてはならない。
	FetchEmail(ctx context.Context, subject string) (string, error)
}

// PrivyConfig はPrivyプロバイダーの設定。
type PrivyConfig struct {
	AppID     string
	AppSecret string

	// テスト用にオーバーライド可能なURL
	APIURL string
}

// PrivyProvider はPrivyのサーバーAPIによるIDトークン検証を提供する。
type PrivyProvider struct {
	config PrivyConfig
	client *http.Client
}

// NewPrivyProvider はPrivyProviderを生成する。
func NewPrivyProvider(config PrivyConfig, client *http.Client) *PrivyProvider {
	if config.APIURL == "" {
		config.APIURL = defaultPrivyAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &PrivyProvider{config: config, client: client}
}

// privyUserResponse はPrivyのユーザーエンドポイントのレスポンス。
type privyUserResponse struct {
	ID             string `json:"id"`
	LinkedAccounts []struct {
		Type    string `json:"type"`
		Address string `json:"address"`
	} `json:"linked_accounts"`
}

// VerifyToken はPrivyのトークン検証エンドポイントでsubject IDを取得する。
func (p *PrivyProvider) VerifyToken(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.APIURL+"/api/v1/users/me", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("privy-app-id", p.config.AppID)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read verify response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", ErrTokenRejected
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token verification failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user privyUserResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("failed to parse verify response: %w", err)
	}
	if user.ID == "" {
		return "", ErrTokenRejected
	}

	return user.ID, nil
}

// FetchEmail はPrivyのユーザーAPIからemailをベストエフォートで取得する。
func (p *PrivyProvider) FetchEmail(ctx context.Context, subject string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.APIURL+"/api/v1/users/"+subject, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create user request: %w", err)
	}
	req.SetBasicAuth(p.config.AppID, p.config.AppSecret)
	req.Header.Set("privy-app-id", p.config.AppID)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read user response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user privyUserResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("failed to parse user response: %w", err)
	}

	for _, account := range user.LinkedAccounts {
		if account.Type == "email" && account.Address != "" {
			return account.Address, nil
		}
	}

	return "", nil
}

// DevProvider はIdP未設定環境向けのdevバイパスプロバイダー。
// 予約プレフィックス付きトークンに自己申告のsubjectを載せる方式で、
// IdPクレデンシャルが設定された環境では決して使用してはならない。
type DevProvider struct{}

// NewDevProvider はDevProviderを生成する。
func NewDevProvider() *DevProvider {
	return &DevProvider{}
}

// VerifyToken は予約プレフィックス付きトークンからsubjectを取り出す。
func (p *DevProvider) VerifyToken(_ context.Context, token string) (string, error) {
	if !strings.HasPrefix(token, DevTokenPrefix) {
		return "", ErrTokenRejected
	}
	subject := strings.TrimPrefix(token, DevTokenPrefix)
	if subject == "" {
		return "", ErrTokenRejected
	}
	return subject, nil
}

// FetchEmail はdevモードでは常に空文字列を返す。
func (p *DevProvider) FetchEmail(_ context.Context, _ string) (string, error) {
	return "", nil
}

// compile-time interface checks
var _ IdentityProvider = (*PrivyProvider)(nil)
var _ IdentityProvider = (*DevProvider)(nil)
