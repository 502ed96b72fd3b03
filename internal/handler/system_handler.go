package handler

import (
	"net/http"
	"time"
)

// debugHeaderAllowlist は/debugで返すリクエストヘッダーのサブセット。
// Authorizationなどの機密ヘッダーは含めない。
var debugHeaderAllowlist = []string{
	"Origin",
	"User-Agent",
	"Content-Type",
	"Accept",
}

// SystemHandler はヘルスチェック・診断用のHTTPハンドラー。
type SystemHandler struct {
	version string
}

// NewSystemHandler はSystemHandlerを生成する。
func NewSystemHandler(version string) *SystemHandler {
	return &SystemHandler{version: version}
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// debugResponse は診断エンドポイントのレスポンス。
type debugResponse struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	Timestamp time.Time         `json:"timestamp"`
}

// Health はサービスの稼働状態を返す。
// GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// Debug はリクエストの診断情報をエコーする。
// GET /debug
func (h *SystemHandler) Debug(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string)
	for _, name := range debugHeaderAllowlist {
		if v := r.Header.Get(name); v != "" {
			headers[name] = v
		}
	}

	writeJSON(w, http.StatusOK, debugResponse{
		Method:    r.Method,
		URL:       r.URL.String(),
		Headers:   headers,
		Timestamp: time.Now().UTC(),
	})
}
