package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"log/slog"

	"github.com/hitoshi/tunetalk/internal/model"
)

// ミドルウェアチェーン全体を通したリクエストの振る舞いを検証する。
// recovery → logging → cors → optional auth の順で重ねる。
func chainedHandler(t *testing.T, inner http.Handler) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(testWriter{t}, nil))

	h := NewOptionalAuthMiddleware(testSecret)(inner)
	h = NewCORSMiddleware([]string{"https://open.spotify.com"})(h)
	h = NewLoggingMiddleware(logger)(h)
	h = NewRecoveryMiddleware()(h)
	return h
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// panicがチェーン内で回復され統一フォーマットの500になること
func TestChain_PanicRecovered(t *testing.T) {
	handler := chainedHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/comments", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("Code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

// 認証付きリクエストがチェーン末端まで識別情報を保持すること
func TestChain_IdentityPropagation(t *testing.T) {
	handler := chainedHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Error("identity lost in chain")
		} else if identity.UserID != "user-1" {
			t.Errorf("UserID = %q", identity.UserID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/comments", nil)
	req.Header.Set("Origin", "https://open.spotify.com")
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, "user-1"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://open.spotify.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
