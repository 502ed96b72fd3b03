package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/tunetalk/internal/auth"
	"github.com/hitoshi/tunetalk/internal/comment"
	"github.com/hitoshi/tunetalk/internal/middleware"
	"github.com/hitoshi/tunetalk/internal/model"
)

var routerTestSecret = []byte("router-test-secret-32bytes-long!!")

// authedContext はテスト用の認証済みコンテキストを返す。
func authedContext(userID string) context.Context {
	identity := &auth.Identity{UserID: userID, PrivyUserID: "did:privy:" + userID}
	return middleware.ContextWithIdentity(context.Background(), identity)
}

// newTestRouter はモックサービスを組み込んだルーターを生成する。
func newTestRouter(t *testing.T, commentSvc CommentServiceInterface, authSvc AuthServiceInterface) http.Handler {
	t.Helper()

	if commentSvc == nil {
		commentSvc = &mockCommentService{
			listFunc: func(ctx context.Context, caller *auth.Identity, input comment.ListInput) ([]model.CommentWithOwnership, error) {
				return nil, nil
			},
		}
	}
	if authSvc == nil {
		authSvc = &mockAuthService{}
	}

	return NewRouter(&RouterDeps{
		JWTSecret:      routerTestSecret,
		AuthService:    authSvc,
		AuthConfig:     AuthHandlerConfig{DevLoginEnabled: true},
		CommentService: commentSvc,
		Version:        "test",
	})
}

func routerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.IssueSessionToken(routerTestSecret, userID, "did:privy:"+userID, time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken() error = %v", err)
	}
	return token
}

// ヘルスチェックのレスポンス形状
func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v", body["version"])
	}
	if _, ok := body["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

// /debugが診断情報をエコーし、機密ヘッダーを含めないこと
func TestRouter_Debug(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/debug?q=1", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body debugResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Method != http.MethodGet {
		t.Errorf("method = %q", body.Method)
	}
	if !strings.Contains(body.URL, "/debug") {
		t.Errorf("url = %q", body.URL)
	}
	if body.Headers["User-Agent"] != "test-agent" {
		t.Errorf("User-Agent = %q", body.Headers["User-Agent"])
	}
	if _, leaked := body.Headers["Authorization"]; leaked {
		t.Error("Authorization header must not be echoed")
	}
}

// 存在しないパスがJSONの404になること
func TestRouter_NotFoundJSON(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["error"] != "not_found" {
		t.Errorf("error = %q", body["error"])
	}
}

// 認証必須ルートがトークン無しで401になること
func TestRouter_AuthRequiredRoutes(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/comments", `{"playlist_id":"pl1","text":"hi"}`},
		{http.MethodDelete, "/comments/c1", ""},
		{http.MethodGet, "/auth/me", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var reqBody *strings.Reader
			if tt.body != "" {
				reqBody = strings.NewReader(tt.body)
			} else {
				reqBody = strings.NewReader("")
			}
			req := httptest.NewRequest(tt.method, tt.path, reqBody)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

// 有効なトークンで投稿から一覧までのフローが通ること
func TestRouter_CreateAndListFlow(t *testing.T) {
	var stored []*model.Comment
	commentSvc := &mockCommentService{
		createFunc: func(ctx context.Context, caller *auth.Identity, input comment.CreateInput) (*model.Comment, error) {
			c := &model.Comment{
				ID:         "c1",
				PlaylistID: input.PlaylistID,
				Text:       strings.TrimSpace(input.Text),
				UserID:     strPtr(caller.UserID),
				CreatedAt:  time.Now(),
			}
			stored = append(stored, c)
			return c, nil
		},
		listFunc: func(ctx context.Context, caller *auth.Identity, input comment.ListInput) ([]model.CommentWithOwnership, error) {
			result := make([]model.CommentWithOwnership, 0, len(stored))
			for _, c := range stored {
				isOwner := caller != nil && c.UserID != nil && *c.UserID == caller.UserID
				result = append(result, model.CommentWithOwnership{Comment: *c, IsOwner: isOwner})
			}
			return result, nil
		},
	}
	router := newTestRouter(t, commentSvc, nil)
	token := routerToken(t, "user-1")

	// 投稿
	req := httptest.NewRequest(http.MethodPost, "/comments", strings.NewReader(`{"playlist_id":"pl1","text":"hello"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// トークン付き一覧: is_owner=true
	req = httptest.NewRequest(http.MethodGet, "/comments?playlist_id=pl1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var listed []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if len(listed) != 1 || listed[0]["is_owner"] != true {
		t.Errorf("owner list = %v", listed)
	}

	// トークン無し一覧: is_owner=false
	req = httptest.NewRequest(http.MethodGet, "/comments?playlist_id=pl1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if len(listed) != 1 || listed[0]["is_owner"] != false {
		t.Errorf("anonymous list = %v", listed)
	}
}

// 統計ルートがパスパラメータを受け取ること
func TestRouter_StatsRoute(t *testing.T) {
	commentSvc := &mockCommentService{
		statsFunc: func(ctx context.Context, caller *auth.Identity, playlistID string) (*model.CommentStats, error) {
			if playlistID != "pl42" {
				t.Errorf("playlistID = %q, want pl42", playlistID)
			}
			return &model.CommentStats{TotalComments: 5, TracksWithComments: 2}, nil
		},
	}
	router := newTestRouter(t, commentSvc, nil)

	req := httptest.NewRequest(http.MethodGet, "/comments/stats/pl42", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.TotalComments != 5 || body.TracksWithComments != 2 {
		t.Errorf("body = %+v", body)
	}
	if body.FirstComment != nil {
		t.Errorf("FirstComment = %v, want null", body.FirstComment)
	}
}
