package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// defaultTimeout はHTTPリクエストのクライアント側タイムアウト。
const defaultTimeout = 10 * time.Second

// Comment はAPIから返されるコメント。
type Comment struct {
	ID         string    `json:"id"`
	PlaylistID string    `json:"playlist_id"`
	TrackURI   *string   `json:"track_uri"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	IsOwner    bool      `json:"is_owner"`
}

// Stats はプレイリスト単位のコメント統計。
type Stats struct {
	TotalComments      int        `json:"total_comments"`
	TracksWithComments int        `json:"tracks_with_comments"`
	FirstComment       *time.Time `json:"first_comment"`
	LatestComment      *time.Time `json:"latest_comment"`
}

// Me は現在のユーザー情報。
type Me struct {
	ID          string    `json:"id"`
	PrivyUserID string    `json:"privy_user_id"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// APIError はサーバーの統一エラーフォーマット。
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Category   string `json:"category"`
	Action     string `json:"action"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s (status %d)", e.Code, e.Message, e.StatusCode)
}

// CreateCommentInput はコメント投稿の入力。
type CreateCommentInput struct {
	PlaylistID string  `json:"playlist_id"`
	TrackURI   *string `json:"track_uri,omitempty"`
	Text       string  `json:"text"`
}

// ListCommentsInput はコメント一覧取得の入力。
type ListCommentsInput struct {
	PlaylistID string
	TrackURI   *string
	Limit      int
	Offset     int
}

// Client はAPIサーバーの型付きクライアント。
// セッショントークンは注入されたSessionStoreから毎リクエスト読み取る。
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      SessionStore

	// bulkCountsのリトライ間隔。テストではゼロ値のスライスに差し替える。
	countsBackoff []time.Duration
}

// New はClientを生成する。
// httpClientがnilの場合はデフォルトタイムアウト付きのクライアントを使用する。
func New(baseURL string, store SessionStore, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:       baseURL,
		httpClient:    httpClient,
		store:         store,
		countsBackoff: []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second},
	}
}

// Exchange は外部IDトークンをセッショントークンに交換し、ストアに保存する。
func (c *Client) Exchange(ctx context.Context, privyToken string) (string, error) {
	var resp struct {
		Token       string `json:"token"`
		PrivyUserID string `json:"privyUserId"`
	}
	body := map[string]string{"privyToken": privyToken}
	if err := c.do(ctx, http.MethodPost, "/auth/exchange", body, &resp); err != nil {
		return "", err
	}

	c.store.Set(resp.Token)
	return resp.PrivyUserID, nil
}

// DevLogin はdev環境向けにemailからdevトークンを取得する。
// 返されたトークンはExchangeにそのまま渡せる。
func (c *Client) DevLogin(ctx context.Context, email string) (string, error) {
	var resp struct {
		PrivyToken string `json:"privyToken"`
	}
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, "/auth/dev-login", body, &resp); err != nil {
		return "", err
	}
	return resp.PrivyToken, nil
}

// CurrentUser は現在のユーザー情報を取得する。
func (c *Client) CurrentUser(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// ListComments はコメント一覧を取得する。
func (c *Client) ListComments(ctx context.Context, input ListCommentsInput) ([]Comment, error) {
	query := url.Values{}
	query.Set("playlist_id", input.PlaylistID)
	if input.TrackURI != nil {
		query.Set("track_uri", *input.TrackURI)
	}
	if input.Limit > 0 {
		query.Set("limit", strconv.Itoa(input.Limit))
	}
	if input.Offset > 0 {
		query.Set("offset", strconv.Itoa(input.Offset))
	}

	var comments []Comment
	if err := c.do(ctx, http.MethodGet, "/comments?"+query.Encode(), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment はコメントを投稿する。
func (c *Client) CreateComment(ctx context.Context, input CreateCommentInput) (*Comment, error) {
	var created Comment
	if err := c.do(ctx, http.MethodPost, "/comments", input, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteComment はコメントを削除し、削除されたIDを返す。
func (c *Client) DeleteComment(ctx context.Context, commentID string) (string, error) {
	var resp struct {
		Message   string `json:"message"`
		DeletedID string `json:"deleted_id"`
	}
	if err := c.do(ctx, http.MethodDelete, "/comments/"+commentID, nil, &resp); err != nil {
		return "", err
	}
	return resp.DeletedID, nil
}

// Stats はプレイリスト単位のコメント統計を取得する。
func (c *Client) Stats(ctx context.Context, playlistID string) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/comments/stats/"+playlistID, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// BulkCounts はプレイリスト内の楽曲ごとのコメント数を取得する。
// 存在インジケータの一括取得という性質上、この呼び出しだけは
// ネットワークエラーと5xxに対して独自のリトライ（バックオフ付き）を行う。
// 4xxはリクエスト自体の問題なのでリトライしない。
func (c *Client) BulkCounts(ctx context.Context, playlistID string, trackURIs []string) (map[string]int, error) {
	body := map[string]any{
		"playlist_id": playlistID,
		"track_uris":  trackURIs,
	}
	if trackURIs == nil {
		body["track_uris"] = []string{}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		var counts map[string]int
		err := c.do(ctx, http.MethodPost, "/comments/counts", body, &counts)
		if err == nil {
			return counts, nil
		}

		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode < 500 {
			return nil, err
		}
		lastErr = err

		if attempt >= len(c.countsBackoff) {
			return nil, lastErr
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.countsBackoff[attempt]):
		}
	}
}

// do はリクエストを送信し、2xxのレスポンスボディをoutにデコードする。
// 非2xxは統一エラーフォーマットとして*APIErrorにデコードする。
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := c.store.Get(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil {
			apiErr.Code = "UNKNOWN"
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
