package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tunetalk/internal/auth"
	"github.com/hitoshi/tunetalk/internal/comment"
	"github.com/hitoshi/tunetalk/internal/metrics"
	"github.com/hitoshi/tunetalk/internal/middleware"
	"github.com/hitoshi/tunetalk/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	List(ctx context.Context, caller *auth.Identity, input comment.ListInput) ([]model.CommentWithOwnership, error)
	Create(ctx context.Context, caller *auth.Identity, input comment.CreateInput) (*model.Comment, error)
	BulkCounts(ctx context.Context, caller *auth.Identity, playlistID string, trackURIs []string) (map[string]int, error)
	Stats(ctx context.Context, caller *auth.Identity, playlistID string) (*model.CommentStats, error)
	Delete(ctx context.Context, caller *auth.Identity, commentID string) error
}

// CommentHandler はコメント管理のHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
	metrics metrics.MetricsCollector
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface, collector metrics.MetricsCollector) *CommentHandler {
	return &CommentHandler{
		service: service,
		metrics: collector,
	}
}

// --- リクエスト・レスポンス型 ---

// commentResponse はコメント1件のレスポンス。
type commentResponse struct {
	ID         string    `json:"id"`
	PlaylistID string    `json:"playlist_id"`
	TrackURI   *string   `json:"track_uri"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// commentWithOwnershipResponse は所有者フラグ付きのコメントレスポンス。
type commentWithOwnershipResponse struct {
	commentResponse
	IsOwner bool `json:"is_owner"`
}

// createCommentRequest はコメント投稿リクエストのボディ。
type createCommentRequest struct {
	PlaylistID string  `json:"playlist_id"`
	TrackURI   *string `json:"track_uri,omitempty"`
	Text       string  `json:"text"`
}

// countsRequest は一括カウント取得リクエストのボディ。
// TrackURIsはフィールド省略と空配列を区別するためポインタで受ける。
type countsRequest struct {
	PlaylistID string    `json:"playlist_id"`
	TrackURIs  *[]string `json:"track_uris"`
}

// statsResponse はコメント統計のレスポンス。
type statsResponse struct {
	TotalComments      int        `json:"total_comments"`
	TracksWithComments int        `json:"tracks_with_comments"`
	FirstComment       *time.Time `json:"first_comment"`
	LatestComment      *time.Time `json:"latest_comment"`
}

// deleteResponse はコメント削除のレスポンス。
type deleteResponse struct {
	Message   string `json:"message"`
	DeletedID string `json:"deleted_id"`
}

// List はコメント一覧を取得する。
// GET /comments?playlist_id&track_uri?&limit?&offset?
// 認証は任意。有効なトークンがある場合のみis_ownerが計算される。
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())

	query := r.URL.Query()
	input := comment.ListInput{
		PlaylistID: query.Get("playlist_id"),
	}
	if uri := query.Get("track_uri"); uri != "" {
		input.TrackURI = &uri
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			middleware.WriteAPIError(w, model.NewInvalidArgumentError("limitは整数で指定してください"))
			return
		}
		input.Limit = limit
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			middleware.WriteAPIError(w, model.NewInvalidArgumentError("offsetは整数で指定してください"))
			return
		}
		input.Offset = offset
	}

	comments, err := h.service.List(r.Context(), caller, input)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	result := make([]commentWithOwnershipResponse, 0, len(comments))
	for _, c := range comments {
		result = append(result, commentWithOwnershipResponse{
			commentResponse: toCommentResponse(&c.Comment),
			IsOwner:         c.IsOwner,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

// Create はコメントを投稿する。
// POST /comments（要認証）
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	var req createCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidArgumentError("リクエストボディが不正です"))
		return
	}

	created, err := h.service.Create(r.Context(), caller, comment.CreateInput{
		PlaylistID: req.PlaylistID,
		TrackURI:   req.TrackURI,
		Text:       req.Text,
	})
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCommentCreated()
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(created))
}

// BulkCounts はプレイリスト内の楽曲ごとのコメント数を返す。
// POST /comments/counts
// track_urisフィールドの省略は400、空配列は空マップを返す。
func (h *CommentHandler) BulkCounts(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())

	var req countsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidArgumentError("リクエストボディが不正です"))
		return
	}
	if req.TrackURIs == nil {
		middleware.WriteAPIError(w, model.NewInvalidArgumentError("track_urisは必須です"))
		return
	}

	counts, err := h.service.BulkCounts(r.Context(), caller, req.PlaylistID, *req.TrackURIs)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, counts)
}

// Stats はプレイリスト単位のコメント統計を返す。
// GET /comments/stats/{playlist_id}
func (h *CommentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())
	playlistID := chi.URLParam(r, "playlist_id")

	stats, err := h.service.Stats(r.Context(), caller, playlistID)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalComments:      stats.TotalComments,
		TracksWithComments: stats.TracksWithComments,
		FirstComment:       stats.FirstComment,
		LatestComment:      stats.LatestComment,
	})
}

// Delete はコメントを削除する。
// DELETE /comments/{comment_id}（要認証、所有者のみ）
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	commentID := chi.URLParam(r, "comment_id")
	if err := h.service.Delete(r.Context(), caller, commentID); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCommentDeleted()
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		Message:   "コメントを削除しました",
		DeletedID: commentID,
	})
}

// toCommentResponse はドメインモデルをレスポンス型に変換する。
func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:         c.ID,
		PlaylistID: c.PlaylistID,
		TrackURI:   c.TrackURI,
		Text:       c.Text,
		CreatedAt:  c.CreatedAt,
	}
}
