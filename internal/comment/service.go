// Package comment はプレイリスト・楽曲コメントの管理機能を提供する。
package comment

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/tunetalk/internal/auth"
	"github.com/hitoshi/tunetalk/internal/authz"
	"github.com/hitoshi/tunetalk/internal/model"
	"github.com/hitoshi/tunetalk/internal/repository"
	"github.com/hitoshi/tunetalk/internal/security"
)

// 一覧取得のページングパラメータ。
const (
	// DefaultListLimit はlimit未指定時の取得件数。
	DefaultListLimit = 50
	// MaxListLimit は1回の取得で許容する最大件数。
	MaxListLimit = 200
)

// CommentService はコメントの取得・投稿・削除のサービス。
type CommentService struct {
	commentRepo repository.CommentRepository
	sanitizer   security.TextSanitizerService
}

// NewCommentService はCommentServiceの新しいインスタンスを生成する。
func NewCommentService(
	commentRepo repository.CommentRepository,
	sanitizer security.TextSanitizerService,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		sanitizer:   sanitizer,
	}
}

// ListInput はコメント一覧取得の入力。
// TrackURIがnilの場合はプレイリスト直下のコメントのみを返す。
type ListInput struct {
	PlaylistID string
	TrackURI   *string
	Limit      int
	Offset     int
}

// CreateInput はコメント投稿の入力。
type CreateInput struct {
	PlaylistID string
	TrackURI   *string
	Text       string
}

// List はコメント一覧をcreated_at昇順で返す。
// callerが認証済みの場合、各コメントに所有者フラグを注釈する。
// 未認証の場合は全件IsOwner=falseとなる（閲覧自体は常に許可）。
func (s *CommentService) List(
	ctx context.Context,
	caller *auth.Identity,
	input ListInput,
) ([]model.CommentWithOwnership, error) {
	if err := authz.Authorize(authz.OpListComments, caller, nil); err != nil {
		return nil, err
	}

	if input.PlaylistID == "" {
		return nil, model.NewInvalidArgumentError("playlist_idは必須です")
	}
	if input.TrackURI != nil && !model.ValidTrackURI(*input.TrackURI) {
		return nil, model.NewInvalidArgumentError("track_uriの形式が不正です")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	comments, err := s.commentRepo.List(ctx, repository.CommentFilter{
		PlaylistID: input.PlaylistID,
		TrackURI:   input.TrackURI,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, err
	}

	result := make([]model.CommentWithOwnership, 0, len(comments))
	for _, c := range comments {
		result = append(result, model.CommentWithOwnership{
			Comment: *c,
			IsOwner: isOwner(caller, c.UserID),
		})
	}
	return result, nil
}

// Create はコメントを投稿する。
// 本文はサニタイズ・トリム後に長さ検証を行うため、
// タグのみの入力は空文字列として拒否される。
func (s *CommentService) Create(
	ctx context.Context,
	caller *auth.Identity,
	input CreateInput,
) (*model.Comment, error) {
	if err := authz.Authorize(authz.OpCreateComment, caller, nil); err != nil {
		return nil, err
	}

	if input.PlaylistID == "" {
		return nil, model.NewInvalidArgumentError("playlist_idは必須です")
	}
	if input.TrackURI != nil && !model.ValidTrackURI(*input.TrackURI) {
		return nil, model.NewInvalidArgumentError("track_uriの形式が不正です")
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(input.Text))
	if text == "" {
		return nil, model.NewInvalidArgumentError("コメント本文は必須です")
	}
	if len([]rune(text)) > model.MaxCommentLength {
		return nil, model.NewInvalidArgumentError("コメント本文が長すぎます")
	}

	userID := caller.UserID
	comment := &model.Comment{
		ID:         uuid.New().String(),
		PlaylistID: input.PlaylistID,
		TrackURI:   input.TrackURI,
		Text:       text,
		UserID:     &userID,
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		// バウンダリ検証をすり抜けた値がDB制約で弾かれた場合
		if errors.Is(err, repository.ErrCheckViolation) {
			return nil, model.NewInvalidArgumentError("コメント本文が制約に違反しています")
		}
		return nil, err
	}
	return comment, nil
}

// BulkCounts はプレイリスト内の指定楽曲ごとのコメント数を返す。
// 空のURIリストには空のマップを返す（DBアクセスなし）。
// コメントのない楽曲は結果に含まれない。
func (s *CommentService) BulkCounts(
	ctx context.Context,
	caller *auth.Identity,
	playlistID string,
	trackURIs []string,
) (map[string]int, error) {
	if err := authz.Authorize(authz.OpCountComments, caller, nil); err != nil {
		return nil, err
	}

	if playlistID == "" {
		return nil, model.NewInvalidArgumentError("playlist_idは必須です")
	}
	if len(trackURIs) > model.MaxCountTrackURIs {
		return nil, model.NewInvalidArgumentError("track_urisが多すぎます")
	}
	for _, uri := range trackURIs {
		if !model.ValidTrackURI(uri) {
			return nil, model.NewInvalidArgumentError("track_urisに不正なURIが含まれています")
		}
	}

	if len(trackURIs) == 0 {
		return map[string]int{}, nil
	}

	counts, err := s.commentRepo.CountByTrackURIs(ctx, playlistID, trackURIs)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}

// Stats はプレイリスト単位のコメント統計を返す。
// コメントが1件もない場合もゼロ値の統計を返す（404にはしない）。
func (s *CommentService) Stats(
	ctx context.Context,
	caller *auth.Identity,
	playlistID string,
) (*model.CommentStats, error) {
	if err := authz.Authorize(authz.OpCommentStats, caller, nil); err != nil {
		return nil, err
	}

	if playlistID == "" {
		return nil, model.NewInvalidArgumentError("playlist_idは必須です")
	}

	stats, err := s.commentRepo.Stats(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &model.CommentStats{}
	}
	return stats, nil
}

// Delete は指定IDのコメントを削除する。
// 所有者のみが削除でき、所有者不明のコメント（UserIDがnil）は誰も削除できない。
// 存在しないIDと権限エラーは区別して返す。
func (s *CommentService) Delete(
	ctx context.Context,
	caller *auth.Identity,
	commentID string,
) error {
	if commentID == "" {
		return model.NewInvalidArgumentError("comment_idは必須です")
	}

	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment == nil {
		return model.NewCommentNotFoundError(commentID)
	}

	if err := authz.Authorize(authz.OpDeleteComment, caller, comment.UserID); err != nil {
		return err
	}

	deleted, err := s.commentRepo.DeleteByID(ctx, commentID)
	if err != nil {
		return err
	}
	if !deleted {
		// 取得と削除の間に別リクエストが削除した場合
		return model.NewCommentNotFoundError(commentID)
	}
	return nil
}

// isOwner は所有者注釈を計算する。認証済みかつUserID一致の場合のみtrue。
func isOwner(caller *auth.Identity, ownerUserID *string) bool {
	return caller != nil && ownerUserID != nil && *ownerUserID == caller.UserID
}
