package comment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/tunetalk/internal/auth"
	"github.com/hitoshi/tunetalk/internal/model"
	"github.com/hitoshi/tunetalk/internal/repository"
	"github.com/hitoshi/tunetalk/internal/security"
)

// mockCommentRepo はCommentRepositoryのモック実装。
type mockCommentRepo struct {
	findByIDFunc         func(ctx context.Context, id string) (*model.Comment, error)
	listFunc             func(ctx context.Context, filter repository.CommentFilter) ([]*model.Comment, error)
	createFunc           func(ctx context.Context, comment *model.Comment) error
	countByTrackURIsFunc func(ctx context.Context, playlistID string, trackURIs []string) (map[string]int, error)
	statsFunc            func(ctx context.Context, playlistID string) (*model.CommentStats, error)
	deleteByIDFunc       func(ctx context.Context, id string) (bool, error)
}

func (m *mockCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockCommentRepo) List(ctx context.Context, filter repository.CommentFilter) ([]*model.Comment, error) {
	return m.listFunc(ctx, filter)
}

func (m *mockCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	return m.createFunc(ctx, comment)
}

func (m *mockCommentRepo) CountByTrackURIs(ctx context.Context, playlistID string, trackURIs []string) (map[string]int, error) {
	return m.countByTrackURIsFunc(ctx, playlistID, trackURIs)
}

func (m *mockCommentRepo) Stats(ctx context.Context, playlistID string) (*model.CommentStats, error) {
	return m.statsFunc(ctx, playlistID)
}

func (m *mockCommentRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	return m.deleteByIDFunc(ctx, id)
}

var _ repository.CommentRepository = (*mockCommentRepo)(nil)

func newService(repo *mockCommentRepo) *CommentService {
	return NewCommentService(repo, security.NewTextSanitizer())
}

func strPtr(s string) *string { return &s }

var (
	alice     = &auth.Identity{UserID: "user-alice", PrivyUserID: "did:privy:alice"}
	bob       = &auth.Identity{UserID: "user-bob", PrivyUserID: "did:privy:bob"}
	validURI  = "spotify:track:4uLU6hMCjMI75M1A2tKUQC"
	playlist1 = "37i9dQZF1DXcBWIGoYBM5M"
)

// --- List ---

// 所有者フラグが呼び出し元ごとに正しく注釈されること
func TestList_OwnershipAnnotation(t *testing.T) {
	repo := &mockCommentRepo{
		listFunc: func(ctx context.Context, filter repository.CommentFilter) ([]*model.Comment, error) {
			return []*model.Comment{
				{ID: "c1", PlaylistID: playlist1, Text: "a", UserID: strPtr("user-alice")},
				{ID: "c2", PlaylistID: playlist1, Text: "b", UserID: strPtr("user-bob")},
				{ID: "c3", PlaylistID: playlist1, Text: "c", UserID: nil},
			}, nil
		},
	}
	svc := newService(repo)

	got, err := svc.List(context.Background(), alice, ListInput{PlaylistID: playlist1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if !got[0].IsOwner {
		t.Error("own comment should have IsOwner=true")
	}
	if got[1].IsOwner {
		t.Error("other user's comment should have IsOwner=false")
	}
	if got[2].IsOwner {
		t.Error("ownerless comment should have IsOwner=false")
	}
}

// 未認証でも一覧は取得でき、全件IsOwner=falseになること
func TestList_AnonymousCaller(t *testing.T) {
	repo := &mockCommentRepo{
		listFunc: func(ctx context.Context, filter repository.CommentFilter) ([]*model.Comment, error) {
			return []*model.Comment{
				{ID: "c1", PlaylistID: playlist1, Text: "a", UserID: strPtr("user-alice")},
			}, nil
		},
	}
	svc := newService(repo)

	got, err := svc.List(context.Background(), nil, ListInput{PlaylistID: playlist1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got[0].IsOwner {
		t.Error("anonymous caller should never see IsOwner=true")
	}
}

// limit未指定時はデフォルト、上限超過時はキャップされること
func TestList_LimitNormalization(t *testing.T) {
	var captured repository.CommentFilter
	repo := &mockCommentRepo{
		listFunc: func(ctx context.Context, filter repository.CommentFilter) ([]*model.Comment, error) {
			captured = filter
			return nil, nil
		},
	}
	svc := newService(repo)

	if _, err := svc.List(context.Background(), nil, ListInput{PlaylistID: playlist1}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if captured.Limit != DefaultListLimit {
		t.Errorf("default Limit = %d, want %d", captured.Limit, DefaultListLimit)
	}

	if _, err := svc.List(context.Background(), nil, ListInput{PlaylistID: playlist1, Limit: 10000, Offset: -5}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if captured.Limit != MaxListLimit {
		t.Errorf("capped Limit = %d, want %d", captured.Limit, MaxListLimit)
	}
	if captured.Offset != 0 {
		t.Errorf("negative Offset = %d, want 0", captured.Offset)
	}
}

// 不正な入力が拒否されること
func TestList_Validation(t *testing.T) {
	svc := newService(&mockCommentRepo{})

	tests := []struct {
		name  string
		input ListInput
	}{
		{"missing playlist_id", ListInput{}},
		{"malformed track_uri", ListInput{PlaylistID: playlist1, TrackURI: strPtr("spotify:album:xyz")}},
		{"short track_uri", ListInput{PlaylistID: playlist1, TrackURI: strPtr("spotify:track:x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.List(context.Background(), nil, tt.input)
			assertAPIErrorCode(t, err, model.ErrCodeInvalidArgument)
		})
	}
}

// --- Create ---

// 投稿成功時にサニタイズ済み本文と呼び出し元のUserIDが保存されること
func TestCreate_Success(t *testing.T) {
	var saved *model.Comment
	repo := &mockCommentRepo{
		createFunc: func(ctx context.Context, comment *model.Comment) error {
			saved = comment
			saved.CreatedAt = time.Now()
			return nil
		},
	}
	svc := newService(repo)

	got, err := svc.Create(context.Background(), alice, CreateInput{
		PlaylistID: playlist1,
		TrackURI:   strPtr(validURI),
		Text:       "  <b>great</b> track!  ",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if saved == nil {
		t.Fatal("repository Create was not called")
	}
	if got.Text != "great track!" {
		t.Errorf("Text = %q, want %q", got.Text, "great track!")
	}
	if got.UserID == nil || *got.UserID != alice.UserID {
		t.Errorf("UserID = %v, want %q", got.UserID, alice.UserID)
	}
	if got.ID == "" {
		t.Error("ID should be assigned before insert")
	}
}

// 未認証の投稿は拒否されること
func TestCreate_Anonymous(t *testing.T) {
	svc := newService(&mockCommentRepo{})

	_, err := svc.Create(context.Background(), nil, CreateInput{PlaylistID: playlist1, Text: "hi"})
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
}

// 不正な本文・URIが拒否されること
func TestCreate_Validation(t *testing.T) {
	svc := newService(&mockCommentRepo{})

	tests := []struct {
		name  string
		input CreateInput
	}{
		{"missing playlist_id", CreateInput{Text: "hi"}},
		{"empty text", CreateInput{PlaylistID: playlist1, Text: ""}},
		{"whitespace only", CreateInput{PlaylistID: playlist1, Text: "   \n\t "}},
		{"tags only", CreateInput{PlaylistID: playlist1, Text: "<script>alert(1)</script>"}},
		{"too long", CreateInput{PlaylistID: playlist1, Text: strings.Repeat("あ", model.MaxCommentLength+1)}},
		{"malformed track_uri", CreateInput{PlaylistID: playlist1, TrackURI: strPtr("not-a-uri"), Text: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), alice, tt.input)
			assertAPIErrorCode(t, err, model.ErrCodeInvalidArgument)
		})
	}
}

// トリム後にちょうど上限の本文は受理されること
func TestCreate_MaxLengthBoundary(t *testing.T) {
	repo := &mockCommentRepo{
		createFunc: func(ctx context.Context, comment *model.Comment) error { return nil },
	}
	svc := newService(repo)

	text := strings.Repeat("あ", model.MaxCommentLength)
	if _, err := svc.Create(context.Background(), alice, CreateInput{PlaylistID: playlist1, Text: text}); err != nil {
		t.Fatalf("Create() error = %v, want nil at exact limit", err)
	}
}

// DBのCHECK制約違反がINVALID_ARGUMENTに変換されること
func TestCreate_CheckViolation(t *testing.T) {
	repo := &mockCommentRepo{
		createFunc: func(ctx context.Context, comment *model.Comment) error {
			return repository.ErrCheckViolation
		},
	}
	svc := newService(repo)

	_, err := svc.Create(context.Background(), alice, CreateInput{PlaylistID: playlist1, Text: "hi"})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidArgument)
}

// --- BulkCounts ---

// 空のURIリストにはDBアクセスなしで空マップを返すこと
func TestBulkCounts_EmptyList(t *testing.T) {
	repo := &mockCommentRepo{
		countByTrackURIsFunc: func(ctx context.Context, playlistID string, trackURIs []string) (map[string]int, error) {
			t.Fatal("repository should not be called for empty list")
			return nil, nil
		},
	}
	svc := newService(repo)

	got, err := svc.BulkCounts(context.Background(), nil, playlist1, nil)
	if err != nil {
		t.Fatalf("BulkCounts() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("BulkCounts() = %v, want empty map", got)
	}
}

// URI数の上限超過と不正なURIが拒否されること
func TestBulkCounts_Validation(t *testing.T) {
	svc := newService(&mockCommentRepo{})

	tooMany := make([]string, model.MaxCountTrackURIs+1)
	for i := range tooMany {
		tooMany[i] = validURI
	}

	tests := []struct {
		name       string
		playlistID string
		uris       []string
	}{
		{"missing playlist_id", "", []string{validURI}},
		{"over limit", playlist1, tooMany},
		{"malformed uri", playlist1, []string{validURI, "spotify:episode:abc1234567"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BulkCounts(context.Background(), nil, tt.playlistID, tt.uris)
			assertAPIErrorCode(t, err, model.ErrCodeInvalidArgument)
		})
	}
}

// リポジトリがnilマップを返しても空マップに正規化されること
func TestBulkCounts_NilMapNormalized(t *testing.T) {
	repo := &mockCommentRepo{
		countByTrackURIsFunc: func(ctx context.Context, playlistID string, trackURIs []string) (map[string]int, error) {
			return nil, nil
		},
	}
	svc := newService(repo)

	got, err := svc.BulkCounts(context.Background(), nil, playlist1, []string{validURI})
	if err != nil {
		t.Fatalf("BulkCounts() error = %v", err)
	}
	if got == nil {
		t.Error("BulkCounts() = nil, want empty map")
	}
}

// --- Stats ---

// コメントが無いプレイリストにもゼロ値の統計を返すこと
func TestStats_EmptyPlaylist(t *testing.T) {
	repo := &mockCommentRepo{
		statsFunc: func(ctx context.Context, playlistID string) (*model.CommentStats, error) {
			return nil, nil
		},
	}
	svc := newService(repo)

	got, err := svc.Stats(context.Background(), nil, playlist1)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if got == nil {
		t.Fatal("Stats() = nil, want zero-value stats")
	}
	if got.TotalComments != 0 || got.FirstComment != nil {
		t.Errorf("Stats() = %+v, want zero values", got)
	}
}

// --- Delete ---

// 所有者による削除が成功すること
func TestDelete_ByOwner(t *testing.T) {
	repo := &mockCommentRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Comment, error) {
			return &model.Comment{ID: id, PlaylistID: playlist1, Text: "x", UserID: strPtr(alice.UserID)}, nil
		},
		deleteByIDFunc: func(ctx context.Context, id string) (bool, error) {
			return true, nil
		},
	}
	svc := newService(repo)

	if err := svc.Delete(context.Background(), alice, "c1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

// 削除の拒否パターン
func TestDelete_Denied(t *testing.T) {
	owned := func(ctx context.Context, id string) (*model.Comment, error) {
		return &model.Comment{ID: id, PlaylistID: playlist1, Text: "x", UserID: strPtr(alice.UserID)}, nil
	}
	ownerless := func(ctx context.Context, id string) (*model.Comment, error) {
		return &model.Comment{ID: id, PlaylistID: playlist1, Text: "x", UserID: nil}, nil
	}
	missing := func(ctx context.Context, id string) (*model.Comment, error) {
		return nil, nil
	}

	tests := []struct {
		name     string
		caller   *auth.Identity
		findByID func(ctx context.Context, id string) (*model.Comment, error)
		wantCode string
	}{
		{"anonymous", nil, owned, model.ErrCodeUnauthorized},
		{"non-owner", bob, owned, model.ErrCodeForbidden},
		{"ownerless comment", alice, ownerless, model.ErrCodeForbidden},
		{"not found", alice, missing, model.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockCommentRepo{
				findByIDFunc: tt.findByID,
				deleteByIDFunc: func(ctx context.Context, id string) (bool, error) {
					t.Fatal("DeleteByID should not be called on denial")
					return false, nil
				},
			}
			svc := newService(repo)

			err := svc.Delete(context.Background(), tt.caller, "c1")
			assertAPIErrorCode(t, err, tt.wantCode)
		})
	}
}

// 取得後・削除前に他リクエストが削除した場合はNOT_FOUNDになること
func TestDelete_RaceWithConcurrentDelete(t *testing.T) {
	repo := &mockCommentRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Comment, error) {
			return &model.Comment{ID: id, PlaylistID: playlist1, Text: "x", UserID: strPtr(alice.UserID)}, nil
		},
		deleteByIDFunc: func(ctx context.Context, id string) (bool, error) {
			return false, nil
		},
	}
	svc := newService(repo)

	err := svc.Delete(context.Background(), alice, "c1")
	assertAPIErrorCode(t, err, model.ErrCodeNotFound)
}

// リポジトリのエラーがそのまま伝播すること
func TestDelete_RepositoryError(t *testing.T) {
	dbErr := errors.New("connection refused")
	repo := &mockCommentRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Comment, error) {
			return nil, dbErr
		},
	}
	svc := newService(repo)

	if err := svc.Delete(context.Background(), alice, "c1"); !errors.Is(err, dbErr) {
		t.Errorf("Delete() error = %v, want %v", err, dbErr)
	}
}

func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("Code = %q, want %q", apiErr.Code, wantCode)
	}
}
