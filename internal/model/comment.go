// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// コメントと楽曲URIの検証パラメータ。
// バウンダリ検証とDBのCHECK制約で同一の値を使用する。
const (
	// MaxCommentLength はトリム後のコメント本文の最大文字数。
	MaxCommentLength = 500
	// MaxCountTrackURIs は一括カウント取得の1リクエストあたりの最大URI数。
	MaxCountTrackURIs = 100
	// TrackURIPrefix は楽曲URIの固定スキームプレフィックス。
	TrackURIPrefix = "spotify:track:"
	// MinTrackURILength は楽曲URIの最小長。
	MinTrackURILength = 20
)

// Comment はプレイリストまたは楽曲に対する1件のテキスト注釈を表す。
// TrackURIがnilの場合はプレイリスト全体へのコメントを意味する。
// UserIDがnilのコメントは移行前の匿名投稿であり、削除操作の対象外となる。
type Comment struct {
	ID         string
	PlaylistID string
	TrackURI   *string
	Text       string
	UserID     *string
	CreatedAt  time.Time
}

// CommentWithOwnership は所有者フラグ付きのコメントを表す。
// is_ownerは認証済み呼び出し元にのみ計算される注釈であり、閲覧ゲートではない。
type CommentWithOwnership struct {
	Comment
	IsOwner bool
}

// CommentStats はプレイリスト単位のコメント統計を表す。
type CommentStats struct {
	TotalComments      int
	TracksWithComments int
	FirstComment       *time.Time
	LatestComment      *time.Time
}

// ValidTrackURI は楽曲URIが外部形式を満たすかを判定する。
// 固定プレフィックスで始まり、最小長を満たす必要がある。
func ValidTrackURI(uri string) bool {
	return strings.HasPrefix(uri, TrackURIPrefix) && len(uri) >= MinTrackURILength
}
