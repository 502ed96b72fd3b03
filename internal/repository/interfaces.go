// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/tunetalk/internal/model"
)

// ErrDuplicateKey は一意制約違反を表す番兵エラー。
// 同一subjectの並行初回交換で発生し、呼び出し側は再読込でリカバリする。
var ErrDuplicateKey = errors.New("duplicate key violation")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByPrivyUserID は外部subjectでユーザーを検索する。見つからない場合はnilを返す。
	FindByPrivyUserID(ctx context.Context, privyUserID string) (*model.User, error)

	// Create はユーザーを作成する。
	// privy_user_idの一意制約に違反した場合はErrDuplicateKeyを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateEmail は指定ユーザーのemailとupdated_atを更新する。
	UpdateEmail(ctx context.Context, id, email string) error
}

// CommentFilter はコメント一覧取得の絞り込み条件。
// TrackURIがnilの場合はプレイリスト直下のコメント（track_uri IS NULL）のみを対象とする。
type CommentFilter struct {
	PlaylistID string
	TrackURI   *string
	Limit      int
	Offset     int
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// List はフィルタ条件に一致するコメントをcreated_at昇順で返す。
	List(ctx context.Context, filter CommentFilter) ([]*model.Comment, error)

	// Create はコメントを作成する。
	// CHECK制約違反の場合はErrCheckViolationを返す。
	Create(ctx context.Context, comment *model.Comment) error

	// CountByTrackURIs はプレイリスト内の指定楽曲ごとのコメント数を返す。
	// コメントのない楽曲は結果に含まれない。
	CountByTrackURIs(ctx context.Context, playlistID string, trackURIs []string) (map[string]int, error)

	// Stats はプレイリスト単位のコメント統計を返す。
	Stats(ctx context.Context, playlistID string) (*model.CommentStats, error)

	// DeleteByID は指定IDのコメントを削除する。
	// 削除対象が存在しない場合はfalseを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// ErrCheckViolation はCHECK制約違反を表す番兵エラー。
// バウンダリ検証をすり抜けた不正値がDB制約で弾かれた場合に返る。
var ErrCheckViolation = errors.New("check constraint violation")
