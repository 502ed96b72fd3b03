// Package authz は操作ごとの認可判定を提供する。
//
// 判定は純粋関数であり、状態を持たない。
// {操作, 認証済み呼び出し元, リソース所有者} から許可/拒否のみを返す。
package authz

import (
	"github.com/hitoshi/tunetalk/internal/auth"
	"github.com/hitoshi/tunetalk/internal/model"
)

// Operation は認可対象の操作を表す。
type Operation string

const (
	// OpListComments はコメント一覧取得（公開読み取り）。
	OpListComments Operation = "list_comments"
	// OpCountComments は一括カウント取得（公開読み取り）。
	OpCountComments Operation = "count_comments"
	// OpCommentStats は統計取得（公開読み取り）。
	OpCommentStats Operation = "comment_stats"
	// OpCreateComment はコメント投稿（要認証）。
	OpCreateComment Operation = "create_comment"
	// OpDeleteComment はコメント削除（所有者のみ）。
	OpDeleteComment Operation = "delete_comment"
)

// Authorize は呼び出し元が操作を実行できるかを判定する。
// 許可の場合はnil、拒否の場合は対応するAPIErrorを返す。
//
// 読み取り系は常に許可される（is_owner注釈はゲートではなく注釈であり、
// この関数の関与しない表示上の計算である）。
// 投稿は認証済みであること、削除は認証済みかつ所有者であることを要求する。
// ownerUserIDがnilのコメント（匿名の旧データ）は管理経路以外では誰も削除できない。
func Authorize(op Operation, caller *auth.Identity, ownerUserID *string) error {
	switch op {
	case OpListComments, OpCountComments, OpCommentStats:
		return nil

	case OpCreateComment:
		if caller == nil {
			return model.NewUnauthorizedError()
		}
		return nil

	case OpDeleteComment:
		if caller == nil {
			return model.NewUnauthorizedError()
		}
		if ownerUserID == nil || *ownerUserID != caller.UserID {
			return model.NewForbiddenError()
		}
		return nil

	default:
		return model.NewForbiddenError()
	}
}
