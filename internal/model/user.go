// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 外部IdP（Privy）のsubjectと1対1で紐付く。
// privy_user_idは一意であり、IDは作成後に変更されない。
type User struct {
	ID          string
	PrivyUserID string
	Email       string // 任意。取得できなかった場合は空文字列
	DisplayName string // 任意
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
