// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はコメント本文をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリのStrictPolicyで全てのHTMLタグを除去し、
// 保存されるコメントが常にプレーンテキストであることを保証する。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はコメント本文のサニタイズ機能のインターフェースを定義する。
// コメント保存前のバウンダリ検証の直前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去しプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全てのタグと属性を除去する（許可リストが空）。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを全て除去しプレーンテキストを返す。
// StrictPolicyはエンティティをエスケープして返すため、
// プレーンテキストとして保存できるようアンエスケープする。
func (s *textSanitizer) Sanitize(raw string) string {
	return html.UnescapeString(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
