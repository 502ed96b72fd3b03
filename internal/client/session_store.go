// Package client はAPIサーバーへの型付きクライアントを提供する。
//
// ブラウザ拡張のバックグラウンド処理に相当するレイヤーで、
// セッショントークンの保持と各エンドポイントの呼び出しを担う。
package client

import "sync"

// SessionStore はセッショントークンの保存先インターフェース。
// グローバル変数ではなく、トークンを必要とするクライアントに注入する。
type SessionStore interface {
	// Get は保存中のトークンを返す。未保存の場合はfalseを返す。
	Get() (string, bool)
	// Set はトークンを保存する。
	Set(token string)
	// Clear は保存中のトークンを破棄する。
	Clear()
}

// MemorySessionStore はメモリ上にトークンを保持するSessionStore実装。
type MemorySessionStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemorySessionStore はMemorySessionStoreを生成する。
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

// Get は保存中のトークンを返す。
func (s *MemorySessionStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Set はトークンを保存する。
func (s *MemorySessionStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear は保存中のトークンを破棄する。
func (s *MemorySessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// compile-time interface check
var _ SessionStore = (*MemorySessionStore)(nil)
