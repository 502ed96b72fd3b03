// Package watch はホストSPAのURL変化からナビゲーション文脈を推定する。
//
// ホストアプリはネイティブなナビゲーションイベントを発行しないため、
// 観測されたロケーション文字列の変化をパターンマッチで解釈する。
// ページ全体のリロードが起きることには依存しない。
package watch

import (
	"regexp"
	"sync"
)

// ロケーション文字列から文脈を抽出するパターン。
var (
	playlistPattern = regexp.MustCompile(`/playlist/([a-zA-Z0-9]+)`)
	trackPattern    = regexp.MustCompile(`/track/([a-zA-Z0-9]+)`)
)

// trackURIPrefix は抽出した楽曲IDをURI形式に変換する際のプレフィックス。
const trackURIPrefix = "spotify:track:"

// Tab はパネルの表示タブを表す。
type Tab string

const (
	// TabPlaylist はプレイリスト全体へのコメントタブ。
	TabPlaylist Tab = "playlist"
	// TabTrack は個別楽曲へのコメントタブ。
	TabTrack Tab = "track"
)

// Context は現在のナビゲーション文脈。
type Context struct {
	PlaylistID string
	TrackURI   *string
	ActiveTab  Tab
}

// RefreshFunc はプレイリスト遷移時に呼ばれるコールバック。
// 新しいプレイリストIDごとにちょうど1回呼ばれる。
type RefreshFunc func(playlistID string)

// Watcher はロケーション変化イベントを消費し、文脈遷移を検出する。
// イベントは協調的イベントループから逐次供給される想定だが、
// 観測側の実装差異に備えてロックで直列化する。
type Watcher struct {
	mu      sync.Mutex
	current Context
	refresh RefreshFunc
}

// NewWatcher はWatcherを生成する。
// refreshはnilでもよい（遷移検出のみ行う）。
func NewWatcher(refresh RefreshFunc) *Watcher {
	return &Watcher{
		current: Context{ActiveTab: TabPlaylist},
		refresh: refresh,
	}
}

// Current は現在のナビゲーション文脈のコピーを返す。
func (w *Watcher) Current() Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// HandleLocationChange は観測されたロケーション文字列を処理する。
//
// プレイリストIDが前回と異なる場合のみ、楽曲文脈とタブをリセットして
// refreshを1回呼ぶ。同一プレイリスト内の生の変化イベント
// （タイトル変化・クエリ変化など）ではrefreshは呼ばれない。
// プレイリストにマッチしないロケーションでは文脈を維持する。
func (w *Watcher) HandleLocationChange(location string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	m := playlistPattern.FindStringSubmatch(location)
	if m == nil {
		// プレイリスト外への遷移。楽曲文脈のみ更新する。
		w.updateTrack(location)
		return
	}
	playlistID := m[1]

	if playlistID == w.current.PlaylistID {
		w.updateTrack(location)
		return
	}

	// プレイリスト遷移: 文脈をリセットして即時リフレッシュ
	w.current = Context{
		PlaylistID: playlistID,
		TrackURI:   nil,
		ActiveTab:  TabPlaylist,
	}

	if w.refresh != nil {
		w.refresh(playlistID)
	}
}

// updateTrack はロケーションから楽曲文脈だけを更新する。
func (w *Watcher) updateTrack(location string) {
	m := trackPattern.FindStringSubmatch(location)
	if m == nil {
		return
	}
	uri := trackURIPrefix + m[1]
	w.current.TrackURI = &uri
}

// SwitchTab は表示タブを切り替える。
func (w *Watcher) SwitchTab(tab Tab) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current.ActiveTab = tab
}
