// Package panel はコメントパネルの状態遷移を管理する。
//
// 状態は closed → loading → {ready|error} と遷移し、closedは明示的な
// クローズでどの状態からも到達できる。パネルが開いている間は固定間隔の
// ポーリングがloadingを再突入させ、closed中はポーリングを完全に停止する。
// 遅れて到着した応答が新しいフェッチの結果を上書きしないよう、
// 単調増加するフェッチ連番で最新の応答だけを採用する。
package panel

import (
	"errors"
	"sync"
	"time"

	"github.com/hitoshi/tunetalk/internal/client"
	"github.com/hitoshi/tunetalk/internal/clockwork"
	"github.com/hitoshi/tunetalk/internal/watch"
)

// DefaultPollInterval はパネルが開いている間の再取得間隔。
const DefaultPollInterval = 30 * time.Second

// State はパネルの主状態を表す。
type State string

const (
	// StateClosed はパネルが閉じている状態。初期状態でもある。
	StateClosed State = "closed"
	// StateLoading はコメント取得中の状態。
	StateLoading State = "loading"
	// StateReady はコメント表示中の状態。
	StateReady State = "ready"
	// StateError は取得失敗の状態。リトライでloadingに戻れる。
	StateError State = "error"
)

// ErrSendInProgress は送信中の再送信を表すエラー。
var ErrSendInProgress = errors.New("send already in progress")

// ErrPanelClosed は閉じたパネルへの操作を表すエラー。
var ErrPanelClosed = errors.New("panel is closed")

// Target は現在の取得対象。タブがtrackの場合のみTrackURIを使う。
type Target struct {
	PlaylistID string
	TrackURI   *string
	Tab        watch.Tab
}

// FetchFunc はコメント取得の非同期呼び出し。
// 実装は完了時にresolveを1回呼ぶ。呼び出し順序の保証はない。
type FetchFunc func(target Target, resolve func(comments []client.Comment, err error))

// SendFunc はコメント送信の非同期呼び出し。
// 実装は完了時にresolveを1回呼ぶ。
type SendFunc func(target Target, text string, resolve func(err error))

// Panel はコメントパネルの状態機械。
// 協調的イベントループ上での利用を想定するが、タイマーコールバックとの
// 競合に備えて内部状態はロックで保護する。
type Panel struct {
	mu           sync.Mutex
	clock        clockwork.Clock
	fetch        FetchFunc
	send         SendFunc
	pollInterval time.Duration

	state     State
	target    Target
	comments  []client.Comment
	lastError string

	sending   bool
	sendError string

	// seq は最後に開始したフェッチの連番。応答はこの値と一致する場合のみ採用する。
	seq       uint64
	pollTimer clockwork.Timer
}

// New はPanelを生成する。初期状態はclosed。
func New(clock clockwork.Clock, fetch FetchFunc, send SendFunc) *Panel {
	return &Panel{
		clock:        clock,
		fetch:        fetch,
		send:         send,
		pollInterval: DefaultPollInterval,
		state:        StateClosed,
	}
}

// State は現在の主状態を返す。
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Target は現在の取得対象を返す。
func (p *Panel) Target() Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// Comments は最後に取得したコメントを返す。
func (p *Panel) Comments() []client.Comment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.comments
}

// LastError は最後の取得エラーメッセージを返す。
func (p *Panel) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}

// Sending は送信中かを返す。送信中はコンポーザーを無効化する。
func (p *Panel) Sending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sending
}

// SendError は最後の送信エラーメッセージを返す。
func (p *Panel) SendError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendError
}

// Open はパネルを開き、最初のフェッチを開始する。
// closed以外の状態では何もしない。
func (p *Panel) Open(playlistID string) {
	p.mu.Lock()
	if p.state != StateClosed {
		p.mu.Unlock()
		return
	}
	p.state = StateLoading
	p.target = Target{PlaylistID: playlistID, Tab: watch.TabPlaylist}
	p.mu.Unlock()

	p.beginFetch()
}

// Close はパネルを閉じる。ポーリングタイマーを停止し、
// 実行中のフェッチ応答は到着しても破棄される。
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopPollTimerLocked()
	// 連番を進めて実行中フェッチの応答を無効化する
	p.seq++
	p.state = StateClosed
	p.sending = false
	p.sendError = ""
}

// SwitchTab は表示タブを切り替えて再取得する。
// trackタブへの切り替えにはtrackURIが必要。
func (p *Panel) SwitchTab(tab watch.Tab, trackURI *string) {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return
	}
	p.target.Tab = tab
	if tab == watch.TabTrack {
		p.target.TrackURI = trackURI
	} else {
		p.target.TrackURI = nil
	}
	p.mu.Unlock()

	p.beginFetch()
}

// HandleNavigation はプレイリスト遷移を処理する。
// 楽曲文脈とタブをリセットし、開いている場合は次のポーリングを待たずに
// 即時フェッチする（ナビゲーション直後の古いデータ表示を避ける）。
func (p *Panel) HandleNavigation(playlistID string) {
	p.mu.Lock()
	p.target = Target{PlaylistID: playlistID, Tab: watch.TabPlaylist}
	closed := p.state == StateClosed
	p.mu.Unlock()

	if !closed {
		p.beginFetch()
	}
}

// Refresh は手動の再取得を開始する。閉じている場合は何もしない。
func (p *Panel) Refresh() {
	p.beginFetch()
}

// Send はコメントを送信する。
// 送信中は主状態を変えずコンポーザーのみ無効化し、成功時は常に再取得する
// （サーバー側トリムとの差分を楽観的マージで吸収するより単純で確実）。
func (p *Panel) Send(text string) error {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return ErrPanelClosed
	}
	if p.sending {
		p.mu.Unlock()
		return ErrSendInProgress
	}
	p.sending = true
	p.sendError = ""
	target := p.target
	send := p.send
	p.mu.Unlock()

	send(target, text, func(err error) {
		p.mu.Lock()
		p.sending = false
		if p.state == StateClosed {
			p.mu.Unlock()
			return
		}
		if err != nil {
			p.sendError = err.Error()
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		p.beginFetch()
	})
	return nil
}

// SetPollInterval はポーリング間隔を変更する。テスト用。
func (p *Panel) SetPollInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollInterval = d
}

// beginFetch は新しいフェッチを開始しloadingに遷移する。
// closedの場合は何もしない。
func (p *Panel) beginFetch() {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return
	}
	p.stopPollTimerLocked()
	p.seq++
	seq := p.seq
	p.state = StateLoading
	target := p.target
	fetch := p.fetch
	p.mu.Unlock()

	fetch(target, func(comments []client.Comment, err error) {
		p.applyFetchResult(seq, comments, err)
	})
}

// applyFetchResult はフェッチ応答を適用する。
// 応答の連番が最新でない場合（クローズ・ナビゲーション・後発フェッチ）は破棄する。
func (p *Panel) applyFetchResult(seq uint64, comments []client.Comment, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed || seq != p.seq {
		return
	}

	if err != nil {
		p.state = StateError
		p.lastError = err.Error()
	} else {
		p.state = StateReady
		p.comments = comments
		p.lastError = ""
	}

	// 開いている間は固定間隔で再取得する
	p.pollTimer = p.clock.AfterFunc(p.pollInterval, p.onPollTick)
}

// onPollTick はポーリングタイマーの発火で再取得を開始する。
func (p *Panel) onPollTick() {
	p.beginFetch()
}

// stopPollTimerLocked は保留中のポーリングタイマーを停止する。要ロック。
func (p *Panel) stopPollTimerLocked() {
	if p.pollTimer != nil {
		p.pollTimer.Stop()
		p.pollTimer = nil
	}
}
