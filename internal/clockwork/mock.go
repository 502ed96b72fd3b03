package clockwork

import (
	"sort"
	"sync"
	"time"
)

// MockClock はテスト用のClock実装。
// Advanceで時間を進めると、期限の来たタイマーを登録順・期限順に同期実行する。
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

// mockTimer はMockClockに登録されたワンショットタイマー。
type mockTimer struct {
	clock    *MockClock
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

// Stop はタイマーを停止する。発火済み・停止済みの場合はfalseを返す。
func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewMock は指定時刻に設定されたMockClockを生成する。
func NewMock(now time.Time) *MockClock {
	return &MockClock{now: now}
}

// Now は現在のモック時刻を返す。
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc はd経過後にfを実行するタイマーを登録する。
func (c *MockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &mockTimer{
		clock:    c,
		deadline: c.now.Add(d),
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance は時間をdだけ進め、期限の来たタイマーを期限順に実行する。
// タイマーのコールバック内で新たに登録されたタイマーも、
// 進めた時刻までに期限が来ていれば同じ呼び出し内で実行される。
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.nextDueTimer()
		if t == nil {
			return
		}
		t.f()
	}
}

// Set はモック時刻を指定時刻に設定する。タイマーは発火しない。
func (c *MockClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// PendingTimers は未発火・未停止のタイマー数を返す。テスト用。
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// nextDueTimer は期限が現在時刻以前で最も早いタイマーを発火済みにして返す。
func (c *MockClock) nextDueTimer() *mockTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []*mockTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.deadline.After(c.now) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	due[0].fired = true
	return due[0]
}

// compile-time interface check
var _ Clock = (*MockClock)(nil)
