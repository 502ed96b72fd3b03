// Package clockwork はテストで差し替え可能な時計とタイマーを提供する。
//
// ポーリングなど時間依存のロジックは実時間に依存せず、
// 注入されたClock経由でのみ時刻とタイマーを扱う。
package clockwork

import "time"

// Timer は停止可能なワンショットタイマー。
type Timer interface {
	// Stop はタイマーを停止する。発火済みの場合はfalseを返す。
	Stop() bool
}

// Clock は時刻取得とタイマー生成のインターフェース。
type Clock interface {
	// Now は現在時刻を返す。
	Now() time.Time
	// AfterFunc はd経過後にfを実行するタイマーを生成する。
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock はシステムクロックを使うClockの実装。
type RealClock struct{}

// NewReal はRealClockを生成する。
func NewReal() *RealClock {
	return &RealClock{}
}

// Now は現在時刻を返す。
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc はtime.AfterFuncに委譲する。
func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// compile-time interface check
var _ Clock = (*RealClock)(nil)
