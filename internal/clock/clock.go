// Package clock は現在時刻の取得を抽象化する。
// 有効期限の計算と判定はすべてこのインターフェース経由で行い、
// テストでは Fake を使って時間経過を決定的にシミュレートする。
package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を返すインターフェース。
type Clock interface {
	Now() time.Time
}

// System は実時間を返すClock。
type System struct{}

// Now は現在時刻を返す。
func (System) Now() time.Time {
	return time.Now()
}

// Fake はテスト用の手動で進めるClock。
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake は指定時刻から始まるFakeを生成する。
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now は現在の疑似時刻を返す。
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance は疑似時刻をdだけ進める。
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set は疑似時刻を指定時刻に設定する。
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}
