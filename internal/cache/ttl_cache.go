// Package cache はプロセス内のTTL付きキャッシュを提供する。
package cache

import (
	"sync"
	"time"

	"github.com/hitoshi/sheetdash/internal/clock"
)

// DefaultTTL はTTL未指定時のエントリ有効期間。
const DefaultTTL = 5 * time.Minute

// Stats はキャッシュの統計情報を表す。
type Stats struct {
	Total   int `json:"totalEntries"`
	Valid   int `json:"validEntries"`
	Expired int `json:"expiredEntries"`
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache はエントリごとに有効期限を持つキー・バリューストア。
// エントリは now < expiresAt の間だけ読み取れる。期限切れエントリは
// Getでの遅延削除またはSweepで物理的に削除される。
// サイズ上限やLRUは持たない。キー空間はキャッシュ対象の外部リソース数で抑えられる。
type TTLCache[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	clock      clock.Clock
	defaultTTL time.Duration
}

// New はTTLCacheを生成する。defaultTTLが0以下の場合はDefaultTTLを使用する。
func New[V any](c clock.Clock, defaultTTL time.Duration) *TTLCache[V] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &TTLCache[V]{
		entries:    make(map[string]entry[V]),
		clock:      c,
		defaultTTL: defaultTTL,
	}
}

// Get はキーに対応する値を返す。
// 期限切れの場合はエントリを削除し、存在しないものとして扱う。
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set はデフォルトTTLで値を保存する。既存エントリは無条件に上書きする。
func (c *TTLCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL は指定TTLで値を保存する。ttlが0以下の場合はデフォルトTTLを使用する。
func (c *TTLCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
	}
	c.mu.Unlock()
}

// Delete はエントリを削除する。エントリが存在した場合はtrueを返す。
func (c *TTLCache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Has はエントリが存在し期限内であればtrueを返す。期限切れでも削除はしない。
func (c *TTLCache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return ok && c.clock.Now().Before(e.expiresAt)
}

// Clear は全エントリを削除する。
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len は期限切れを含む物理的なエントリ数を返す。
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats は全エントリ数と、有効・期限切れの内訳を返す。
func (c *TTLCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	stats := Stats{Total: len(c.entries)}
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			stats.Valid++
		} else {
			stats.Expired++
		}
	}
	return stats
}

// Sweep は期限切れエントリをすべて削除し、削除件数を返す。
// 定期実行を想定しており、正しさはGetの遅延削除で担保される。
func (c *TTLCache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
