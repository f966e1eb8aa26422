// Package cache はプランスナップショットのインメモリ・リードスルーキャッシュを提供する。
// キャッシュは権威を持たない複製であり、破棄してもPlanRepositoryと計算機から
// 再構築できる。TTL超過エントリは読み取り時に遅延判定で破棄し、
// バックグラウンドのクリーンアップループでメモリを回収する。
package cache

import (
	"sync"
	"time"

	"github.com/hitoshi/fitplan/internal/model"
)

// entry はキャッシュされたスナップショットと有効期限を保持する。
// 格納後は書き換えず、更新時はエントリごと差し替える。
type entry struct {
	snapshot  *model.PlanSnapshot
	cachedAt  time.Time
	expiresAt time.Time
}

// ResultCache はユーザーIDをキーとするプランキャッシュ。
// 異なるユーザーの読み書きは互いに独立し、同一ユーザーへのアクセスは
// マップロックと不変エントリの差し替えにより直列化される。
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// New は新しいResultCacheを生成し、バックグラウンドで
// 期限切れエントリのクリーンアップを開始する。
// cleanupIntervalが0以下の場合はデフォルト値1時間を使用する。
func New(cleanupInterval time.Duration) *ResultCache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	c := &ResultCache{
		entries:         make(map[string]*entry),
		cleanupInterval: cleanupInterval,
		stopCh:          make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Get は指定ユーザーのキャッシュ済みスナップショットを返す。
// エントリが存在しない、または期限切れの場合はnilを返す（遅延期限判定）。
func (c *ResultCache) Get(userID string) *model.PlanSnapshot {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok {
		return nil
	}
	if time.Now().After(e.expiresAt) {
		// 期限切れ。次回のクリーンアップまたは上書きで回収される。
		return nil
	}
	return e.snapshot
}

// Put はスナップショットを無条件で上書き格納する。
func (c *ResultCache) Put(userID string, snapshot *model.PlanSnapshot, ttl time.Duration) {
	now := time.Now()
	e := &entry{
		snapshot:  snapshot,
		cachedAt:  now,
		expiresAt: now.Add(ttl),
	}

	c.mu.Lock()
	c.entries[userID] = e
	c.mu.Unlock()
}

// Invalidate は指定ユーザーのエントリを即座に削除する。
// 体重や目標の変更などバイオメトリクスに影響する更新が発生した際に呼ばれ、
// 次回の読み取りで再計算を強制する。エントリが存在しなくても安全（冪等）。
func (c *ResultCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// Len は現在のエントリ数を返す（期限切れを含む）。
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop はクリーンアップループを停止する。
func (c *ResultCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// cleanupLoop は定期的に期限切れエントリを削除する。
func (c *ResultCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired は期限切れエントリをすべて削除する。
func (c *ResultCache) removeExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for userID, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, userID)
		}
	}
}
