package news

import (
	"sync"
	"time"

	"github.com/hitoshi/pressroom/internal/model"
)

// HeadlineCache はカテゴリ単位の見出しインメモリキャッシュ。
// 同一ウィンドウ内の複数ユーザーが同じカテゴリを購読している場合に
// NewsAPIの呼び出し回数を抑える。スレッドセーフ。
type HeadlineCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time // テスト用に時計を差し替え可能
}

type cacheEntry struct {
	headlines []model.Headline
	cachedAt  time.Time
}

// NewHeadlineCache はHeadlineCacheの新しいインスタンスを生成する。
func NewHeadlineCache(ttl time.Duration) *HeadlineCache {
	return &HeadlineCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get はキャッシュから見出しを取得する。
// エントリが存在しないか期限切れの場合はfalseを返す。
func (c *HeadlineCache) Get(category string) ([]model.Headline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[category]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.cachedAt) >= c.ttl {
		return nil, false
	}

	// 呼び出し元による変更からキャッシュを守るためコピーを返す
	headlines := make([]model.Headline, len(entry.headlines))
	copy(headlines, entry.headlines)
	return headlines, true
}

// Set は見出しをキャッシュに保存する。
func (c *HeadlineCache) Set(category string, headlines []model.Headline) {
	copied := make([]model.Headline, len(headlines))
	copy(copied, headlines)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[category] = cacheEntry{
		headlines: copied,
		cachedAt:  c.now(),
	}
}
