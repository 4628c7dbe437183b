package coordinator

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/mediacache/internal/cache"
	"github.com/any-hub/mediacache/internal/fetcher"
)

// Stats 是 coordinator 状态的快照。
type Stats struct {
	LiveEntries    int      `json:"liveEntries"`
	RevivalRecords int      `json:"revivalRecords"`
	PendingFetches int      `json:"pendingFetches"`
	BoundConsumers int      `json:"boundConsumers"`
	Downloaders    []string `json:"downloaders"`
	StorageDir     string   `json:"storageDir"`
}

// Kill 永久作废 key 的缓存条目，使其不会再被复活。进行中的拉取不受影响。
func (c *Coordinator) Kill(ctx context.Context, rawKey string) (bool, error) {
	key, ok := cache.NormalizeKey(rawKey)
	if !ok {
		return false, nil
	}
	var existed bool
	err := c.do(ctx, func() {
		existed = c.tiers.Kill(key)
		c.logger.WithFields(logrus.Fields{"action": "kill", "key": key.String(), "existed": existed}).Debug("entry killed")
	})
	return existed, err
}

// Reclaim 让 Live Tier 放弃 key 的条目，触发回收钩子。
func (c *Coordinator) Reclaim(ctx context.Context, rawKey string) (bool, error) {
	key, ok := cache.NormalizeKey(rawKey)
	if !ok {
		return false, nil
	}
	var reclaimed bool
	err := c.do(ctx, func() {
		reclaimed = c.tiers.Reclaim(key)
	})
	if reclaimed {
		metrics.reclaimedEntries.Add(ctx, 1)
	}
	return reclaimed, err
}

// TrimMemory 模拟内存压力：回收所有未被引用的 Live 条目，返回回收数量。
func (c *Coordinator) TrimMemory(ctx context.Context) (int, error) {
	var n int
	err := c.do(ctx, func() {
		n = c.tiers.ReclaimIdle()
	})
	if n > 0 {
		metrics.reclaimedEntries.Add(ctx, int64(n))
		c.logger.WithFields(logrus.Fields{"action": "trim", "reclaimed": n}).Info("reclaimed idle entries")
	}
	return n, err
}

// Forget 清除 consumer 的绑定，之后任何进行中拉取的结果都不会投递给它。
func (c *Coordinator) Forget(ctx context.Context, consumer Consumer) error {
	return c.do(ctx, func() {
		c.unbind(consumer)
	})
}

// Stats 返回当前状态快照。
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.do(ctx, func() {
		s = Stats{
			LiveEntries:    c.tiers.Live().Len(),
			RevivalRecords: c.tiers.Revival().Len(),
			PendingFetches: len(c.pending),
			BoundConsumers: len(c.bindings),
			Downloaders:    fetcher.Names(c.downloaders),
			StorageDir:     c.store.Dir(),
		}
	})
	return s, err
}

// Downloaders 返回已注册 Downloader 列表的副本，保持匹配顺序。
func (c *Coordinator) Downloaders(ctx context.Context) ([]fetcher.Downloader, error) {
	var list []fetcher.Downloader
	err := c.do(ctx, func() {
		list = append([]fetcher.Downloader(nil), c.downloaders...)
	})
	return list, err
}

// SetDownloaders 整体替换 Downloader 列表。调用方若要保留内置 scheme，
// 应在 Downloaders 的结果上追加而不是重建。已分派的拉取不受影响。
func (c *Coordinator) SetDownloaders(ctx context.Context, list []fetcher.Downloader) error {
	copied := append([]fetcher.Downloader(nil), list...)
	return c.do(ctx, func() {
		c.downloaders = copied
	})
}

// AppendDownloader 在列表末尾追加一个 Downloader。
func (c *Coordinator) AppendDownloader(ctx context.Context, d fetcher.Downloader) error {
	if d == nil {
		return nil
	}
	return c.do(ctx, func() {
		c.downloaders = append(c.downloaders, d)
	})
}

func (c *Coordinator) HeaderProvider(ctx context.Context) (fetcher.HeaderProvider, error) {
	var p fetcher.HeaderProvider
	err := c.do(ctx, func() {
		p = c.headers
	})
	return p, err
}

// SetHeaderProvider 替换请求头回调，nil 表示不附加额外请求头。
func (c *Coordinator) SetHeaderProvider(ctx context.Context, p fetcher.HeaderProvider) error {
	return c.do(ctx, func() {
		c.headers = p
	})
}
