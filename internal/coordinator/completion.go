package coordinator

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/any-hub/mediacache/internal/cache"
	"github.com/any-hub/mediacache/internal/fetcher"
)

// pendingFetch 记录某个 key 正在进行的唯一拉取及按到达顺序排列的等待者。
type pendingFetch struct {
	key     cache.Key
	source  string
	waiters []Consumer
	started time.Time
}

func newPendingFetch(key cache.Key, first Consumer) *pendingFetch {
	pf := &pendingFetch{key: key, started: time.Now()}
	pf.add(first)
	return pf
}

// add 追加等待者；同一消费者只排队一次。
func (pf *pendingFetch) add(consumer Consumer) {
	if consumer == nil {
		return
	}
	for _, w := range pf.waiters {
		if w == consumer {
			return
		}
	}
	pf.waiters = append(pf.waiters, consumer)
}

// fetchJob 是交给 worker 的一次拉取；existing 与 downloader 至多设置其一。
type fetchJob struct {
	key        cache.Key
	target     string
	source     string
	existing   string
	downloader fetcher.Downloader
	headers    fetcher.HeaderProvider
}

// fetchOutcome 由 worker 发回 coordinator goroutine。
// owned 表示 path 是 Store 产生的临时文件，最后一次 Release 时删除。
type fetchOutcome struct {
	key       cache.Key
	source    string
	path      string
	size      int64
	cacheable bool
	owned     bool
	err       error
}

// runJob 在 worker goroutine 上执行拉取，并把结果送回 coordinator。
func (c *Coordinator) runJob(job fetchJob) {
	res := fetchOutcome{key: job.key, source: job.source}

	if err := c.workers.Acquire(c.ctx, 1); err != nil {
		return
	}
	func() {
		defer c.workers.Release(1)
		defer func() {
			if r := recover(); r != nil {
				res.err = fetcher.PanicFailure(r)
			}
		}()
		res.err = c.execute(c.ctx, job, &res)
	}()

	select {
	case c.completions <- res:
	case <-c.ctx.Done():
	}
}

// execute 完成一次拉取：复用已有文件，或调用 Downloader 并持久化字节流。
// 不允许缓存的结果从不占用 key 的目标路径，避免被已有文件快速路径当作缓存复用。
func (c *Coordinator) execute(ctx context.Context, job fetchJob, res *fetchOutcome) error {
	res.size = -1
	if job.existing != "" {
		res.path, res.cacheable = job.existing, true
		return nil
	}
	if job.downloader == nil {
		return fetcher.ErrNoDownloader
	}

	result, err := job.downloader.Fetch(ctx, fetcher.FetchRequest{
		Key:     job.key,
		Target:  job.target,
		Headers: job.headers,
	})
	if err != nil {
		if result.Body != nil {
			result.Body.Close()
		}
		return err
	}

	cacheable := job.downloader.AllowsCaching()
	switch {
	case result.Body != nil && result.ExistingPath != "":
		result.Body.Close()
		return fetcher.ErrInvalidResult
	case result.Body != nil:
		defer result.Body.Close()
		var info cache.FileInfo
		if cacheable {
			info, err = c.store.Put(ctx, job.key, result.Body)
		} else {
			info, err = c.store.PutTransient(ctx, job.key, result.Body)
		}
		if err != nil {
			return fetcher.PersistFailure(err)
		}
		res.path, res.size, res.cacheable, res.owned = info.Path, info.SizeBytes, cacheable, !cacheable
		return nil
	case result.ExistingPath != "":
		res.path, res.cacheable = result.ExistingPath, cacheable
		if cacheable {
			return nil
		}
		if result.ExistingPath == job.target {
			info, err := c.store.Detach(ctx, job.key)
			if err != nil {
				return fetcher.PersistFailure(err)
			}
			res.path, res.size, res.owned = info.Path, info.SizeBytes, true
			return nil
		}
		if err := c.store.Remove(ctx, job.key); err != nil {
			c.logger.WithFields(logrus.Fields{"action": "fetch", "key": job.key.String()}).
				WithError(err).Warn("remove derived target failed")
		}
		return nil
	default:
		return fetcher.ErrInvalidResult
	}
}

// complete 在 coordinator goroutine 上处理拉取结果：更新缓存、移除 pendingFetch，
// 再按 FIFO 顺序只投递给仍绑定在该 key 上的等待者。
func (c *Coordinator) complete(res fetchOutcome) {
	pf := c.pending[res.key]
	delete(c.pending, res.key)

	entry := c.entryFor(res)
	if res.err == nil && !res.cacheable {
		// 临时条目的创建者引用。
		defer entry.Release()
	}

	c.logCompletion(res, pf)
	result := "ok"
	if res.err != nil {
		result = "error"
	}
	metrics.fetches.Add(c.ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
		attribute.String("source", res.source),
	))

	if pf == nil {
		return
	}
	for _, waiter := range pf.waiters {
		if bound, ok := c.bindings[waiter]; !ok || bound != res.key {
			metrics.staleDeliveries.Add(c.ctx, 1)
			c.logger.WithFields(logrus.Fields{"action": "deliver", "key": res.key.String(), "bound": string(bound)}).
				Debug("dropping result for rebound consumer")
			continue
		}
		delete(c.bindings, waiter)
		waiter.Deliver(Delivery{Key: res.key, Entry: entry.Retain(), Err: res.err})
	}
}

// entryFor 根据拉取结果构造条目：失败写入负缓存，可缓存结果写入 Live Tier，
// 其余结果为临时条目，不进入任何一层缓存；临时文件在最后一次 Release 时删除。
func (c *Coordinator) entryFor(res fetchOutcome) *cache.Entry {
	if res.err != nil {
		if c.negativeTTL > 0 {
			return c.tiers.InsertAbsent(res.key)
		}
		return cache.NewAbsentEntry(res.key)
	}
	if res.cacheable {
		entry := cache.NewEntry(res.key, res.path)
		c.tiers.Insert(res.key, entry)
		return entry
	}

	if !res.owned {
		// 外部文件（例如 file:// key）只借用，不删除。
		return cache.NewTransientEntry(res.key, res.path, nil)
	}
	store := c.store
	return cache.NewTransientEntry(res.key, res.path, func(e *cache.Entry) {
		if err := store.RemoveTransient(e.Path()); err != nil {
			c.logger.WithFields(logrus.Fields{"action": "release", "key": e.Key().String()}).
				WithError(err).Warn("remove transient file failed")
		}
	})
}

func (c *Coordinator) logCompletion(res fetchOutcome, pf *pendingFetch) {
	fields := logrus.Fields{
		"action": "fetch_complete",
		"key":    res.key.String(),
		"source": res.source,
	}
	if pf != nil {
		fields["waiters"] = len(pf.waiters)
		fields["elapsed"] = time.Since(pf.started).String()
	}
	if res.err != nil {
		fields["code"] = fetcher.Code(res.err)
		fields["retryable"] = fetcher.Retryable(res.err)
		c.logger.WithFields(fields).WithError(res.err).Warn("fetch failed")
		return
	}
	fields["cacheable"] = res.cacheable
	if res.size >= 0 {
		fields["size"] = humanize.Bytes(uint64(res.size))
	}
	c.logger.WithFields(fields).Info("fetch completed")
}
