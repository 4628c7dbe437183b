package coordinator

import (
	"context"
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/any-hub/mediacache/internal/cache"
	"github.com/any-hub/mediacache/internal/fetcher"
)

// OutcomeKind 描述一次 Request 的同步结果。
type OutcomeKind int

const (
	// OutcomeCleared: key 为空，消费者的绑定被清除。
	OutcomeCleared OutcomeKind = iota
	// OutcomeHit: 缓存命中，Entry 同步返回。
	OutcomeHit
	// OutcomeCoalesced: 已有同 key 的拉取在进行，消费者排入其等待队列。
	OutcomeCoalesced
	// OutcomeStarted: 本次请求发起了该 key 唯一的拉取。
	OutcomeStarted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCleared:
		return "cleared"
	case OutcomeHit:
		return "hit"
	case OutcomeCoalesced:
		return "coalesced"
	case OutcomeStarted:
		return "started"
	default:
		return "unknown"
	}
}

// 拉取来源：已有文件复用，或没有任何 Downloader 适用。其余来源为 Downloader.Name()。
const (
	SourceExistingFile = "existing_file"
	SourceNone         = "none"
)

// Outcome 是 Request 的返回值。命中时 Entry 已 Retain，调用方用完后需 Release。
type Outcome struct {
	Kind   OutcomeKind
	Key    cache.Key
	Entry  *cache.Entry
	Source string
}

// Request 为 consumer 请求 key。consumer 先被重新绑定到 key（覆盖之前的绑定，
// 但不会中止旧 key 的拉取），随后依次尝试缓存命中、合并到进行中的拉取、发起新拉取。
// 非命中的结果稍后通过 consumer.Deliver 投递。consumer 可为 nil，表示仅预取。
func (c *Coordinator) Request(ctx context.Context, rawKey string, consumer Consumer, maxAge cache.MaxAge) (Outcome, error) {
	c.startSweep()

	var outcome Outcome
	if err := c.do(ctx, func() {
		outcome = c.request(rawKey, consumer, maxAge)
	}); err != nil {
		return Outcome{}, err
	}

	metrics.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.Kind.String())))
	return outcome, nil
}

func (c *Coordinator) request(rawKey string, consumer Consumer, maxAge cache.MaxAge) Outcome {
	key, ok := cache.NormalizeKey(rawKey)
	if !ok {
		c.unbind(consumer)
		return Outcome{Kind: OutcomeCleared}
	}
	c.bind(consumer, key)

	if entry, ok := c.lookup(key, maxAge); ok {
		c.unbind(consumer)
		c.logger.WithFields(logrus.Fields{"action": "cache_hit", "key": key.String(), "resurrected": entry.Resurrected(), "absent": entry.Absent()}).Debug("using cached entry")
		return Outcome{Kind: OutcomeHit, Key: key, Entry: entry.Retain()}
	}

	if pf, ok := c.pending[key]; ok {
		pf.add(consumer)
		c.logger.WithFields(logrus.Fields{"action": "coalesce", "key": key.String(), "waiters": len(pf.waiters)}).Debug("joined in-flight fetch")
		return Outcome{Kind: OutcomeCoalesced, Key: key, Source: pf.source}
	}

	pf := newPendingFetch(key, consumer)
	c.pending[key] = pf
	c.dispatch(pf, maxAge)
	return Outcome{Kind: OutcomeStarted, Key: key, Source: pf.source}
}

func (c *Coordinator) bind(consumer Consumer, key cache.Key) {
	if consumer == nil {
		return
	}
	c.bindings[consumer] = key
}

func (c *Coordinator) unbind(consumer Consumer) {
	if consumer == nil {
		return
	}
	delete(c.bindings, consumer)
}

// lookup 查两层缓存并执行新鲜度检查。过期的复活条目会被 kill，防止旧数据再次复活。
// 命中需同步返回，因此文件 stat 在 coordinator goroutine 上执行。
func (c *Coordinator) lookup(key cache.Key, maxAge cache.MaxAge) (*cache.Entry, bool) {
	entry, ok := c.tiers.Lookup(key)
	if !ok {
		return nil, false
	}

	if entry.Absent() {
		if c.now().Sub(entry.CreatedAt()) < c.negativeTTL {
			return entry, true
		}
		return nil, false
	}

	info, err := os.Stat(entry.Path())
	if err != nil {
		c.logger.WithFields(logrus.Fields{"action": "cache_hit", "key": key.String(), "path": entry.Path()}).
			WithError(err).Debug("cached file unavailable, refetching")
		c.tiers.Kill(key)
		return nil, false
	}
	if !maxAge.Fresh(info.ModTime(), c.now()) {
		c.logger.WithFields(logrus.Fields{"action": "cache_hit", "key": key.String(), "resurrected": entry.Resurrected()}).
			Debug("cached file is stale, forcing reload")
		if entry.Resurrected() {
			c.tiers.Kill(key)
		}
		return nil, false
	}
	return entry, true
}

// dispatch 为新的 pendingFetch 选择来源并交给 worker：
// 先尝试新鲜的已有文件，再尝试首个适用的 Downloader，都不满足时以 ErrNoDownloader 完成。
func (c *Coordinator) dispatch(pf *pendingFetch, maxAge cache.MaxAge) {
	job := fetchJob{
		key:     pf.key,
		target:  c.store.Path(pf.key),
		headers: c.headers,
	}

	if path, ok := c.existingFile(pf.key, maxAge); ok {
		job.existing = path
		job.source = SourceExistingFile
	} else if d, ok := fetcher.Match(c.downloaders, pf.key); ok {
		job.downloader = d
		job.source = d.Name()
	} else {
		job.source = SourceNone
	}
	pf.source = job.source

	c.logger.WithFields(logrus.Fields{"action": "fetch_start", "key": pf.key.String(), "source": job.source}).Debug("dispatching fetch")
	go c.runJob(job)
}

// existingFile 检查派生路径上是否已有新鲜文件。除“不存在”外的错误只记录日志并视为未命中，
// 下一次请求会重新检查，缓存状态不受影响。
func (c *Coordinator) existingFile(key cache.Key, maxAge cache.MaxAge) (string, bool) {
	info, err := c.store.Stat(c.ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			c.logger.WithFields(logrus.Fields{"action": "file_cache", "key": key.String()}).
				WithError(err).Warn("existing file check failed")
		}
		return "", false
	}
	if !maxAge.Fresh(info.ModTime, c.now()) {
		c.logger.WithFields(logrus.Fields{"action": "file_cache", "key": key.String()}).Debug("file cache has expired, refreshing")
		return "", false
	}
	c.logger.WithFields(logrus.Fields{"action": "file_cache", "key": key.String(), "age": c.now().Sub(info.ModTime).String()}).Debug("file cache hit")
	return info.Path, true
}
