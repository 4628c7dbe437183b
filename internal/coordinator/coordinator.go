package coordinator

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/any-hub/mediacache/internal/cache"
	"github.com/any-hub/mediacache/internal/fetcher"
)

// ErrClosed 表示 Coordinator 已关闭。
var ErrClosed = errors.New("coordinator closed")

// Options 控制 Coordinator 的依赖与资源预算。
type Options struct {
	Store       cache.Store
	Logger      *logrus.Logger
	Downloaders []fetcher.Downloader
	Headers     fetcher.HeaderProvider

	LiveCapacity    int
	RevivalCapacity int
	// NegativeTTL 是失败结果作为“无结果”命中的有效期，<= 0 表示不缓存失败。
	NegativeTTL time.Duration
	// SweepAge <= 0 时不执行启动清理。
	SweepAge time.Duration
	// Workers 限制同时进行的拉取数，<= 0 时默认为 4。
	Workers int
}

// Coordinator 串行化所有缓存状态变更，拉取在 worker 上并发执行。
// 由宿主进程创建一次并传递给调用方；Close 后所有操作返回 ErrClosed。
type Coordinator struct {
	store       cache.Store
	logger      *logrus.Logger
	sweeper     *cache.Sweeper
	negativeTTL time.Duration
	now         func() time.Time

	// 以下字段只在 loop goroutine 中访问。
	tiers       *cache.Tiered
	pending     map[cache.Key]*pendingFetch
	bindings    map[Consumer]cache.Key
	downloaders []fetcher.Downloader
	headers     fetcher.HeaderProvider

	commands    chan func()
	completions chan fetchOutcome
	workers     *semaphore.Weighted

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	sweepOnce sync.Once
}

// New 构造 Coordinator 并启动其 goroutine。
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		store:       opts.Store,
		logger:      logger,
		negativeTTL: opts.NegativeTTL,
		now:         time.Now,
		tiers: cache.NewTiered(cache.TieredOptions{
			LiveCapacity:    opts.LiveCapacity,
			RevivalCapacity: opts.RevivalCapacity,
		}),
		pending:     make(map[cache.Key]*pendingFetch),
		bindings:    make(map[Consumer]cache.Key),
		downloaders: append([]fetcher.Downloader(nil), opts.Downloaders...),
		headers:     opts.Headers,
		commands:    make(chan func()),
		completions: make(chan fetchOutcome),
		workers:     semaphore.NewWeighted(int64(workers)),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	if opts.SweepAge > 0 {
		c.sweeper = cache.NewSweeper(opts.Store.Dir(), opts.SweepAge, logger)
	}

	go c.loop()
	return c, nil
}

// Close 停止 coordinator goroutine 并取消进行中的拉取，可重复调用。
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
	})
}

func (c *Coordinator) loop() {
	defer close(c.done)
	for {
		select {
		case cmd := <-c.commands:
			cmd()
		case res := <-c.completions:
			c.complete(res)
		case <-c.ctx.Done():
			return
		}
	}
}

// do 将 fn 投递到 coordinator goroutine 执行并等待其完成。
// fn 一旦被接收就会执行完毕，ctx 只约束排队阶段。
func (c *Coordinator) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}

	select {
	case c.commands <- cmd:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// startSweep 在首次请求时异步清理过期缓存文件，进程生命周期内只执行一次。
func (c *Coordinator) startSweep() {
	if c.sweeper == nil {
		return
	}
	c.sweepOnce.Do(func() {
		go func() {
			_, _ = c.sweeper.Run(c.ctx)
		}()
	})
}
