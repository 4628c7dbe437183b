package coordinator

import (
	"context"
	"sync"

	"github.com/any-hub/mediacache/internal/cache"
)

// Consumer 是请求方句柄（例如可复用的播放控件）。
//
// Deliver 在 coordinator goroutine 上调用，不得阻塞，也不得同步回调 Coordinator。
// 该 goroutine 只做内存操作与文件 stat，不执行字节传输。
// 实现的动态类型必须可比较（通常为指针），因为它会作为绑定表的键。
type Consumer interface {
	Deliver(Delivery)
}

// Delivery 是一次拉取完成后推送给仍在等待的消费者的结果。
// Entry 始终非空：失败时是负缓存条目，Err 记录原因。消费者用完后需调用 Release。
type Delivery struct {
	Key   cache.Key
	Entry *cache.Entry
	Err   error
}

// OK 表示投递携带可用的本地文件。
func (d Delivery) OK() bool {
	return d.Entry != nil && !d.Entry.Absent()
}

// Release 释放投递携带的条目引用。
func (d Delivery) Release() {
	if d.Entry != nil {
		d.Entry.Release()
	}
}

// Handle 是可复用的消费者：按 key 暂存最近一次投递，供任意 goroutine 等待。
type Handle struct {
	id string

	mu     sync.Mutex
	latest map[cache.Key]Delivery
	signal chan struct{}
}

// NewHandle 创建一个带标识的消费者句柄。
func NewHandle(id string) *Handle {
	return &Handle{
		id:     id,
		latest: make(map[cache.Key]Delivery),
		signal: make(chan struct{}),
	}
}

func (h *Handle) ID() string {
	return h.id
}

// Deliver 实现 Consumer；同 key 未被取走的旧投递会被释放并替换。
func (h *Handle) Deliver(d Delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.latest[d.Key]; ok {
		old.Release()
	}
	h.latest[d.Key] = d
	close(h.signal)
	h.signal = make(chan struct{})
}

// Wait 阻塞直到 key 的投递到达或 ctx 结束。
func (h *Handle) Wait(ctx context.Context, key cache.Key) (Delivery, error) {
	for {
		h.mu.Lock()
		if d, ok := h.latest[key]; ok {
			delete(h.latest, key)
			h.mu.Unlock()
			return d, nil
		}
		signal := h.signal
		h.mu.Unlock()

		select {
		case <-signal:
		case <-ctx.Done():
			return Delivery{}, ctx.Err()
		}
	}
}

// Reset 丢弃 key 上尚未被取走的投递。消费者在重新请求 key 之前调用，
// 避免此前等待超时后才到达的旧结果被当作本次结果。
func (h *Handle) Reset(key cache.Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.latest[key]; ok {
		d.Release()
		delete(h.latest, key)
	}
}

// Discard 丢弃所有尚未被取走的投递并释放其引用。
func (h *Handle) Discard() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, d := range h.latest {
		d.Release()
		delete(h.latest, key)
	}
}
