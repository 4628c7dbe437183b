package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Entry 表示一个已解析资源的本地句柄：文件路径 + kill 标记 + 引用计数。
//
// Live Tier 对 Entry 的持有不计入引用计数；消费者拿到 Entry 后需在用完时调用 Release。
type Entry struct {
	key         Key
	path        string
	absent      bool
	resurrected bool
	createdAt   time.Time

	killed atomic.Bool
	refs   atomic.Int64

	releaseOnce sync.Once
	onRelease   func(*Entry)

	// lastUsed 仅由 coordinator goroutine 读写。
	lastUsed time.Time
}

// NewEntry 为成功拉取或复用的文件创建条目。
func NewEntry(key Key, path string) *Entry {
	now := time.Now()
	return &Entry{key: key, path: path, createdAt: now, lastUsed: now}
}

// NewAbsentEntry 创建负缓存条目，记录“该 key 暂无可用结果”。
func NewAbsentEntry(key Key) *Entry {
	now := time.Now()
	return &Entry{key: key, absent: true, createdAt: now, lastUsed: now}
}

// NewTransientEntry 创建不进入缓存的临时条目：初始引用为 1（归创建者），
// 最后一次 Release 时调用 onRelease，通常用于删除不允许缓存的文件。
func NewTransientEntry(key Key, path string, onRelease func(*Entry)) *Entry {
	entry := NewEntry(key, path)
	entry.onRelease = onRelease
	entry.refs.Store(1)
	return entry
}

func newResurrectedEntry(key Key, path string) *Entry {
	entry := NewEntry(key, path)
	entry.resurrected = true
	return entry
}

func (e *Entry) Key() Key {
	return e.key
}

// Path 返回支撑该资源的本地文件路径；负缓存条目返回空串。
func (e *Entry) Path() string {
	return e.path
}

// Absent 表示这是一次失败拉取留下的负缓存结果。
func (e *Entry) Absent() bool {
	return e.absent
}

// Resurrected 表示条目由 Revival Tier 复活而来。
func (e *Entry) Resurrected() bool {
	return e.resurrected
}

func (e *Entry) CreatedAt() time.Time {
	return e.createdAt
}

// Killed 表示条目已被 headshot，永远不会再写入 Revival Tier。
func (e *Entry) Killed() bool {
	return e.killed.Load()
}

func (e *Entry) kill() {
	e.killed.Store(true)
}

// Refs 返回当前未释放的引用数量。
func (e *Entry) Refs() int64 {
	return e.refs.Load()
}

// Retain 增加一次引用并返回自身，便于链式传递给消费者。
func (e *Entry) Retain() *Entry {
	e.refs.Add(1)
	return e
}

// Release 释放一次引用；引用归零时触发 onRelease（仅一次）。
func (e *Entry) Release() {
	if e.refs.Add(-1) > 0 {
		return
	}
	if e.onRelease != nil {
		e.releaseOnce.Do(func() { e.onRelease(e) })
	}
}
