package cache

import (
	"sort"
	"time"
)

// ReclaimFunc 在 Live Tier 放弃一个条目时被调用，对应“系统回收”事件。
type ReclaimFunc func(key Key, entry *Entry)

// LiveTier 以可回收方式持有条目。回收只发生在显式的回收转换中：
// Reclaim、ReclaimIdle 或超出容量时淘汰最久未使用的空闲条目。
type LiveTier struct {
	entries   map[Key]*Entry
	capacity  int
	onReclaim ReclaimFunc
	now       func() time.Time
}

// NewLiveTier 创建 Live Tier；capacity <= 0 表示不设上限，仅在内存压力时回收。
func NewLiveTier(capacity int, onReclaim ReclaimFunc) *LiveTier {
	return &LiveTier{
		entries:   make(map[Key]*Entry),
		capacity:  capacity,
		onReclaim: onReclaim,
		now:       time.Now,
	}
}

// Get 返回仍驻留的条目，并刷新其最近使用时间。
func (l *LiveTier) Get(key Key) (*Entry, bool) {
	entry, ok := l.entries[key]
	if !ok {
		return nil, false
	}
	entry.lastUsed = l.now()
	return entry, true
}

// Put 写入条目并替换同 key 的旧条目；旧条目不会触发回收钩子。
func (l *LiveTier) Put(key Key, entry *Entry) {
	entry.lastUsed = l.now()
	l.entries[key] = entry
	l.enforceCapacity(key)
}

// Remove 直接移除条目，不触发回收钩子。
func (l *LiveTier) Remove(key Key) (*Entry, bool) {
	entry, ok := l.entries[key]
	if ok {
		delete(l.entries, key)
	}
	return entry, ok
}

// Reclaim 模拟系统回收单个条目：移出 Live Tier 并执行回收钩子。
func (l *LiveTier) Reclaim(key Key) bool {
	entry, ok := l.Remove(key)
	if !ok {
		return false
	}
	if l.onReclaim != nil {
		l.onReclaim(key, entry)
	}
	return true
}

// ReclaimIdle 回收所有没有外部引用的条目，返回回收数量。
func (l *LiveTier) ReclaimIdle() int {
	var idle []Key
	for key, entry := range l.entries {
		if entry.Refs() <= 0 {
			idle = append(idle, key)
		}
	}
	for _, key := range idle {
		l.Reclaim(key)
	}
	return len(idle)
}

func (l *LiveTier) Len() int {
	return len(l.entries)
}

// enforceCapacity 超出容量时按最近使用时间回收空闲条目；刚写入的 key 不参与淘汰。
// 所有条目都被引用时允许暂时超限。
func (l *LiveTier) enforceCapacity(keep Key) {
	if l.capacity <= 0 || len(l.entries) <= l.capacity {
		return
	}

	type candidate struct {
		key      Key
		lastUsed time.Time
	}
	candidates := make([]candidate, 0, len(l.entries))
	for key, entry := range l.entries {
		if key == keep || entry.Refs() > 0 {
			continue
		}
		candidates = append(candidates, candidate{key: key, lastUsed: entry.lastUsed})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastUsed.Before(candidates[j].lastUsed)
	})

	for _, c := range candidates {
		if len(l.entries) <= l.capacity {
			return
		}
		l.Reclaim(c.key)
	}
}
