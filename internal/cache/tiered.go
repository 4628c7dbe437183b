package cache

// Tiered 组合 Live Tier 与 Revival Tier，对外提供 lookup/insert/kill 以及回收钩子。
type Tiered struct {
	live    *LiveTier
	revival *RevivalTier
}

// TieredOptions 控制两层缓存的容量。
type TieredOptions struct {
	LiveCapacity    int
	RevivalCapacity int
}

// NewTiered 构造两层缓存，并将 Live Tier 的回收事件接到 OnReclaim。
func NewTiered(opts TieredOptions) *Tiered {
	t := &Tiered{
		revival: NewRevivalTier(opts.RevivalCapacity),
	}
	t.live = NewLiveTier(opts.LiveCapacity, t.OnReclaim)
	return t
}

// Lookup 先查 Revival Tier（命中即消费记录并以复活条目重新放回 Live Tier），
// 否则返回 Live Tier 中仍驻留的条目。纯未命中没有副作用。
func (t *Tiered) Lookup(key Key) (*Entry, bool) {
	if path, ok := t.revival.Take(key); ok {
		entry := newResurrectedEntry(key, path)
		t.live.Put(key, entry)
		return entry, true
	}
	return t.live.Get(key)
}

// Insert 以可回收方式写入 Live Tier，替换旧条目；同 key 的 Revival 记录随之失效。
func (t *Tiered) Insert(key Key, entry *Entry) {
	t.revival.Remove(key)
	t.live.Put(key, entry)
}

// InsertAbsent 记录一次失败结果，避免同一轮请求反复触发拉取。
func (t *Tiered) InsertAbsent(key Key) *Entry {
	entry := NewAbsentEntry(key)
	t.revival.Remove(key)
	t.live.Put(key, entry)
	return entry
}

// Kill 永久作废 key：标记驻留条目、移出 Live Tier，并清除 Revival 记录。
// 之后即使该条目的回收钩子再触发，也不会写入 Revival Tier。
func (t *Tiered) Kill(key Key) bool {
	entry, ok := t.live.Remove(key)
	if ok {
		entry.kill()
	}
	hadRecord := t.revival.Has(key)
	t.revival.Remove(key)
	return ok || hadRecord
}

// OnReclaim 是回收钩子：条目未被 kill 且不是负缓存时，把路径写入 Revival Tier。
func (t *Tiered) OnReclaim(key Key, entry *Entry) {
	if entry == nil || entry.Killed() || entry.Absent() || entry.Path() == "" {
		return
	}
	t.revival.Put(key, entry.Path())
}

// Reclaim 回收单个 key，返回是否存在驻留条目。
func (t *Tiered) Reclaim(key Key) bool {
	return t.live.Reclaim(key)
}

// ReclaimIdle 回收所有无人引用的 Live 条目。
func (t *Tiered) ReclaimIdle() int {
	return t.live.ReclaimIdle()
}

// Live 返回底层 Live Tier，供诊断与测试使用。
func (t *Tiered) Live() *LiveTier {
	return t.live
}

// Revival 返回底层 Revival Tier，供诊断与测试使用。
func (t *Tiered) Revival() *RevivalTier {
	return t.revival
}
