package cache

import (
	"github.com/jellydator/ttlcache/v3"
)

// DefaultRevivalRecordBytes 是估算单条 RevivalRecord 内存占用时使用的字节数。
const DefaultRevivalRecordBytes = 1024

// RevivalTier 是 Live Tier 的小型影子：只记住被回收条目的文件路径，
// 容量固定，超限时淘汰最久未访问的记录。
type RevivalTier struct {
	records *ttlcache.Cache[Key, string]
}

// NewRevivalTier 创建容量为 capacity 的 Revival Tier，capacity 至少为 1。
func NewRevivalTier(capacity int) *RevivalTier {
	if capacity < 1 {
		capacity = 1
	}
	return &RevivalTier{
		records: ttlcache.New[Key, string](
			ttlcache.WithCapacity[Key, string](uint64(capacity)),
		),
	}
}

// RevivalCapacityForBudget 按内存预算的 1/8 推算记录条数。
func RevivalCapacityForBudget(budgetBytes int64, recordBytes int64) int {
	if recordBytes <= 0 {
		recordBytes = DefaultRevivalRecordBytes
	}
	capacity := budgetBytes / 8 / recordBytes
	if capacity < 1 {
		return 1
	}
	return int(capacity)
}

// Put 记录 key 对应的文件路径，已存在时覆盖并刷新最近访问顺序。
func (r *RevivalTier) Put(key Key, path string) {
	r.records.Set(key, path, ttlcache.NoTTL)
}

// Take 取出并删除记录；无论之后复活是否成功，记录都只会被消费一次。
func (r *RevivalTier) Take(key Key) (string, bool) {
	item := r.records.Get(key)
	if item == nil {
		return "", false
	}
	r.records.Delete(key)
	return item.Value(), true
}

// Touch 刷新记录的最近访问顺序而不消费它。
func (r *RevivalTier) Touch(key Key) bool {
	return r.records.Get(key) != nil
}

// Has 判断记录是否存在，不影响访问顺序。
func (r *RevivalTier) Has(key Key) bool {
	return r.records.Has(key)
}

// Remove 丢弃 key 的记录。
func (r *RevivalTier) Remove(key Key) {
	r.records.Delete(key)
}

func (r *RevivalTier) Len() int {
	return r.records.Len()
}
