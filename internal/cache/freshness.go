package cache

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxAge 描述一次请求允许复用的本地文件最大年龄。
type MaxAge time.Duration

// 常用缓存时长。Infinite 表示永不重新验证。
const (
	Infinite   MaxAge = MaxAge(math.MaxInt64)
	OneDay     MaxAge = MaxAge(24 * time.Hour)
	TwoDays           = OneDay * 2
	ThreeDays         = OneDay * 3
	FourDays          = OneDay * 4
	FiveDays          = OneDay * 5
	SixDays           = OneDay * 6
	OneWeek           = OneDay * 7
)

// Duration 返回对应的 time.Duration。
func (m MaxAge) Duration() time.Duration {
	return time.Duration(m)
}

// IsInfinite 判断是否为永不过期哨兵值。
func (m MaxAge) IsInfinite() bool {
	return m == Infinite
}

// Fresh 判断 modTime 对应的文件在 now 时刻是否仍然新鲜。
func (m MaxAge) Fresh(modTime, now time.Time) bool {
	if m.IsInfinite() {
		return true
	}
	return now.Before(modTime.Add(time.Duration(m)))
}

func (m MaxAge) String() string {
	if m.IsInfinite() {
		return "infinite"
	}
	return time.Duration(m).String()
}

// ParseMaxAge 支持 "infinite"、Go duration 字符串；空串返回 fallback。
func ParseMaxAge(raw string, fallback MaxAge) (MaxAge, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	if strings.EqualFold(raw, "infinite") {
		return Infinite, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("max age must be positive: %s", raw)
	}
	return MaxAge(d), nil
}
