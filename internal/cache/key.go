package cache

import (
	"net/url"
	"strings"

	"github.com/opencontainers/go-digest"
)

// FileSuffix 标识由本缓存生成的磁盘文件，sweep 只会清理带该后缀的文件。
const FileSuffix = ".urlmedia"

// Key 是规范化后的资源标识，同时作为 map 键与文件名派生输入。
type Key string

// NormalizeKey 清理请求字符串；空串以及 "null"/"NULL" 视为无效请求。
// URL 形式的 key 统一 scheme 为小写；http/https 的 host 同样小写，其余部分保持原样。
func NormalizeKey(raw string) (Key, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" || trimmed == "NULL" {
		return "", false
	}

	parsed, err := url.Parse(trimmed)
	if err == nil && parsed.Scheme != "" && parsed.Host != "" {
		parsed.Scheme = strings.ToLower(parsed.Scheme)
		if parsed.Scheme == "http" || parsed.Scheme == "https" {
			parsed.Host = strings.ToLower(parsed.Host)
		}
		return Key(parsed.String()), true
	}
	return Key(trimmed), true
}

func (k Key) String() string {
	return string(k)
}

// Scheme 返回 key 的 URL scheme（小写）；非 URL 形式返回空串。
func (k Key) Scheme() string {
	idx := strings.Index(string(k), "://")
	if idx <= 0 {
		return ""
	}
	return strings.ToLower(string(k)[:idx])
}

// FileName 返回 key 在缓存目录下的文件名：sha256 摘要 + FileSuffix。
func (k Key) FileName() string {
	return digest.FromString(string(k)).Encoded() + FileSuffix
}
