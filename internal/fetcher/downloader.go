package fetcher

import (
	"context"
	"io"
	"net/http"

	"github.com/any-hub/mediacache/internal/cache"
)

// Downloader 是一类 key 的可插拔解析器。注册顺序即匹配顺序，首个 Applies 为真的生效。
type Downloader interface {
	// Name 用于日志与诊断输出。
	Name() string

	// Applies 判断该 Downloader 是否能处理 key。
	Applies(key cache.Key) bool

	// Fetch 在 worker goroutine 上执行且每次拉取只调用一次。
	// 成功时 FetchResult 的 Body 与 ExistingPath 必须恰好设置其一。
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)

	// AllowsCaching 为 false 时，拉取结果在消费后即删除，不进入缓存。
	AllowsCaching() bool
}

// FetchRequest 描述一次拉取。
type FetchRequest struct {
	Key cache.Key
	// Target 是 key 派生出的本地文件路径，字节流最终会持久化到这里。
	Target string
	// Headers 可能为空，仅网络类 Downloader 会使用。
	Headers HeaderProvider
}

// FetchResult 二选一：需要持久化的字节流，或可直接复用的本地文件。
type FetchResult struct {
	Body         io.ReadCloser
	ExistingPath string
}

// HeaderProvider 为每次请求补充额外的传输头。
type HeaderProvider interface {
	HeadersFor(key cache.Key) http.Header
}

// HeaderProviderFunc adapts a function to the HeaderProvider interface.
type HeaderProviderFunc func(key cache.Key) http.Header

// HeadersFor makes HeaderProviderFunc satisfy HeaderProvider.
func (f HeaderProviderFunc) HeadersFor(key cache.Key) http.Header {
	return f(key)
}

// Match 返回列表中第一个适用于 key 的 Downloader。
func Match(downloaders []Downloader, key cache.Key) (Downloader, bool) {
	for _, d := range downloaders {
		if d != nil && d.Applies(key) {
			return d, true
		}
	}
	return nil, false
}

// Names 返回 Downloader 名称列表，保持注册顺序。
func Names(downloaders []Downloader) []string {
	names := make([]string, 0, len(downloaders))
	for _, d := range downloaders {
		if d != nil {
			names = append(names, d.Name())
		}
	}
	return names
}

// Defaults 按内置顺序组装 Downloader：http → s3 → content → file。
// s3 与 content 为 nil 时跳过。
func Defaults(client *http.Client, s3 *S3Downloader, content *ContentDownloader) []Downloader {
	list := []Downloader{NewHTTPDownloader(client)}
	if s3 != nil {
		list = append(list, s3)
	}
	if content != nil {
		list = append(list, content)
	}
	return append(list, NewFileDownloader())
}
