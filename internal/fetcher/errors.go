package fetcher

import (
	"errors"
	"fmt"
	"net/http"

	platformerrors "github.com/jmgilman/go/errors"
)

// ErrNoDownloader 表示没有任何已注册的 Downloader 适用于该 key。
var ErrNoDownloader = platformerrors.New(platformerrors.CodeNotImplemented, "no downloader applies to key")

// ErrInvalidResult 表示 Downloader 返回的结果同时设置或同时缺失 Body 与 ExistingPath。
var ErrInvalidResult = platformerrors.New(platformerrors.CodeInternal, "downloader must return exactly one of body or existing path")

// TransferFailure 包装一次失败的字节传输，code 决定是否可重试。
func TransferFailure(err error, code platformerrors.ErrorCode, message string) error {
	if err == nil {
		err = errors.New(message)
	}
	return platformerrors.Wrap(err, code, message)
}

// statusFailure 将上游 HTTP 状态码映射为对应的错误码。
func statusFailure(status int, url string) error {
	cause := fmt.Errorf("unexpected status %d from %s", status, url)
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return TransferFailure(cause, platformerrors.CodeNotFound, "resource not found")
	case status == http.StatusUnauthorized:
		return TransferFailure(cause, platformerrors.CodeUnauthorized, "upstream rejected credentials")
	case status == http.StatusForbidden:
		return TransferFailure(cause, platformerrors.CodeForbidden, "upstream denied access")
	case status == http.StatusTooManyRequests:
		return TransferFailure(cause, platformerrors.CodeRateLimit, "upstream rate limited")
	case status >= 500:
		return TransferFailure(cause, platformerrors.CodeUnavailable, "upstream unavailable")
	default:
		return TransferFailure(cause, platformerrors.CodeNetwork, "unexpected upstream status")
	}
}

// Code 返回错误携带的错误码，供日志字段使用。
func Code(err error) string {
	return string(platformerrors.GetCode(err))
}

// Retryable 判断失败是否为临时性故障。
func Retryable(err error) bool {
	return platformerrors.IsRetryable(err)
}

// PersistFailure 表示字节流已取得但写入本地存储失败。
func PersistFailure(err error) error {
	return TransferFailure(err, platformerrors.CodeInternal, "persist fetched bytes")
}

// PanicFailure 将 Downloader 的 panic 转换为普通的传输失败。
func PanicFailure(recovered any) error {
	return TransferFailure(fmt.Errorf("downloader panic: %v", recovered), platformerrors.CodeInternal, "downloader panicked")
}
