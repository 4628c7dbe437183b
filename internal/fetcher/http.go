package fetcher

import (
	"context"
	"net/http"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/any-hub/mediacache/internal/cache"
)

// HTTPDownloader 负责 http/https key，请求头来自 FetchRequest.Headers。
type HTTPDownloader struct {
	client *http.Client
}

// NewHTTPDownloader 使用共享 http.Client 构造网络 Downloader。
func NewHTTPDownloader(client *http.Client) *HTTPDownloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDownloader{client: client}
}

func (d *HTTPDownloader) Name() string {
	return "http"
}

func (d *HTTPDownloader) Applies(key cache.Key) bool {
	scheme := key.Scheme()
	return scheme == "http" || scheme == "https"
}

func (d *HTTPDownloader) AllowsCaching() bool {
	return true
}

func (d *HTTPDownloader) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Key.String(), nil)
	if err != nil {
		return FetchResult{}, TransferFailure(err, platformerrors.CodeInvalidInput, "invalid request url")
	}
	if req.Headers != nil {
		for name, values := range req.Headers.HeadersFor(req.Key) {
			for _, value := range values {
				httpReq.Header.Add(name, value)
			}
		}
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return FetchResult{}, TransferFailure(err, platformerrors.CodeNetwork, "http request failed")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return FetchResult{}, statusFailure(resp.StatusCode, req.Key.String())
	}
	return FetchResult{Body: resp.Body}, nil
}
