package fetcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	platformerrors "github.com/jmgilman/go/errors"

	"github.com/any-hub/mediacache/internal/cache"
)

const contentScheme = "content://"

// ContentDownloader 从 billy 文件系统读取 content://<path> 资源，结果写入缓存。
type ContentDownloader struct {
	fs billy.Filesystem
}

// NewContentDownloader 以任意 billy.Filesystem 作为内容仓库。
func NewContentDownloader(filesystem billy.Filesystem) *ContentDownloader {
	return &ContentDownloader{fs: filesystem}
}

// NewContentDownloaderAt 以本地目录 root 作为内容仓库。
func NewContentDownloaderAt(root string) *ContentDownloader {
	return NewContentDownloader(osfs.New(root))
}

func (d *ContentDownloader) Name() string {
	return "content"
}

func (d *ContentDownloader) Applies(key cache.Key) bool {
	return key.Scheme() == "content"
}

func (d *ContentDownloader) AllowsCaching() bool {
	return true
}

func (d *ContentDownloader) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return FetchResult{}, err
	}

	name := strings.TrimPrefix(req.Key.String(), contentScheme)
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return FetchResult{}, TransferFailure(nil, platformerrors.CodeInvalidInput, "empty content path")
	}

	file, err := d.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
			return FetchResult{}, TransferFailure(err, platformerrors.CodeNotFound, "content not found")
		}
		return FetchResult{}, TransferFailure(err, platformerrors.CodeInternal, "open content failed")
	}
	return FetchResult{Body: file}, nil
}
