package fetcher

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/any-hub/mediacache/internal/cache"
)

// FileDownloader 处理 file:// 与绝对路径 key：直接复用原文件，不在缓存目录保留副本。
type FileDownloader struct{}

func NewFileDownloader() *FileDownloader {
	return &FileDownloader{}
}

func (d *FileDownloader) Name() string {
	return "file"
}

func (d *FileDownloader) Applies(key cache.Key) bool {
	scheme := key.Scheme()
	if scheme == "file" {
		return true
	}
	return scheme == "" && filepath.IsAbs(key.String())
}

func (d *FileDownloader) AllowsCaching() bool {
	return false
}

func (d *FileDownloader) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return FetchResult{}, err
	}

	path := req.Key.String()
	if req.Key.Scheme() == "file" {
		parsed, err := url.Parse(path)
		if err != nil {
			return FetchResult{}, TransferFailure(err, platformerrors.CodeInvalidInput, "invalid file url")
		}
		path = parsed.Path
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FetchResult{}, TransferFailure(err, platformerrors.CodeNotFound, "file not found")
		}
		return FetchResult{}, TransferFailure(err, platformerrors.CodeInternal, "stat file failed")
	}
	if info.IsDir() {
		return FetchResult{}, TransferFailure(nil, platformerrors.CodeInvalidInput, "path is a directory")
	}
	return FetchResult{ExistingPath: path}, nil
}
