package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/any-hub/mediacache/internal/cache"
)

// S3Config 描述 S3 兼容对象存储的连接参数。
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Downloader 处理 s3://<bucket>/<object> key。
type S3Downloader struct {
	client *minio.Client
}

// NewS3Downloader 根据配置创建 minio 客户端；不会立即发起网络连接。
func NewS3Downloader(cfg S3Config) (*S3Downloader, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &S3Downloader{client: client}, nil
}

func (d *S3Downloader) Name() string {
	return "s3"
}

func (d *S3Downloader) Applies(key cache.Key) bool {
	return key.Scheme() == "s3"
}

func (d *S3Downloader) AllowsCaching() bool {
	return true
}

func (d *S3Downloader) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	bucket, object, err := splitS3Key(req.Key)
	if err != nil {
		return FetchResult{}, err
	}

	// GetObject 的错误在首次 Read 时才出现，先 Stat 以便区分 404。
	if _, err := d.client.StatObject(ctx, bucket, object, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return FetchResult{}, TransferFailure(err, platformerrors.CodeNotFound, "object not found")
		}
		return FetchResult{}, TransferFailure(err, platformerrors.CodeNetwork, "stat object failed")
	}

	obj, err := d.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return FetchResult{}, TransferFailure(err, platformerrors.CodeNetwork, "get object failed")
	}
	return FetchResult{Body: obj}, nil
}

func splitS3Key(key cache.Key) (string, string, error) {
	parsed, err := url.Parse(key.String())
	if err != nil {
		return "", "", TransferFailure(err, platformerrors.CodeInvalidInput, "invalid s3 url")
	}
	object := strings.TrimPrefix(parsed.Path, "/")
	if parsed.Host == "" || object == "" {
		return "", "", TransferFailure(nil, platformerrors.CodeInvalidInput, "s3 key must be s3://bucket/object")
	}
	return parsed.Host, object, nil
}
