package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/mediacache/internal/cache"
)

func TestHTTPDownloaderStreamsBodyWithHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	t.Cleanup(server.Close)

	key := cache.Key(server.URL + "/clip.mp3")
	headers := NewStaticHeaders([]HeaderRule{{Prefix: server.URL, Name: "Authorization", Value: "Bearer token"}})

	d := NewHTTPDownloader(server.Client())
	require.True(t, d.Applies(key))

	result, err := d.Fetch(context.Background(), FetchRequest{Key: key, Headers: headers})
	require.NoError(t, err)
	require.NotNil(t, result.Body)
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(body))
	assert.Empty(t, result.ExistingPath)
}

func TestHTTPDownloaderMapsStatusCodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(server.Close)

	d := NewHTTPDownloader(server.Client())

	_, err := d.Fetch(context.Background(), FetchRequest{Key: cache.Key(server.URL + "/missing")})
	require.Error(t, err)
	assert.Equal(t, string(platformerrors.CodeNotFound), Code(err))
	assert.False(t, Retryable(err))

	_, err = d.Fetch(context.Background(), FetchRequest{Key: cache.Key(server.URL + "/flaky")})
	require.Error(t, err)
	assert.Equal(t, string(platformerrors.CodeUnavailable), Code(err))
	assert.True(t, Retryable(err))
}

func TestFileDownloaderReusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.mp3")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o600))

	d := NewFileDownloader()
	assert.False(t, d.AllowsCaching())

	for _, raw := range []string{path, "file://" + path} {
		key := cache.Key(raw)
		require.True(t, d.Applies(key), raw)
		result, err := d.Fetch(context.Background(), FetchRequest{Key: key})
		require.NoError(t, err)
		assert.Equal(t, path, result.ExistingPath)
		assert.Nil(t, result.Body)
	}

	_, err := d.Fetch(context.Background(), FetchRequest{Key: cache.Key(path + ".missing")})
	require.Error(t, err)
	assert.Equal(t, string(platformerrors.CodeNotFound), Code(err))
	assert.False(t, d.Applies(cache.Key("relative/path.mp3")))
}

func TestContentDownloaderReadsFromFilesystem(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "music/track.ogg", []byte("ogg"), 0o644))

	d := NewContentDownloader(fs)
	key := cache.Key("content://music/track.ogg")
	require.True(t, d.Applies(key))

	result, err := d.Fetch(context.Background(), FetchRequest{Key: key})
	require.NoError(t, err)
	defer result.Body.Close()
	body, err := io.ReadAll(result.Body)
	require.NoError(t, err)
	assert.Equal(t, "ogg", string(body))

	_, err = d.Fetch(context.Background(), FetchRequest{Key: cache.Key("content://music/none.ogg")})
	require.Error(t, err)
	assert.Equal(t, string(platformerrors.CodeNotFound), Code(err))
}

func TestS3KeyParsing(t *testing.T) {
	d, err := NewS3Downloader(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.True(t, d.Applies(cache.Key("s3://bucket/audio/a.mp3")))
	assert.False(t, d.Applies(cache.Key("https://bucket/audio/a.mp3")))

	bucket, object, err := splitS3Key(cache.Key("s3://bucket/audio/a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "audio/a.mp3", object)

	_, _, err = splitS3Key(cache.Key("s3://bucket"))
	require.Error(t, err)
	assert.Equal(t, string(platformerrors.CodeInvalidInput), Code(err))
}

func TestDefaultsOrderAndMatch(t *testing.T) {
	list := Defaults(http.DefaultClient, nil, NewContentDownloader(memfs.New()))
	assert.Equal(t, []string{"http", "content", "file"}, Names(list))

	d, ok := Match(list, cache.Key("https://example.com/a.mp3"))
	require.True(t, ok)
	assert.Equal(t, "http", d.Name())

	d, ok = Match(list, cache.Key("/var/media/a.mp3"))
	require.True(t, ok)
	assert.Equal(t, "file", d.Name())

	_, ok = Match(list, cache.Key("ftp://example.com/a.mp3"))
	assert.False(t, ok)
}

func TestStaticHeadersNilSafe(t *testing.T) {
	var provider HeaderProvider = NewStaticHeaders(nil)
	assert.Nil(t, provider.HeadersFor(cache.Key("https://example.com")))
}
