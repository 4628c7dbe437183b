package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整个进程复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{
		basePath: abs,
		locks:    make(map[Key]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一 key 并发写入。
type fileStore struct {
	basePath string

	mu    sync.Mutex
	locks map[Key]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Dir() string {
	return s.basePath
}

func (s *fileStore) Path(key Key) string {
	return filepath.Join(s.basePath, key.FileName())
}

func (s *fileStore) Stat(ctx context.Context, key Key) (FileInfo, error) {
	select {
	case <-ctx.Done():
		return FileInfo{}, ctx.Err()
	default:
	}

	filePath := s.Path(key)
	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileInfo{}, ErrNotFound
		}
		return FileInfo{}, err
	}
	if info.IsDir() {
		return FileInfo{}, ErrNotFound
	}

	return FileInfo{
		Path:      filePath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

func (s *fileStore) Put(ctx context.Context, key Key, body io.Reader) (FileInfo, error) {
	unlock := s.lockEntry(key)
	defer unlock()

	filePath := s.Path(key)

	tempFile, err := os.CreateTemp(s.basePath, ".cache-*")
	if err != nil {
		return FileInfo{}, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return FileInfo{}, err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return FileInfo{}, err
	}

	modTime := time.Now()
	if info, err := os.Stat(filePath); err == nil {
		modTime = info.ModTime()
	}

	return FileInfo{
		Path:      filePath,
		SizeBytes: written,
		ModTime:   modTime,
	}, nil
}

func (s *fileStore) PutTransient(ctx context.Context, key Key, body io.Reader) (FileInfo, error) {
	tempFile, err := os.CreateTemp(s.basePath, s.transientPattern(key))
	if err != nil {
		return FileInfo{}, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return FileInfo{}, err
	}

	modTime := time.Now()
	if info, err := os.Stat(tempName); err == nil {
		modTime = info.ModTime()
	}
	return FileInfo{Path: tempName, SizeBytes: written, ModTime: modTime}, nil
}

func (s *fileStore) Detach(ctx context.Context, key Key) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	unlock := s.lockEntry(key)
	defer unlock()

	// 先占位拿到唯一文件名，再用 rename 覆盖。
	placeholder, err := os.CreateTemp(s.basePath, s.transientPattern(key))
	if err != nil {
		return FileInfo{}, err
	}
	detached := placeholder.Name()
	placeholder.Close()

	if err := os.Rename(s.Path(key), detached); err != nil {
		os.Remove(detached)
		if errors.Is(err, fs.ErrNotExist) {
			return FileInfo{}, ErrNotFound
		}
		return FileInfo{}, err
	}

	info, err := os.Stat(detached)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Path: detached, SizeBytes: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *fileStore) RemoveTransient(path string) error {
	if filepath.Dir(path) != s.basePath || !strings.HasPrefix(filepath.Base(path), TransientPrefix) {
		return ErrNotTransient
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) transientPattern(key Key) string {
	name := strings.TrimSuffix(key.FileName(), FileSuffix)
	if len(name) > 12 {
		name = name[:12]
	}
	return TransientPrefix + name + "-*"
}

func (s *fileStore) Remove(ctx context.Context, key Key) error {
	unlock := s.lockEntry(key)
	defer unlock()

	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) lockEntry(key Key) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
