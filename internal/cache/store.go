package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理磁盘缓存文件。磁盘布局遵循：
//
//	<StoragePath>/<sha256(key)>.urlmedia
//
// 每个 key 对应一个文件，ModTime 由文件系统提供并用于新鲜度判断。
type Store interface {
	// Path 返回 key 派生出的目标文件路径，文件不一定存在。
	Path(key Key) string

	// Stat 返回已存在文件的信息。若不存在则返回 ErrNotFound。
	Stat(ctx context.Context, key Key) (FileInfo, error)

	// Put 将 body 写入 key 的目标文件。实现需通过临时文件 + rename
	// 保证写入原子性，并在失败时清理临时文件。
	Put(ctx context.Context, key Key, body io.Reader) (FileInfo, error)

	// Remove 删除 key 的目标文件，文件不存在时不报错。
	Remove(ctx context.Context, key Key) error

	// PutTransient 将 body 写入缓存目录下的独立临时文件，而不是 key 的目标文件。
	// 用于不允许缓存的结果：目标路径保持空闲，已有文件快速路径不会看到它。
	PutTransient(ctx context.Context, key Key, body io.Reader) (FileInfo, error)

	// Detach 把 key 的目标文件改名为独立临时文件并返回新路径。
	Detach(ctx context.Context, key Key) (FileInfo, error)

	// RemoveTransient 删除 PutTransient/Detach 产生的文件；其他路径返回 ErrNotTransient。
	RemoveTransient(path string) error

	// Dir 返回缓存根目录。
	Dir() string
}

// FileInfo 描述一个缓存文件。
type FileInfo struct {
	Path      string
	SizeBytes int64
	ModTime   time.Time
}

// TransientPrefix 是临时文件名前缀，这类文件不带 FileSuffix。
const TransientPrefix = ".transient-"

var (
	// ErrNotFound 表示缓存文件不存在。
	ErrNotFound = errors.New("cache file not found")
	// ErrNotTransient 表示路径不是本 Store 产生的临时文件。
	ErrNotTransient = errors.New("path is not a transient cache file")
)
