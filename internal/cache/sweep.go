package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// SweepReport 汇总一次清理的结果。
type SweepReport struct {
	Scanned      int
	Removed      int
	RemovedBytes int64
}

// Sweeper 删除缓存目录中超过 maxAge 的 *.urlmedia 文件与残留临时文件，生命周期内最多执行一次。
type Sweeper struct {
	dir    string
	maxAge time.Duration
	logger *logrus.Logger
	now    func() time.Time

	once   sync.Once
	report SweepReport
	err    error
}

// NewSweeper 构造清理器；logger 可为空。
func NewSweeper(dir string, maxAge time.Duration, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		dir:    dir,
		maxAge: maxAge,
		logger: logger,
		now:    time.Now,
	}
}

// Run 执行清理；重复调用直接返回第一次的结果。
func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	s.once.Do(func() {
		s.report, s.err = s.sweep(ctx)
		s.log()
	})
	return s.report, s.err
}

func (s *Sweeper) sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	if s.maxAge <= 0 {
		return report, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, nil
		}
		return report, err
	}

	cutoff := s.now().Add(-s.maxAge)
	for _, dirEntry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if dirEntry.IsDir() || !isSweepable(dirEntry.Name()) {
			continue
		}
		report.Scanned++

		info, err := dirEntry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, dirEntry.Name())); err != nil {
			continue
		}
		report.Removed++
		report.RemovedBytes += info.Size()
	}
	return report, nil
}

// isSweepable 只匹配缓存文件与进程异常退出后残留的临时文件。
func isSweepable(name string) bool {
	return strings.HasSuffix(name, FileSuffix) || strings.HasPrefix(name, TransientPrefix)
}

func (s *Sweeper) log() {
	if s.logger == nil {
		return
	}
	fields := logrus.Fields{
		"action":  "cache_sweep",
		"dir":     s.dir,
		"max_age": s.maxAge.String(),
		"scanned": s.report.Scanned,
		"removed": s.report.Removed,
		"freed":   humanize.Bytes(uint64(s.report.RemovedBytes)),
	}
	if s.err != nil {
		s.logger.WithFields(fields).WithError(s.err).Warn("cache sweep failed")
		return
	}
	s.logger.WithFields(fields).Info("cache sweep finished")
}
