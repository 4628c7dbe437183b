package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const storagePlaceholder = "{{storage}}"

func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("缺少配置样例 %s: %v", name, err)
	}
	return path
}

// writeTempConfig 在临时目录写入 config.toml，返回配置路径与缓存目录。
// content 中的 {{storage}} 会被替换为同一临时目录下的 cache 子目录。
func writeTempConfig(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	storage := filepath.Join(dir, "cache")
	content = strings.ReplaceAll(content, storagePlaceholder, filepath.ToSlash(storage))
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path, storage
}
