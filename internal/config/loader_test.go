package config

import (
	"testing"
	"time"
)

func TestLoadFailsWithMissingFields(t *testing.T) {
	if _, err := Load(testConfigPath(t, "missing.toml")); err == nil {
		t.Fatalf("缺失字段的配置应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"
StoragePath = "./data"
CacheTTL = "boom"
`
	path, _ := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadAcceptsNumericSeconds(t *testing.T) {
	cfg := `
StoragePath = "{{storage}}"
CacheTTL = 3600
NegativeTTL = "0"
`
	path, storage := writeTempConfig(t, cfg)
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.Global.StoragePath != storage {
		t.Fatalf("StoragePath 应保持绝对路径 %s, got %s", storage, loaded.Global.StoragePath)
	}
	if loaded.Global.CacheTTL.DurationValue() != time.Hour {
		t.Fatalf("纯数字秒值应被解析: %v", loaded.Global.CacheTTL.DurationValue())
	}
	if loaded.Global.NegativeTTL.DurationValue() != 0 {
		t.Fatalf("NegativeTTL 为 0 时应关闭负缓存")
	}
}

func TestLoadUsesDefaultStoragePath(t *testing.T) {
	path, _ := writeTempConfig(t, "LogLevel = \"warn\"\n")
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.Global.StoragePath != DefaultStoragePath() {
		t.Fatalf("未配置 StoragePath 时应使用默认目录, got %s", loaded.Global.StoragePath)
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	cases := map[string]time.Duration{
		"":         0,
		"90s":      90 * time.Second,
		"120":      2 * time.Minute,
		"0x10":     16 * time.Second,
		"1.5":      1500 * time.Millisecond,
		"Infinite": InfiniteDuration.DurationValue(),
	}
	for raw, want := range cases {
		var d Duration
		if err := d.UnmarshalText([]byte(raw)); err != nil {
			t.Fatalf("UnmarshalText(%q) 返回错误: %v", raw, err)
		}
		if d.DurationValue() != want {
			t.Fatalf("UnmarshalText(%q) = %v, want %v", raw, d.DurationValue(), want)
		}
	}

	var d Duration
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Fatalf("非法值应返回错误")
	}
}
