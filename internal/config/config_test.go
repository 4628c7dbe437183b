package config

import (
	"errors"
	"testing"
	"time"

	"github.com/any-hub/mediacache/internal/cache"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if !cfg.Global.CacheTTL.IsInfinite() {
		t.Fatalf("CacheTTL 应解析为 infinite")
	}
	if cfg.DefaultMaxAge() != cache.Infinite {
		t.Fatalf("infinite CacheTTL 应映射为 cache.Infinite")
	}
	if cfg.Global.SweepAge.DurationValue() != 72*time.Hour {
		t.Fatalf("SweepAge 解析错误: %v", cfg.Global.SweepAge.DurationValue())
	}
	if cfg.Global.NegativeTTL.DurationValue() != 30*time.Second {
		t.Fatalf("NegativeTTL 应该自动填充默认值")
	}
	if cfg.Global.RequestTimeout.DurationValue() == 0 {
		t.Fatalf("RequestTimeout 应该自动填充默认值")
	}
	if cfg.Global.StoragePath == "" {
		t.Fatalf("StoragePath 应该被保留")
	}
	if cfg.Global.FetchWorkers != 8 {
		t.Fatalf("FetchWorkers 应当被解析")
	}
	if !cfg.S3.Enabled() || cfg.S3.AuthMode() != "credentialed" {
		t.Fatalf("S3 配置解析错误: %+v", cfg.S3)
	}
	if len(cfg.Headers) != 1 || cfg.Headers[0].Name != "Authorization" {
		t.Fatalf("Header 规则解析错误: %+v", cfg.Headers)
	}
}

func TestValidateRejectsBadHeader(t *testing.T) {
	cfgPath := testConfigPath(t, "missing.toml")

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatalf("不合法的配置应返回错误")
	}
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "Header[0].Name" {
		t.Fatalf("应返回 Header[0].Name 字段错误, got %v", err)
	}
}

func TestEffectiveRevivalCapacity(t *testing.T) {
	cfg := validConfig()
	cfg.Global.MaxMemoryCache = 8 * 1024 * 1024
	cfg.Global.RevivalRecordBytes = 1024
	if got := cfg.EffectiveRevivalCapacity(); got != 1024 {
		t.Fatalf("按预算推算的容量应为 1024, got %d", got)
	}

	cfg.Global.RevivalCapacity = 10
	if got := cfg.EffectiveRevivalCapacity(); got != 10 {
		t.Fatalf("显式配置的容量应优先生效, got %d", got)
	}
}

func TestDefaultMaxAgeFinite(t *testing.T) {
	cfg := validConfig()
	if cfg.DefaultMaxAge() != cache.MaxAge(time.Hour) {
		t.Fatalf("DefaultMaxAge 应等于 CacheTTL")
	}
}

func TestEffectiveSweepAgeInfiniteDisablesSweep(t *testing.T) {
	cfg := validConfig()
	cfg.Global.SweepAge = InfiniteDuration
	if cfg.EffectiveSweepAge() != 0 {
		t.Fatalf("infinite SweepAge 应关闭清理")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateS3(t *testing.T) {
	testCases := []struct {
		name      string
		s3        S3Config
		shouldErr bool
	}{
		{"disabled", S3Config{}, false},
		{"anonymous", S3Config{Endpoint: "minio.local:9000"}, false},
		{"credentialed", S3Config{Endpoint: "minio.local:9000", AccessKey: "a", SecretKey: "b"}, false},
		{"scheme", S3Config{Endpoint: "https://minio.local"}, true},
		{"path", S3Config{Endpoint: "minio.local/bucket"}, true},
		{"half credentials", S3Config{Endpoint: "minio.local", AccessKey: "a"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.S3 = tc.s3
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for %+v", tc.s3)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for %+v: %v", tc.s3, err)
			}
		})
	}
}

func TestValidateRequiresWorkers(t *testing.T) {
	cfg := validConfig()
	cfg.Global.FetchWorkers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("FetchWorkers 为 0 时应报错")
	}
}

func TestHeaderSummaryOmitsValues(t *testing.T) {
	cfg := validConfig()
	cfg.Headers = []HeaderConfig{{Prefix: "https://a/", Name: "X-Token", Value: "secret"}}
	summary := cfg.HeaderSummary()
	if len(summary) != 1 || summary[0] != "https://a/:X-Token" {
		t.Fatalf("unexpected summary: %v", summary)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:         5000,
			StoragePath:        "./data",
			CacheTTL:           Duration(time.Hour),
			SweepAge:           Duration(7 * 24 * time.Hour),
			NegativeTTL:        Duration(30 * time.Second),
			MaxMemoryCache:     1,
			RevivalRecordBytes: 1024,
			FetchWorkers:       1,
			UpstreamTimeout:    Duration(time.Second),
			RequestTimeout:     Duration(time.Second),
		},
	}
}
