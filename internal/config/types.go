package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// InfiniteDuration 是 "infinite" 配置值对应的哨兵，表示永不过期。
const InfiniteDuration = Duration(math.MaxInt64)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数、Go Duration 字符串与 "infinite"。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m"、"infinite" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// IsInfinite 表示该值为 "infinite"。
func (d Duration) IsInfinite() bool {
	return d == InfiniteDuration
}

func parseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Duration(0), nil
	}
	if strings.EqualFold(raw, "infinite") {
		return InfiniteDuration, nil
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		return Duration(parsed), nil
	}
	if intVal, err := parseInt(raw); err == nil {
		return Duration(time.Duration(intVal) * time.Second), nil
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(seconds * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("invalid duration value: %s", raw)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数。
type GlobalConfig struct {
	ListenPort         int      `mapstructure:"ListenPort"`
	LogLevel           string   `mapstructure:"LogLevel"`
	LogFilePath        string   `mapstructure:"LogFilePath"`
	LogMaxSize         int      `mapstructure:"LogMaxSize"`
	LogMaxBackups      int      `mapstructure:"LogMaxBackups"`
	LogCompress        bool     `mapstructure:"LogCompress"`
	StoragePath        string   `mapstructure:"StoragePath"`
	CacheTTL           Duration `mapstructure:"CacheTTL"`
	SweepAge           Duration `mapstructure:"SweepAge"`
	NegativeTTL        Duration `mapstructure:"NegativeTTL"`
	MaxMemoryCache     int64    `mapstructure:"MaxMemoryCacheSize"`
	RevivalCapacity    int      `mapstructure:"RevivalCapacity"`
	RevivalRecordBytes int64    `mapstructure:"RevivalRecordBytes"`
	LiveCapacity       int      `mapstructure:"LiveCapacity"`
	FetchWorkers       int      `mapstructure:"FetchWorkers"`
	UpstreamTimeout    Duration `mapstructure:"UpstreamTimeout"`
	RequestTimeout     Duration `mapstructure:"RequestTimeout"`
	ContentRoot        string   `mapstructure:"ContentRoot"`
}

// S3Config 描述 s3:// key 使用的对象存储；Endpoint 为空时不注册 S3 Downloader。
type S3Config struct {
	Endpoint  string `mapstructure:"Endpoint"`
	AccessKey string `mapstructure:"AccessKey"`
	SecretKey string `mapstructure:"SecretKey"`
	UseSSL    bool   `mapstructure:"UseSSL"`
}

// Enabled 表示是否配置了对象存储。
func (s S3Config) Enabled() bool {
	return strings.TrimSpace(s.Endpoint) != ""
}

// HasCredentials 表示是否配置了完整的访问凭证。
func (s S3Config) HasCredentials() bool {
	return s.AccessKey != "" && s.SecretKey != ""
}

// AuthMode 输出 `credentialed` 或 `anonymous`，供日志字段使用。
func (s S3Config) AuthMode() string {
	if s.HasCredentials() {
		return "credentialed"
	}
	return "anonymous"
}

// HeaderConfig 为前缀匹配的 key 追加请求头。
type HeaderConfig struct {
	Prefix string `mapstructure:"Prefix"`
	Name   string `mapstructure:"Name"`
	Value  string `mapstructure:"Value"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig   `mapstructure:",squash"`
	S3      S3Config       `mapstructure:"S3"`
	Headers []HeaderConfig `mapstructure:"Header"`
}
