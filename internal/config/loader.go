package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultListenPort      = 5000
	defaultCacheTTL        = 24 * time.Hour
	defaultSweepAge        = 7 * 24 * time.Hour
	defaultNegativeTTL     = 30 * time.Second
	defaultUpstreamTimeout = 30 * time.Second
	defaultRequestTimeout  = 60 * time.Second
	defaultFetchWorkers    = 4
	defaultRevivalRecord   = 1024
)

// DefaultStoragePath 返回未配置 StoragePath 时使用的缓存目录。
func DefaultStoragePath() string {
	return filepath.Join(xdg.CacheHome, "mediacache")
}

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Headers {
		applyHeaderDefaults(&cfg.Headers[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", defaultListenPort)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", DefaultStoragePath())
	v.SetDefault("CacheTTL", "24h")
	v.SetDefault("SweepAge", "168h")
	v.SetDefault("NegativeTTL", "30s")
	v.SetDefault("MaxMemoryCacheSize", 256*1024*1024)
	v.SetDefault("RevivalCapacity", 0)
	v.SetDefault("RevivalRecordBytes", defaultRevivalRecord)
	v.SetDefault("LiveCapacity", 0)
	v.SetDefault("FetchWorkers", defaultFetchWorkers)
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("RequestTimeout", "60s")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = defaultListenPort
	}
	if strings.TrimSpace(g.StoragePath) == "" {
		g.StoragePath = DefaultStoragePath()
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(defaultCacheTTL)
	}
	if g.SweepAge.DurationValue() == 0 {
		g.SweepAge = Duration(defaultSweepAge)
	}
	if g.NegativeTTL.DurationValue() < 0 {
		g.NegativeTTL = Duration(0)
	}
	if g.RevivalRecordBytes <= 0 {
		g.RevivalRecordBytes = defaultRevivalRecord
	}
	if g.FetchWorkers == 0 {
		g.FetchWorkers = defaultFetchWorkers
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(defaultUpstreamTimeout)
	}
	if g.RequestTimeout.DurationValue() == 0 {
		g.RequestTimeout = Duration(defaultRequestTimeout)
	}
}

func applyHeaderDefaults(h *HeaderConfig) {
	h.Prefix = strings.TrimSpace(h.Prefix)
	h.Name = strings.TrimSpace(h.Name)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			parsed, err := parseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
			}
			return parsed, nil
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
