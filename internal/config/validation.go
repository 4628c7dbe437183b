package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/any-hub/mediacache/internal/cache"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if g.SweepAge.DurationValue() < 0 {
		return newFieldError("Global.SweepAge", "不能为负数")
	}
	if g.NegativeTTL.DurationValue() < 0 {
		return newFieldError("Global.NegativeTTL", "不能为负数")
	}
	if g.MaxMemoryCache <= 0 {
		return newFieldError("Global.MaxMemoryCacheSize", "必须大于 0")
	}
	if g.RevivalCapacity < 0 {
		return newFieldError("Global.RevivalCapacity", "不能为负数")
	}
	if g.LiveCapacity < 0 {
		return newFieldError("Global.LiveCapacity", "不能为负数")
	}
	if g.FetchWorkers <= 0 {
		return newFieldError("Global.FetchWorkers", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.RequestTimeout.DurationValue() <= 0 {
		return newFieldError("Global.RequestTimeout", "必须大于 0")
	}

	if err := validateS3(c.S3); err != nil {
		return err
	}

	for i, h := range c.Headers {
		if h.Name == "" {
			return newFieldError(headerField(i, "Name"), "不能为空")
		}
		if strings.ContainsAny(h.Name, " :\t\r\n") {
			return newFieldError(headerField(i, "Name"), "不是合法的请求头名称")
		}
		if h.Prefix == "" {
			return newFieldError(headerField(i, "Prefix"), "不能为空")
		}
	}

	return nil
}

func validateS3(s S3Config) error {
	if !s.Enabled() {
		return nil
	}
	if strings.Contains(s.Endpoint, "://") {
		return newFieldError("S3.Endpoint", "不应包含协议头，使用 UseSSL 控制")
	}
	if strings.Contains(s.Endpoint, "/") {
		return newFieldError("S3.Endpoint", "不允许包含路径")
	}
	if (s.AccessKey == "") != (s.SecretKey == "") {
		return newFieldError("S3.AccessKey/SecretKey", "必须同时提供或同时留空")
	}
	return nil
}

// DefaultMaxAge 返回请求未指定 max_age 时使用的缓存时长。
func (c *Config) DefaultMaxAge() cache.MaxAge {
	if c.Global.CacheTTL.IsInfinite() {
		return cache.Infinite
	}
	return cache.MaxAge(c.Global.CacheTTL.DurationValue())
}

// EffectiveRevivalCapacity 返回 Revival Tier 容量；未显式配置时按内存预算推算。
func (c *Config) EffectiveRevivalCapacity() int {
	if c.Global.RevivalCapacity > 0 {
		return c.Global.RevivalCapacity
	}
	return cache.RevivalCapacityForBudget(c.Global.MaxMemoryCache, c.Global.RevivalRecordBytes)
}

// EffectiveSweepAge 返回启动清理阈值；"infinite" 表示不清理。
func (c *Config) EffectiveSweepAge() time.Duration {
	if c.Global.SweepAge.IsInfinite() {
		return 0
	}
	return c.Global.SweepAge.DurationValue()
}

// HeaderSummary 返回请求头规则摘要，例如 https://cdn.example.com:Authorization，不含取值。
func (c *Config) HeaderSummary() []string {
	if len(c.Headers) == 0 {
		return nil
	}
	result := make([]string, len(c.Headers))
	for i, h := range c.Headers {
		result[i] = fmt.Sprintf("%s:%s", h.Prefix, h.Name)
	}
	return result
}
