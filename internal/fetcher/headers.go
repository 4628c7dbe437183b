package fetcher

import (
	"net/http"
	"strings"

	"github.com/any-hub/mediacache/internal/cache"
)

// HeaderRule 为前缀匹配的 key 追加一个请求头。
type HeaderRule struct {
	Prefix string
	Name   string
	Value  string
}

// StaticHeaders 是基于前缀规则的 HeaderProvider，规则按顺序全部生效。
type StaticHeaders struct {
	rules []HeaderRule
}

// NewStaticHeaders 复制规则列表，空列表返回 nil，便于调用方判断是否需要注入。
func NewStaticHeaders(rules []HeaderRule) *StaticHeaders {
	if len(rules) == 0 {
		return nil
	}
	return &StaticHeaders{rules: append([]HeaderRule(nil), rules...)}
}

func (s *StaticHeaders) HeadersFor(key cache.Key) http.Header {
	if s == nil {
		return nil
	}
	headers := http.Header{}
	for _, rule := range s.rules {
		if strings.HasPrefix(key.String(), rule.Prefix) {
			headers.Add(rule.Name, rule.Value)
		}
	}
	return headers
}
