package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/any-hub/mediacache/internal/cache"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// MediaFields 提供 key/消费者/命中状态字段，供媒体请求日志复用。
func MediaFields(key cache.Key, consumerID, outcome string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"key":         key.String(),
		"scheme":      key.Scheme(),
		"consumer_id": consumerID,
		"outcome":     outcome,
		"cache_hit":   cacheHit,
	}
}
