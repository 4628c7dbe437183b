package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/utils/v2"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/mediacache/internal/cache"
	"github.com/any-hub/mediacache/internal/coordinator"
	"github.com/any-hub/mediacache/internal/logging"
	"github.com/any-hub/mediacache/internal/server"
)

// ConsumerHeader 标识可复用的消费者（例如列表中被回收复用的播放控件）。
const ConsumerHeader = "X-Consumer-ID"

const defaultHandleIdle = 10 * time.Minute

// Handler 将 /media 请求映射为 coordinator 操作：每个 X-Consumer-ID 对应一个长期存在的
// coordinator.Handle，同一消费者改请求新 key 时，旧 key 的结果不会再返回给它。
type Handler struct {
	coord   *coordinator.Coordinator
	logger  *logrus.Logger
	maxAge  cache.MaxAge
	timeout time.Duration
	handles *ttlcache.Cache[string, *coordinator.Handle]
}

// Options 控制媒体请求的默认缓存时长与等待上限。
type Options struct {
	DefaultMaxAge cache.MaxAge
	// RequestTimeout 是等待拉取结果的上限，超时返回 504。
	RequestTimeout time.Duration
	// HandleIdle 之后未再出现的消费者句柄会被丢弃。
	HandleIdle time.Duration
}

// NewHandler constructs a media handler on top of the shared coordinator.
func NewHandler(coord *coordinator.Coordinator, logger *logrus.Logger, opts Options) *Handler {
	if opts.DefaultMaxAge <= 0 {
		opts.DefaultMaxAge = cache.OneDay
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = time.Minute
	}
	if opts.HandleIdle <= 0 {
		opts.HandleIdle = defaultHandleIdle
	}

	handles := ttlcache.New[string, *coordinator.Handle](
		ttlcache.WithTTL[string, *coordinator.Handle](opts.HandleIdle),
	)
	handles.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *coordinator.Handle]) {
		go forgetHandle(coord, item.Value())
	})
	go handles.Start()

	return &Handler{
		coord:   coord,
		logger:  logger,
		maxAge:  opts.DefaultMaxAge,
		timeout: opts.RequestTimeout,
		handles: handles,
	}
}

// Close 停止句柄过期协程并丢弃所有句柄。
func (h *Handler) Close() {
	h.handles.DeleteAll()
	h.handles.Stop()
}

// Serve 处理 GET /media?key=...&max_age=...：命中直接返回文件，否则等待合并后的拉取结果。
func (h *Handler) Serve(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	ctx := requestContext(c)

	rawKey := c.Query("key")
	maxAge, err := cache.ParseMaxAge(c.Query("max_age"), h.maxAge)
	if err != nil {
		return h.writeError(c, fiber.StatusBadRequest, "invalid_max_age")
	}

	consumerID := strings.TrimSpace(c.Get(ConsumerHeader))
	handle, ephemeral := h.handleFor(consumerID)
	if ephemeral {
		consumerID = handle.ID()
		defer forgetHandle(h.coord, handle)
	}

	if key, ok := cache.NormalizeKey(rawKey); ok {
		handle.Reset(key)
	}

	outcome, err := h.coord.Request(ctx, rawKey, handle, maxAge)
	if err != nil {
		h.logResult(outcome, consumerID, requestID, fiber.StatusServiceUnavailable, started, err)
		return h.writeError(c, fiber.StatusServiceUnavailable, "coordinator_unavailable")
	}

	switch outcome.Kind {
	case coordinator.OutcomeCleared:
		h.logResult(outcome, consumerID, requestID, fiber.StatusBadRequest, started, nil)
		return h.writeError(c, fiber.StatusBadRequest, "key_required")
	case coordinator.OutcomeHit:
		defer outcome.Entry.Release()
		return h.serveEntry(c, outcome, outcome.Entry, true, consumerID, requestID, started)
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	delivery, err := handle.Wait(waitCtx, outcome.Key)
	if err != nil {
		h.logResult(outcome, consumerID, requestID, fiber.StatusGatewayTimeout, started, err)
		return h.writeError(c, fiber.StatusGatewayTimeout, "delivery_timeout")
	}
	defer delivery.Release()
	return h.serveEntry(c, outcome, delivery.Entry, false, consumerID, requestID, started)
}

// Kill 处理 DELETE /media?key=...，永久作废该 key 的缓存条目。
func (h *Handler) Kill(c fiber.Ctx) error {
	rawKey := c.Query("key")
	if _, ok := cache.NormalizeKey(rawKey); !ok {
		return h.writeError(c, fiber.StatusBadRequest, "key_required")
	}
	existed, err := h.coord.Kill(requestContext(c), rawKey)
	if err != nil {
		return h.writeError(c, fiber.StatusServiceUnavailable, "coordinator_unavailable")
	}
	h.logger.WithFields(logrus.Fields{
		"action":     "kill",
		"key":        rawKey,
		"existed":    existed,
		"request_id": server.RequestID(c),
	}).Info("media_killed")
	return c.SendStatus(fiber.StatusNoContent)
}

// handleFor 返回消费者句柄；未携带 X-Consumer-ID 时创建一次性句柄。
func (h *Handler) handleFor(consumerID string) (*coordinator.Handle, bool) {
	if consumerID == "" {
		return coordinator.NewHandle(uuid.NewString()), true
	}
	item, _ := h.handles.GetOrSet(consumerID, coordinator.NewHandle(consumerID))
	return item.Value(), false
}

func (h *Handler) serveEntry(
	c fiber.Ctx,
	outcome coordinator.Outcome,
	entry *cache.Entry,
	cacheHit bool,
	consumerID string,
	requestID string,
	started time.Time,
) error {
	if entry == nil || entry.Absent() {
		h.logResult(outcome, consumerID, requestID, fiber.StatusNotFound, started, nil)
		return h.writeError(c, fiber.StatusNotFound, "resource_unavailable")
	}

	file, err := os.Open(entry.Path())
	if err != nil {
		h.logResult(outcome, consumerID, requestID, fiber.StatusNotFound, started, err)
		return h.writeError(c, fiber.StatusNotFound, "resource_unavailable")
	}
	defer file.Close()

	if info, statErr := file.Stat(); statErr == nil && info.Size() > 0 {
		c.Response().Header.SetContentLength(int(info.Size()))
	}
	c.Set(fiber.HeaderContentType, contentTypeFor(outcome.Key))
	c.Set("X-Media-Cache-Hit", fmt.Sprintf("%t", cacheHit))
	if entry.Resurrected() {
		c.Set("X-Media-Resurrected", "true")
	}
	if outcome.Source != "" {
		c.Set("X-Media-Source", outcome.Source)
	}
	c.Status(fiber.StatusOK)

	_, err = io.Copy(c.Response().BodyWriter(), file)
	h.logResult(outcome, consumerID, requestID, fiber.StatusOK, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read cache failed: %v", err))
	}
	return nil
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	outcome coordinator.Outcome,
	consumerID string,
	requestID string,
	status int,
	started time.Time,
	err error,
) {
	fields := logging.MediaFields(outcome.Key, consumerID, outcome.Kind.String(), outcome.Kind == coordinator.OutcomeHit)
	fields["action"] = "media"
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if outcome.Source != "" {
		fields["source"] = outcome.Source
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Warn("media_failed")
		return
	}
	h.logger.WithFields(fields).Info("media_complete")
}

// forgetHandle 先解除绑定，再释放句柄上尚未取走的投递。
func forgetHandle(coord *coordinator.Coordinator, handle *coordinator.Handle) {
	_ = coord.Forget(context.Background(), handle)
	handle.Discard()
}

// contentTypeFor 依据 key 路径的扩展名推断 Content-Type。
func contentTypeFor(key cache.Key) string {
	raw := key.String()
	if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
		raw = raw[:idx]
	}
	if ct := utils.GetMIME(strings.ToLower(path.Ext(raw))); ct != "" {
		return ct
	}
	return fiber.MIMEOctetStream
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
