package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MediaHandler describes the component that maps /media requests onto the
// fetch coordinator. It allows injecting fake handlers during tests.
type MediaHandler interface {
	Serve(fiber.Ctx) error
	Kill(fiber.Ctx) error
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Media      MediaHandler
	ListenPort int
}

const contextKeyRequestID = "_mediacache_request_id"

// MediaPath 是媒体请求挂载的路径。
const MediaPath = "/media"

// NewApp builds a Fiber application with request-ID middleware, the media
// routes and structured error handling for unknown paths. Diagnostics routes
// under /-/ are registered by the caller after NewApp returns.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Media == nil {
		return nil, errors.New("media handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.Get(MediaPath, func(c fiber.Ctx) error {
		return opts.Media.Serve(c)
	})
	app.Delete(MediaPath, func(c fiber.Ctx) error {
		return opts.Media.Kill(c)
	})

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		return renderRouteUnmapped(c, opts.Logger, opts.ListenPort)
	})

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID 并写回响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func renderRouteUnmapped(c fiber.Ctx, logger *logrus.Logger, port int) error {
	fields := logrus.Fields{
		"action": "route_lookup",
		"method": c.Method(),
		"path":   string(c.Request().URI().Path()),
		"port":   port,
	}
	logger.WithFields(fields).Warn("route unmapped")

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "route_unmapped",
	})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
