package routes

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/mediacache/internal/coordinator"
	"github.com/any-hub/mediacache/internal/version"
)

// Diagnostics 是诊断接口依赖的 coordinator 能力子集。
type Diagnostics interface {
	Stats(ctx context.Context) (coordinator.Stats, error)
	TrimMemory(ctx context.Context) (int, error)
}

// RegisterDiagnosticsRoutes 暴露 /-/status、/-/downloaders 与 /-/trim，供 SRE 查看缓存状态。
func RegisterDiagnosticsRoutes(app *fiber.App, diag Diagnostics) {
	if app == nil || diag == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		stats, err := diag.Stats(requestContext(c))
		if err != nil {
			return unavailable(c)
		}
		return c.JSON(statusPayload{
			Version: version.Full(),
			Stats:   stats,
		})
	})

	app.Get("/-/downloaders", func(c fiber.Ctx) error {
		stats, err := diag.Stats(requestContext(c))
		if err != nil {
			return unavailable(c)
		}
		return c.JSON(fiber.Map{"downloaders": stats.Downloaders})
	})

	app.Post("/-/trim", func(c fiber.Ctx) error {
		n, err := diag.TrimMemory(requestContext(c))
		if err != nil {
			return unavailable(c)
		}
		return c.JSON(fiber.Map{"reclaimed": n})
	})
}

type statusPayload struct {
	Version string            `json:"version"`
	Stats   coordinator.Stats `json:"stats"`
}

func unavailable(c fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "coordinator_unavailable"})
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
