package http

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"uptime":   time.Since(startedAt).String(),
			"version":  "dev",
			"datasets": len(deps.Datasets.List()),
		})
	}
}

// ReadyHandler reports ready once datasets are registered and every dataset
// directory is present on disk.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		datasets := deps.Datasets.List()
		checks := make(map[string]string, len(datasets)+1)
		allOK := true

		if len(datasets) == 0 {
			checks["registry"] = "no datasets registered"
			allOK = false
		} else {
			checks["registry"] = "ok"
		}

		for _, ds := range datasets {
			info, err := os.Stat(ds.Directory)
			switch {
			case err != nil:
				checks["dataset:"+ds.Name] = "error: " + err.Error()
				allOK = false
			case !info.IsDir():
				checks["dataset:"+ds.Name] = "error: not a directory"
				allOK = false
			default:
				checks["dataset:"+ds.Name] = "ok"
			}
		}

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
