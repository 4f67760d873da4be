// Package server exposes the read-only ops API next to the bot: health,
// stats and the client roster, for dashboards and shell scripts.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/proxyward/proxyward/internal/config"
	"github.com/proxyward/proxyward/internal/middleware"
	"github.com/proxyward/proxyward/internal/report"
)

// Server wraps the Fiber application serving the ops API.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// Deps aggregates what the ops API serves from.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Reports *report.Service
	Logger  *slog.Logger
}

// New builds the ops HTTP server and wires its routes.
func New(d Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName:      d.Cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	registerHealth(app, d)

	api := app.Group("/api/v1",
		middleware.RateLimit(d.Cache, 60),
		middleware.OpsAuth(d.Cfg.OpsTokenHash),
	)
	api.Get("/stats", statsHandler(d.Reports))
	api.Get("/clients", clientsHandler(d.Reports))

	return &Server{app: app, cfg: d.Cfg}
}

// Listen starts the HTTP server on the configured ops port.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.OpsAddress())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func registerHealth(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		dbStatus := "ok"
		redisStatus := "ok"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			if err := d.DB.Ping(ctx); err != nil {
				dbStatus = err.Error()
			}
		}
		if d.Cache != nil {
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				redisStatus = err.Error()
			}
		}
		status := http.StatusOK
		if dbStatus != "ok" || redisStatus != "ok" {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": dbStatus, "redis": redisStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func statsHandler(reports *report.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := reports.Stats(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "stats unavailable")
		}
		return c.JSON(fiber.Map{
			"users":            stats.TotalUsers,
			"active_clients":   stats.Approved,
			"pending_requests": stats.PendingRequests,
			"denied":           stats.Denied,
			"banned":           stats.Banned,
			"expiring_7d":      stats.ExpiringSoon,
		})
	}
}

func clientsHandler(reports *report.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := reports.Clients(c.UserContext(), c.QueryInt("page", 0))
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "clients unavailable")
		}

		items := make([]fiber.Map, 0, len(page.Clients))
		for _, client := range page.Clients {
			item := fiber.Map{
				"id":           client.User.ID,
				"name":         client.User.DisplayName(),
				"handle":       client.User.Handle(),
				"device_limit": client.User.DeviceLimit,
				"devices_used": client.User.DevicesUsed,
				"expired":      client.Expired,
			}
			if client.User.ExpiresAt != nil {
				item["expires_at"] = client.User.ExpiresAt.UTC().Format(time.RFC3339)
			}
			items = append(items, item)
		}
		return c.JSON(fiber.Map{
			"clients":  items,
			"page":     page.Page,
			"has_prev": page.HasPrev,
			"has_next": page.HasNext,
			"total":    page.Total,
		})
	}
}
