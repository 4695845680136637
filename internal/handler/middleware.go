package handler

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

const (
	slowRequest    = 100 * time.Millisecond
	sampleInterval = 10 * time.Second
)

// NewApp builds the HTTP server. proxyHeader is only read from peers listed in
// trustedProxies (addresses or CIDR ranges); any other peer is identified by
// its socket address.
func NewApp(proxyHeader string, trustedProxies []string, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:             10 * time.Second,
		WriteTimeout:            10 * time.Second,
		IdleTimeout:             120 * time.Second,
		ProxyHeader:             proxyHeader,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          trustedProxies,
	})
	app.Use(recover.New())
	app.Use(AccessLog(logger))
	return app
}

// AccessLog logs failed, non-200 and slow requests. Healthy requests are
// sampled, at most one per sampleInterval.
func AccessLog(logger *zap.Logger) fiber.Handler {
	var lastSample atomic.Int64
	lastSample.Store(time.Now().UnixNano())

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)
		status := c.Response().StatusCode()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("method", c.Method()),
			zap.String("path", utils.CopyString(c.Path())),
			zap.String("client_ip", clientIP(c)),
		}

		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			logger.Error("request", append(fields, zap.Error(err))...)
		case status != fiber.StatusOK || latency > slowRequest:
			logger.Info("request", fields...)
		default:
			prev := lastSample.Load()
			now := start.UnixNano()
			if now-prev >= int64(sampleInterval) && lastSample.CompareAndSwap(prev, now) {
				logger.Info("sampled_request", fields...)
			}
		}
		return err
	}
}
