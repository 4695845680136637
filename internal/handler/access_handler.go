package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"geogate/internal/model"
	"geogate/internal/service"
)

type AccessService interface {
	Decide(ctx context.Context, ip string) (*model.AccessDecision, error)
	ASNAvailable() bool
}

type Handler struct {
	service AccessService
	logger  *zap.Logger
}

func NewHandler(service AccessService, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/v1/check", h.CheckClient)
	app.Get("/api/v1/check/:ip", h.CheckIP)
	app.Get("/api/v1/health", h.HealthCheck)
}

// CheckClient decides on the address the request came from.
func (h *Handler) CheckClient(c *fiber.Ctx) error {
	return h.decide(c, clientIP(c))
}

func (h *Handler) CheckIP(c *fiber.Ctx) error {
	ip := c.Params("ip")
	if ip == "" {
		return c.Status(fiber.StatusBadRequest).JSON(model.Error{
			Message: "IP address is required",
		})
	}
	return h.decide(c, ip)
}

func (h *Handler) decide(c *fiber.Ctx, ip string) error {
	result, err := h.service.Decide(c.Context(), ip)
	if err != nil {
		if errors.Is(err, service.ErrInvalidIP) {
			return c.Status(fiber.StatusBadRequest).JSON(model.Error{
				Message: fmt.Sprintf("Invalid IP address format: %s", ip),
			})
		}

		h.logger.Error("access decision failed",
			zap.String("ip", ip),
			zap.Error(err))

		return c.Status(fiber.StatusInternalServerError).JSON(model.Error{
			Message: "Failed to evaluate IP address",
		})
	}

	return c.JSON(result)
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":     "healthy",
		"asn_lookup": h.service != nil && h.service.ASNAvailable(),
	})
}

// clientIP returns the first address of the proxy header when the peer is a
// trusted proxy, or the peer address otherwise, with any IPv4-mapped IPv6
// prefix removed.
func clientIP(c *fiber.Ctx) string {
	ip := c.IP()
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = ip[:i]
	}
	ip = strings.TrimSpace(ip)
	return utils.CopyString(strings.TrimPrefix(ip, "::ffff:"))
}
