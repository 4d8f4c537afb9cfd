package handler

import (
	"errors"

	"go-resale-dashboard/internal/middleware"
	"go-resale-dashboard/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Helper untuk ambil User Info dari JWT Context (set by auth middleware)
func getActor(c *fiber.Ctx) service.Actor {
	actor := service.Actor{ID: "system", Name: "Unknown"}
	if v, ok := c.Locals(middleware.LocalUserID).(string); ok && v != "" {
		actor.ID = v
	}
	if v, ok := c.Locals(middleware.LocalUserName).(string); ok && v != "" {
		actor.Name = v
	}
	if v, ok := c.Locals(middleware.LocalUserEmail).(string); ok {
		actor.Email = v
	}
	return actor
}

// writeError maps service errors onto status codes.
func writeError(c *fiber.Ctx, err error) error {
	var verr *service.ValidationError
	var cerr *service.CommitError

	switch {
	case errors.As(err, &verr):
		return c.Status(400).JSON(fiber.Map{"error": verr.Error(), "code": verr.Code, "field": verr.Field})
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrOwnerNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUserInactive),
		errors.Is(err, service.ErrSessionExpired):
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrWeakPassword):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &cerr):
		log.Error().Err(err).Str("op", cerr.Op).Msg("commit failed")
		return c.Status(500).JSON(fiber.Map{"error": "Failed to save changes, nothing was written"})
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
}
