package handler

import (
	"github.com/gofiber/fiber/v2"
)

// ClientCounter reports live websocket connections.
type ClientCounter interface {
	ClientCount() int
}

type HealthHandler struct {
	driver  string
	clients ClientCounter
}

func NewHealthHandler(driver string, clients ClientCounter) *HealthHandler {
	return &HealthHandler{driver: driver, clients: clients}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok", "store": h.driver}
	if h.clients != nil {
		resp["ws_clients"] = h.clients.ClientCount()
	}
	return c.JSON(resp)
}
