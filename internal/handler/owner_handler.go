package handler

import (
	"go-resale-dashboard/internal/model"
	"go-resale-dashboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

type OwnerHandler struct {
	service service.OwnerService
}

func NewOwnerHandler(s service.OwnerService) *OwnerHandler {
	return &OwnerHandler{service: s}
}

func (h *OwnerHandler) GetOwners(c *fiber.Ctx) error {
	owners, err := h.service.ListOwners(c.UserContext())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(owners)
}

// AddContribution handles POST /api/v1/owners/:id/contributions
func (h *OwnerHandler) AddContribution(c *fiber.Ctx) error {
	var req model.ContributionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	owner, err := h.service.AddContribution(c.UserContext(), c.Params("id"), req, getActor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Contribution added", "data": owner})
}
