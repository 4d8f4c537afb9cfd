package handler

import (
	"time"

	"go-resale-dashboard/internal/report"
	"go-resale-dashboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	service service.DashboardService
}

func NewDashboardHandler(s service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

// GetSummary returns KPIs and the daily revenue/profit series.
// Query params: from, to (YYYY-MM-DD). Without from no sale qualifies.
func (h *DashboardHandler) GetSummary(c *fiber.Ctx) error {
	cal := h.service.Calendar()

	var r report.Range
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{
		{"from", &r.From},
		{"to", &r.To},
	} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		day, err := cal.ParseDay(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid '" + q.name + "' date, expected YYYY-MM-DD"})
		}
		*q.dst = &day
	}

	return c.JSON(h.service.Summary(r))
}

// GetAllocation returns the latest sale and each owner's share of its profit.
func (h *DashboardHandler) GetAllocation(c *fiber.Ctx) error {
	return c.JSON(h.service.Allocation())
}
