package handler

import (
	"github.com/gofiber/fiber/v2"
)

// Handlers groups everything mounted under /api/v1.
type Handlers struct {
	Auth      *AuthHandler
	Products  *ProductHandler
	Owners    *OwnerHandler
	Dashboard *DashboardHandler
	Health    *HealthHandler
}

// SetupRoutes mounts the API. requireAuth guards every route except the auth
// endpoints and /health.
func SetupRoutes(app *fiber.App, h Handlers, requireAuth fiber.Handler) {
	app.Get("/health", h.Health.Health)

	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", h.Auth.Login)
	auth.Post("/reset-password", h.Auth.ResetPassword)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)

	protected.Get("/products", h.Products.GetProducts)
	protected.Post("/products", h.Products.CreateProduct)
	protected.Put("/products/:id", h.Products.UpdateProduct)
	protected.Delete("/products/:id", h.Products.DeleteProduct)

	protected.Get("/sales", h.Products.GetSales)

	protected.Get("/owners", h.Owners.GetOwners)
	protected.Post("/owners/:id/contributions", h.Owners.AddContribution)

	protected.Get("/dashboard/summary", h.Dashboard.GetSummary)
	protected.Get("/dashboard/allocation", h.Dashboard.GetAllocation)
}
