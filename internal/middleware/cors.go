package middleware

import (
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS admits the registration client origin. Fiber refuses a wildcard
// origin together with credentials, so credentials are only enabled for an
// explicit origin list.
func CORS(cfg *config.Config) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, X-Request-ID",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: cfg.CORSAllowCredentials && cfg.CORSOrigins != "*",
	})
}
