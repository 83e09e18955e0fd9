package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/config"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/middleware"
)

const RegisterPath = "/req/v1/client/register"

func Setup(
	app *fiber.App,
	cfg *config.Config,
	gatherer prometheus.Gatherer,
	registrationHandler *handlers.RegistrationHandler,
	healthHandler *handlers.HealthHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	req := app.Group("/req")
	req.Get("/health", healthHandler.Check)

	// Registration: per-IP sliding window, bounded request time
	app.Post(RegisterPath,
		limiter.New(limiter.Config{
			Max:               cfg.RateLimitPerMinute,
			Expiration:        1 * time.Minute,
			LimiterMiddleware: limiter.SlidingWindow{},
			KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		}),
		middleware.RequestTimeout(cfg.RequestTimeout),
		registrationHandler.Register,
	)
}
