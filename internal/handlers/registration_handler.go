package handlers

import (
	"context"
	"errors"
	"log/slog"

	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/device"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/dto"
	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/services"
)

type RegistrationHandler struct {
	registrationService *services.RegistrationService
}

func NewRegistrationHandler(registrationService *services.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrationService: registrationService}
}

// Register handles POST /req/v1/client/register.
func (h *RegistrationHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	customer, err := h.registrationService.Register(c.UserContext(), &req)
	if err != nil {
		var missing *services.MissingFieldsError
		if errors.As(err, &missing) {
			fields := make(map[string]string, len(missing.Fields))
			for _, f := range missing.Fields {
				fields[f] = "required"
			}
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: missing.Error(), Fields: fields,
			})
		}

		slog.Error("customer registration failed",
			"request_id", requestID(c),
			"method", c.Method(),
			"path", c.Path(),
			"client", device.Describe(c.Get(fiber.HeaderUserAgent)),
			"error", err.Error(),
		)
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}

		if errors.Is(err, context.DeadlineExceeded) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(dto.ErrorResponse{
				Error: true, Message: "Registration timed out",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Registration failed",
		})
	}

	slog.Info("customer registered",
		"request_id", requestID(c),
		"customer_uid", customer.UID,
		"client", device.Describe(c.Get(fiber.HeaderUserAgent)),
	)

	return c.Status(fiber.StatusOK).JSON(dto.RegisterResponse{
		Status: true,
		Record: services.ToRecord(customer),
	})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
