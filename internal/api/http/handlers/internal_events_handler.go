package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/api/dto"
	"github.com/bookwell/penalty-service/internal/service"
)

// InternalEventsHandler receives state-change notifications from the booking
// and rating services. It always accepts: failures are handled by the hooks.
type InternalEventsHandler struct {
	hooks  *service.HookRunner
	logger *zap.Logger
}

// NewInternalEventsHandler constructs handler.
func NewInternalEventsHandler(hooks *service.HookRunner, logger *zap.Logger) *InternalEventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InternalEventsHandler{hooks: hooks, logger: logger}
}

// AppointmentStatusChanged POST /internal/events/appointments/:id.
func (h *InternalEventsHandler) AppointmentStatusChanged(c *fiber.Ctx) error {
	opts := h.hookOptions(c)
	h.hooks.OnAppointmentStatusChanged(c.UserContext(), param(c, "id"), opts)
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"accepted": true}})
}

// RatingSubmitted POST /internal/events/ratings/:id.
func (h *InternalEventsHandler) RatingSubmitted(c *fiber.Ctx) error {
	opts := h.hookOptions(c)
	h.hooks.OnRatingSubmitted(c.UserContext(), param(c, "id"), opts)
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"accepted": true}})
}

// hookOptions reads the token from the body or the Idempotency-Key header.
// A malformed body is logged and otherwise ignored; the hooks derive a token
// themselves.
func (h *InternalEventsHandler) hookOptions(c *fiber.Ctx) service.DetectionOptions {
	var req dto.HookRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			h.logger.Warn("ignoring malformed hook body",
				zap.String("path", c.Path()),
				zap.String("subject_id", param(c, "id")),
				zap.Error(err))
			req = dto.HookRequest{}
		}
	}
	if req.IdempotencyToken == "" {
		req.IdempotencyToken = header(c, "Idempotency-Key")
	}
	return service.DetectionOptions{IdempotencyToken: req.IdempotencyToken}
}
