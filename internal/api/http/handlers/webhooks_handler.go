package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vertice360/leadqual/internal/api/dto"
	"github.com/vertice360/leadqual/internal/service"
	apperrors "github.com/vertice360/leadqual/pkg/util"
)

// WebhooksHandler accepts inbound provider messages.
type WebhooksHandler struct {
	engine *service.EngineService
}

// NewWebhooksHandler constructs handler.
func NewWebhooksHandler(engine *service.EngineService) *WebhooksHandler {
	return &WebhooksHandler{engine: engine}
}

// Inbound POST /webhooks/inbound. Duplicate messages are acknowledged with
// 200 and a duplicate marker, never rejected.
func (h *WebhooksHandler) Inbound(c *fiber.Ctx) error {
	var req dto.InboundMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	result, err := h.engine.ProcessInbound(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if !result.Duplicate {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(fiber.Map{"data": result})
}
