package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vertice360/leadqual/internal/api/dto"
	"github.com/vertice360/leadqual/internal/orchestrator"
	apperrors "github.com/vertice360/leadqual/pkg/util"
)

// OrchestratorHandler runs the dialogue pipeline on raw text. Useful for
// inspecting intent scores and the decision without touching sessions.
type OrchestratorHandler struct {
	pipeline *orchestrator.Pipeline
}

// NewOrchestratorHandler constructs handler.
func NewOrchestratorHandler(pipeline *orchestrator.Pipeline) *OrchestratorHandler {
	return &OrchestratorHandler{pipeline: pipeline}
}

// Analyze POST /orchestrator/analyze.
func (h *OrchestratorHandler) Analyze(c *fiber.Ctx) error {
	var req dto.AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	state, err := h.pipeline.Run(req.Text)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": state})
}
