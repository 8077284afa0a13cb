package controller

import (
	"github.com/gofiber/fiber/v2"

	"everlight-os/internal/dto"
	"everlight-os/internal/pkg/serverutils"
	"everlight-os/pkg/safety"
)

type ISafetyController interface {
	RegisterRoutes(r fiber.Router)
	Evaluate(ctx *fiber.Ctx) error
}

// safetyController exposes the gate as a standalone pre-flight check so
// clients can probe a query before committing to a full session.
type safetyController struct {
	gate safety.Evaluator
}

func NewSafetyController(gate safety.Evaluator) ISafetyController {
	return &safetyController{gate: gate}
}

func (c *safetyController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/safety/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/evaluate", c.Evaluate)
}

func (c *safetyController) Evaluate(ctx *fiber.Ctx) error {
	var req dto.EvaluateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	decision, err := c.gate.Evaluate(ctx.Context(), req.Query, req.Context)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "safety evaluation unavailable")
	}
	return ctx.JSON(serverutils.SuccessResponse("Evaluation complete", decision))
}
