package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"everlight-os/internal/dto"
	"everlight-os/internal/pkg/serverutils"
	"everlight-os/pkg/pipeline"
)

type IPipelineController interface {
	RegisterRoutes(r fiber.Router)
	Process(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type pipelineController struct {
	pipeline       *pipeline.Pipeline
	sessions       *pipeline.SessionStore
	councilMembers int
	vaultBackend   string
}

func NewPipelineController(p *pipeline.Pipeline, sessions *pipeline.SessionStore, councilMembers int, vaultBackend string) IPipelineController {
	return &pipelineController{
		pipeline:       p,
		sessions:       sessions,
		councilMembers: councilMembers,
		vaultBackend:   vaultBackend,
	}
}

func (c *pipelineController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/pipeline/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/process", c.Process)
	h.Get("/sessions/:id", c.ShowSession)

	// liveness stays unauthenticated
	r.Get("/health/v1", c.Health)
}

func (c *pipelineController) Process(ctx *fiber.Ctx) error {
	userID, ok := ctx.Locals("user_id").(string)
	if !ok || userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "token carries no user_id")
	}

	var req dto.ProcessRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	response := c.pipeline.Process(ctx.Context(), pipeline.Request{
		UserID:     userID,
		Body:       req.Body,
		Context:    req.Context,
		ReceivedAt: time.Now().UTC(),
	})
	return ctx.JSON(serverutils.SuccessResponse("Session processed", response))
}

func (c *pipelineController) ShowSession(ctx *fiber.Ctx) error {
	userID, _ := ctx.Locals("user_id").(string)
	id := ctx.Params("id")

	session, found := c.sessions.Find(id)
	if !found || session.Request.UserID != userID {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session", session))
}

func (c *pipelineController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success", dto.HealthResponse{
		Status:         "operational",
		ActiveSessions: c.sessions.ActiveCount(),
		CouncilMembers: c.councilMembers,
		VaultBackend:   c.vaultBackend,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}))
}
