package controller

import (
	"milk-subscription-be/internal/dto"
	"milk-subscription-be/internal/pkg/serverutils"
	"milk-subscription-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISubscriptionController interface {
	RegisterRoutes(r fiber.Router)
	Checkout(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	GetCurrent(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	Pause(ctx *fiber.Ctx) error
	Resume(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
}

type subscriptionController struct {
	service       service.ISubscriptionService
	jwtMiddleware fiber.Handler
}

func NewSubscriptionController(service service.ISubscriptionService, jwtMiddleware fiber.Handler) ISubscriptionController {
	return &subscriptionController{
		service:       service,
		jwtMiddleware: jwtMiddleware,
	}
}

func (c *subscriptionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/subscriptions", c.jwtMiddleware)
	h.Post("/checkout", c.Checkout)
	h.Post("/", c.Create)
	h.Get("/me", c.GetCurrent)
	h.Get("/history", c.GetHistory)
	h.Post("/:id/pause", c.Pause)
	h.Post("/:id/resume", c.Resume)
	h.Post("/:id/cancel", c.Cancel)
}

// Checkout creates a provider order for a plan
// @Summary Start checkout
// @Tags Subscriptions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CheckoutRequest true "Plan and duration"
// @Success 200 {object} dto.CheckoutResponse
// @Router /api/subscriptions/checkout [post]
func (c *subscriptionController) Checkout(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.CheckoutRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Checkout(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Order created", res))
}

// Create activates a subscription from a completed checkout
// @Summary Create subscription
// @Tags Subscriptions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateSubscriptionRequest true "Plan and payment assertion"
// @Success 201 {object} dto.SubscriptionResponse
// @Failure 402 {object} serverutils.BaseResponse[any]
// @Failure 409 {object} serverutils.BaseResponse[any]
// @Router /api/subscriptions [post]
func (c *subscriptionController) Create(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateSubscriptionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Subscription created", res))
}

// GetCurrent returns the caller's current subscription
// @Summary Current subscription
// @Tags Subscriptions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SubscriptionResponse
// @Router /api/subscriptions/me [get]
func (c *subscriptionController) GetCurrent(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetCurrent(ctx.UserContext(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription status", res))
}

// GetHistory lists superseded subscriptions, newest first
// @Summary Subscription history
// @Tags Subscriptions
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} []dto.SubscriptionHistoryResponse
// @Router /api/subscriptions/history [get]
func (c *subscriptionController) GetHistory(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetHistory(ctx.UserContext(), userId, ctx.QueryInt("page", 1), ctx.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription history", res))
}

// @Summary Pause subscription
// @Tags Subscriptions
// @Security BearerAuth
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Router /api/subscriptions/{id}/pause [post]
func (c *subscriptionController) Pause(ctx *fiber.Ctx) error {
	userId, id, err := ownerAndId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Pause(ctx.UserContext(), userId, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription paused", res))
}

// @Summary Resume subscription
// @Tags Subscriptions
// @Security BearerAuth
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Router /api/subscriptions/{id}/resume [post]
func (c *subscriptionController) Resume(ctx *fiber.Ctx) error {
	userId, id, err := ownerAndId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Resume(ctx.UserContext(), userId, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription resumed", res))
}

// @Summary Cancel subscription
// @Tags Subscriptions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.CancelSubscriptionRequest false "Reason"
// @Success 200 {object} dto.SubscriptionResponse
// @Router /api/subscriptions/{id}/cancel [post]
func (c *subscriptionController) Cancel(ctx *fiber.Ctx) error {
	userId, id, err := ownerAndId(ctx)
	if err != nil {
		return err
	}

	var req dto.CancelSubscriptionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Cancel(ctx.UserContext(), userId, id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription cancelled", res))
}

func ownerAndId(ctx *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid subscription id")
	}
	return userId, id, nil
}
