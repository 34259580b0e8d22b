package controller

import (
	"milk-subscription-be/internal/pkg/serverutils"
	"milk-subscription-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IPlanController interface {
	RegisterRoutes(r fiber.Router)
	GetPlans(ctx *fiber.Ctx) error
}

type planController struct {
	service service.ISubscriptionService
}

func NewPlanController(service service.ISubscriptionService) IPlanController {
	return &planController{service: service}
}

func (c *planController) RegisterRoutes(r fiber.Router) {
	r.Get("/plans", c.GetPlans)
}

// GetPlans returns every plan and duration with its price
// @Summary Get subscription plans
// @Tags Plans
// @Produce json
// @Success 200 {object} []dto.PlanResponse
// @Router /api/plans [get]
func (c *planController) GetPlans(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Plans retrieved", c.service.GetPlans(ctx.UserContext())))
}
